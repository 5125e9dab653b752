package internal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM, or when
// cancel is called.
func ShutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			Shutdown(cancel, "Received signal for "+sig.String())
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Shutdown logs the shutdown reason and cancels the node's context.
func Shutdown(cancel context.CancelFunc, message string) {
	zlog.Sugar().Infof("Shutdown initiated: %s", message)
	cancel()
}
