// Package node wires the naming service together and runs it until its
// context ends.
package node

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"gitlab.com/alternet/naming-service/api"
	"gitlab.com/alternet/naming-service/db"
	bt "gitlab.com/alternet/naming-service/internal/background_tasks"
	"gitlab.com/alternet/naming-service/internal/config"
	"gitlab.com/alternet/naming-service/internal/tracing"
	"gitlab.com/alternet/naming-service/naming/behaviour"
	"gitlab.com/alternet/naming-service/naming/control"
	"gitlab.com/alternet/naming-service/naming/record"
	"gitlab.com/alternet/naming-service/naming/resolver"
	"gitlab.com/alternet/naming-service/network"
	"gitlab.com/alternet/naming-service/network/libp2p"
)

const (
	shutdownTimeout = 10 * time.Second
	// registerTimeout bounds the startup registration of a configured domain.
	registerTimeout = 2 * time.Minute
)

// DataPath resolves a configured file name against the data directory.
func DataPath(cfg *config.Config, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(cfg.General.DataDir, name)
}

// Run starts the node: identity, claim store, libp2p host with the naming
// transport, naming behaviour, republish task and REST API. It returns once
// ctx is done and everything has been shut down.
func Run(ctx context.Context, cfg *config.Config, fs afero.Fs) (err error) {
	domains, err := ParseNames(cfg.Naming.Domains)
	if err != nil {
		return errors.Wrap(err, "naming.domains")
	}
	trusted, err := ParseTrustedRoots(cfg.Naming.TrustedRoots)
	if err != nil {
		return err
	}
	bootstrap, err := ParseAddrs(cfg.P2P.BootstrapPeers)
	if err != nil {
		return errors.Wrap(err, "p2p.bootstrap_peers")
	}

	if err := fs.MkdirAll(cfg.General.DataDir, 0o700); err != nil {
		return errors.Wrapf(err, "creating data dir %s", cfg.General.DataDir)
	}
	priv, err := LoadOrCreateKey(fs, DataPath(cfg, cfg.P2P.KeyFile))
	if err != nil {
		return err
	}
	self, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return errors.Wrap(err, "deriving peer id")
	}

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		Endpoint: cfg.Telemetry.OtelEndpoint,
		Insecure: cfg.Telemetry.Insecure,
		PeerID:   self.String(),
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = multierr.Append(err, shutdownTracer(sctx))
	}()

	database, err := db.Open(DataPath(cfg, cfg.Naming.ClaimsDB))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, db.Close(database)) }()
	store := db.NewStore(database)

	ctl, requests := control.New(cfg.Naming.ControlQueueSize)
	defer ctl.Close()

	res, err := resolver.New(ctl)
	if err != nil {
		return errors.Wrap(err, "creating .an resolver")
	}

	scheduler := bt.NewScheduler(2)
	scheduler.Start()
	defer scheduler.Stop()

	p2p, err := network.NewNetwork(&network.Config{
		Type: network.NetworkType(cfg.P2P.Network),
		Libp2pConfig: libp2p.Config{
			PrivateKey:       priv,
			ListenAddress:    cfg.P2P.ListenAddress,
			BootstrapPeers:   bootstrap,
			Server:           cfg.P2P.Server,
			DHTPrefix:        cfg.P2P.DHTPrefix,
			QueryTimeout:     time.Duration(cfg.P2P.QueryTimeout) * time.Second,
			Naming:           ctl,
			EnableDeregister: cfg.Naming.EnableDeregister,
			Resolver:         res,
			Scheduler:        scheduler,
		},
	})
	if err != nil {
		return err
	}
	if err := p2p.Init(ctx); err != nil {
		return errors.Wrap(err, "starting libp2p host")
	}
	defer func() { err = multierr.Append(err, p2p.Stop()) }()

	behaviour.Debug = cfg.General.Debug
	b, err := behaviour.New(behaviour.Config{
		Key:          priv,
		Requests:     requests,
		DHT:          p2p.Records(),
		Addrs:        p2p.PublishedAddrs,
		Store:        store,
		TrustedRoots: trusted,
	})
	if err != nil {
		return err
	}
	if err := b.Restore(ctx); err != nil {
		return err
	}

	runCtx, stop := context.WithCancel(ctx)
	var wg conc.WaitGroup
	defer wg.Wait()
	defer stop()

	wg.Go(func() {
		if err := b.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error("naming behaviour stopped", zap.Error(err))
		}
	})

	if err := p2p.Start(runCtx); err != nil {
		return err
	}

	for _, name := range domains {
		name := name
		wg.Go(func() { registerDomain(runCtx, ctl, name) })
	}

	republishTask := scheduler.AddTask(&bt.Task{
		Name:        "Republish names",
		Description: "Prunes ended grants, then republishes every claim and live grant",
		Function: func(interface{}) error {
			return republish(runCtx, store, b, ctl)
		},
		Triggers: []bt.Trigger{&bt.PeriodicTrigger{
			Interval: time.Duration(cfg.Naming.RepublishInterval) * time.Minute,
			CronExpr: cfg.Naming.RepublishCron,
		}},
		RetryPolicy: bt.RetryPolicy{MaxRetries: 2, Delay: time.Minute},
	})
	defer scheduler.RemoveTask(republishTask.ID)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Rest.Port),
		Handler:           api.NewServer(ctl, b).SetupRouter(cfg.Rest.AllowedOrigins...),
		ReadHeaderTimeout: 10 * time.Second,
	}
	wg.Go(func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error("rest api stopped", zap.Error(err))
		}
	})

	zlog.Sugar().Infof("naming service running as %s, api on %s", self, server.Addr)
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		zlog.Sugar().Warnf("systemd notification failed: %v", err)
	}

	<-ctx.Done()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	zlog.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		zlog.Sugar().Errorf("rest api shutdown: %v", err)
	}
	return nil
}

func registerDomain(ctx context.Context, ctl *control.Control, name record.Name) {
	ctx, cancel := context.WithTimeout(ctx, registerTimeout)
	defer cancel()
	if err := ctl.Register(ctx, name); err != nil {
		zlog.Warn("registering configured domain failed", zap.Stringer("name", name), zap.Error(err))
		return
	}
	zlog.Info("registered configured domain", zap.Stringer("name", name))
}

// pruner drops persisted grants whose lease has ended.
type pruner interface {
	PruneGrants(ctx context.Context, now time.Time) (int64, error)
}

type republisher interface {
	Republish(ctx context.Context, ctl *control.Control) error
}

func republish(ctx context.Context, store pruner, b republisher, ctl *control.Control) error {
	pruned, err := store.PruneGrants(ctx, time.Now())
	if err != nil {
		zlog.Sugar().Errorf("pruning ended grants: %v", err)
	} else if pruned > 0 {
		zlog.Sugar().Infof("pruned %d ended grants", pruned)
	}
	return multierr.Append(err, b.Republish(ctx, ctl))
}
