package logger

import (
	"os"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var err error

type Logger struct {
	*zap.Logger
}

// debug is read from the environment only: the config package logs through
// this package, so asking it here would be an import cycle.
func debug() bool {
	if _, ok := os.LookupEnv("ALTERNET_DEBUG"); ok {
		return true
	}
	return os.Getenv("MODE") == "development"
}

func (l *Logger) init() error {
	if debug() {
		zapConfig := zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		l.Logger, err = zapConfig.Build()
	} else {
		l.Logger, err = zap.NewProduction()
	}

	return err
}

// New takes in a package to initialize the new Logger in.
func New(pkg string) *Logger {
	Log := &Logger{}
	err = Log.init()
	if err != nil {
		panic(err)
	}

	Log.Logger = Log.Logger.With(
		zap.String("package", pkg),
	)

	return Log
}

// OtelZapLogger wraps a package logger so that context-aware calls
// (InfoContext, ErrorContext...) attach the active span, if any.
func OtelZapLogger(pkg string) otelzap.Logger {
	return *otelzap.New(New(pkg).Logger)
}
