package logging

import (
	"fmt"

	"github.com/the127/chunkyard/internal/args"

	"go.uber.org/zap"
)

// Logger is a no-op until Init is called, so packages can log from tests.
var Logger = zap.NewNop().Sugar()

func Init() {
	if args.IsProduction() {
		logger, err := zap.NewProduction()
		if err != nil {
			panic(fmt.Errorf("failed to initialize production logger: %w", err))
		}
		Logger = logger.Sugar()
	} else {
		logger, err := zap.NewDevelopment()
		if err != nil {
			panic(fmt.Errorf("failed to initialize development logger: %w", err))
		}
		Logger = logger.Sugar()
	}
}

// Leveled adapts the sugared logger to clients that expect a
// msg + key/value pairs logger, e.g. retryablehttp.
type Leveled struct {
	Logger *zap.SugaredLogger
}

func (l Leveled) Error(msg string, keysAndValues ...interface{}) {
	l.Logger.Errorw(msg, keysAndValues...)
}

func (l Leveled) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Infow(msg, keysAndValues...)
}

func (l Leveled) Debug(msg string, keysAndValues ...interface{}) {
	l.Logger.Debugw(msg, keysAndValues...)
}

func (l Leveled) Warn(msg string, keysAndValues ...interface{}) {
	l.Logger.Warnw(msg, keysAndValues...)
}
