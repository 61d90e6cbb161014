package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/The127/ioc"
	"github.com/avast/retry-go"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/logging"
	"github.com/the127/chunkyard/internal/services/kv"
)

// Kv registers the checkpoint store. The returned function releases its
// connections.
func Kv(dc *ioc.DependencyCollection, kvConfig config.KvConfig) func() error {
	store, closeFn := connectToKv(kvConfig)

	if kvConfig.Cache && kvConfig.Mode != config.KvModeInMemory {
		store = kv.NewCachingStore(store, kvConfig.CacheTtl)
	}

	ioc.RegisterSingleton(dc, func(_ *ioc.DependencyProvider) kv.Store {
		return store
	})

	return closeFn
}

func connectToKv(kvConfig config.KvConfig) (kv.Store, func() error) {
	noop := func() error { return nil }

	switch kvConfig.Mode {
	case config.KvModeInMemory:
		return kv.NewMemoryStore(), noop

	case config.KvModeFile:
		store, err := kv.NewFileStore(kvConfig.File.Path)
		if err != nil {
			panic(fmt.Errorf("failed to open kv directory: %w", err))
		}
		return store, noop

	case config.KvModeRedis:
		store := kv.NewRedisStore(kvConfig)
		withRetry("connect to redis", func() error {
			return store.Ping(context.Background())
		})

		return store, store.Close

	case config.KvModePostgres:
		var store *kv.PostgresStore
		withRetry("connect to postgres", func() error {
			var err error
			store, err = kv.NewPostgresStore(kvConfig.Postgres)
			if err != nil {
				return err
			}
			return store.Migrate()
		})

		return store, store.Close

	default:
		panic(fmt.Errorf("unsupported kv mode: %s", kvConfig.Mode))
	}
}

func withRetry(action string, f func() error) {
	err := retry.Do(
		f,
		retry.Attempts(5),
		retry.Delay(time.Second*5),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			logging.Logger.Warnf("failed to %s: %s, retrying in 5 seconds", action, err)
		}),
	)
	if err != nil {
		logging.Logger.Panicf("failed to %s: %s", action, err)
	}
}
