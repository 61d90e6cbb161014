package setup

import (
	"fmt"

	"github.com/The127/ioc"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/database"
	"github.com/the127/chunkyard/internal/database/inmemory"
	"github.com/the127/chunkyard/internal/database/postgres"
)

// Database registers the upload metadata store and applies its migrations.
func Database(dc *ioc.DependencyCollection, c config.DatabaseConfig) database.Database {
	db := newDatabase(c)

	withRetry("migrate database", db.Migrate)

	ioc.RegisterScoped(dc, func(_ *ioc.DependencyProvider) database.Factory {
		return database.NewDbFactory(db)
	})

	return db
}

func newDatabase(c config.DatabaseConfig) database.Database {
	switch c.Mode {
	case config.DatabaseModeInMemory, "":
		db, err := inmemory.NewInMemoryDatabase()
		if err != nil {
			panic(fmt.Errorf("failed to create database: %w", err))
		}
		return db

	case config.DatabaseModePostgres:
		db, err := postgres.NewPostgresDatabase(c.Postgres)
		if err != nil {
			panic(fmt.Errorf("failed to create database: %w", err))
		}
		return db

	default:
		panic(fmt.Errorf("unsupported database mode: %s", c.Mode))
	}
}
