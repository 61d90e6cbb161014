package kv

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	_ "github.com/lib/pq"
	"github.com/rubenv/sql-migrate"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/logging"
)

//go:embed migrations/*
var migrations embed.FS

const kvTable = "kv_entries"

func NewPostgresStore(pc config.PostgresConfig) (*PostgresStore, error) {
	logging.Logger.Infof("Connecting to kv database %s via %s:%d",
		pc.Database,
		pc.Host,
		pc.Port)

	connectionString := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		pc.Host,
		pc.Port,
		pc.Database,
		pc.Username,
		pc.Password,
		pc.SslMode)

	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	return &PostgresStore{
		db: db,
	}, nil
}

type PostgresStore struct {
	db *sql.DB
}

func (p *PostgresStore) Migrate() error {
	source := migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations,
		Root:       "migrations",
	}

	logging.Logger.Infof("Applying kv migrations...")

	n, err := migrate.Exec(p.db, "postgres", source, migrate.Up)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logging.Logger.Infof("Applied %d kv migrations", n)
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	query, args := buildGetQuery(key, time.Now())
	logging.Logger.Debugf("query: %s, args: %+v", query, args)

	var value string
	err := p.db.QueryRowContext(ctx, query, args...).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("scanning row: %w", err)
	}

	return value, true, nil
}

func (p *PostgresStore) Set(ctx context.Context, key string, value string, opts ...Option) error {
	options := applyOptions(opts)

	var expiresAt *time.Time
	if options.Expiration > 0 {
		t := time.Now().Add(options.Expiration)
		expiresAt = &t
	}

	query, args := buildUpsertQuery(key, value, expiresAt)
	logging.Logger.Debugf("query: %s, args: %+v", query, args)

	_, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("upserting entry: %w", err)
	}

	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	query, args := buildDeleteQuery(key)
	logging.Logger.Debugf("query: %s, args: %+v", query, args)

	_, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}

	return nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func buildGetQuery(key string, now time.Time) (string, []interface{}) {
	s := sqlbuilder.Select("value").From(kvTable)
	s.Where(
		s.Equal("key", key),
		s.Or(
			s.IsNull("expires_at"),
			s.GreaterThan("expires_at", now),
		),
	)
	s.Limit(1)

	return s.BuildWithFlavor(sqlbuilder.PostgreSQL)
}

func buildUpsertQuery(key string, value string, expiresAt *time.Time) (string, []interface{}) {
	i := sqlbuilder.InsertInto(kvTable)
	i.Cols("key", "value", "expires_at", "updated_at")
	i.Values(key, value, expiresAt, sqlbuilder.Raw("now()"))
	i.SQL("on conflict (key) do update set value = excluded.value, expires_at = excluded.expires_at, updated_at = excluded.updated_at")

	return i.BuildWithFlavor(sqlbuilder.PostgreSQL)
}

func buildDeleteQuery(key string) (string, []interface{}) {
	d := sqlbuilder.DeleteFrom(kvTable)
	d.Where(d.Equal("key", key))

	return d.BuildWithFlavor(sqlbuilder.PostgreSQL)
}
