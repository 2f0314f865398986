package db

import (
	"context"
	"database/sql"
	"fmt"

	libdb "evtelemetry/backend/libs/db"
)

// Options controls how the telemetry database is opened.
type Options struct {
	DSN         string
	MaxOpenConn int
	AutoMigrate bool
}

// Open connects to Postgres and, when asked, brings the schema up to date.
func Open(ctx context.Context, opts Options) (*sql.DB, error) {
	sqlDB, err := libdb.NewPostgresDB(opts.DSN, libdb.PoolOptions{MaxOpenConns: opts.MaxOpenConn})
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}
	if !opts.AutoMigrate {
		return sqlDB, nil
	}
	if err := EnsureSchema(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}
