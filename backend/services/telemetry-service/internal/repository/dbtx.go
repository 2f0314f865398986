package repository

import (
	"context"
	"database/sql"
	"errors"
)

var (
	// ErrMappingNotFound indicates no mapping row for a vehicle.
	ErrMappingNotFound = errors.New("mapping not found")
	// ErrLatestNotFound indicates no latest-state row for a device.
	ErrLatestNotFound = errors.New("latest state not found")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run inside
// or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
