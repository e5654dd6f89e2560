package catalog

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// ExecFunc adapts a function to the internal execer interface.
type ExecFunc func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

func (f ExecFunc) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return f(ctx, sql, args...)
}

// NewWithExecer builds a Catalog over a fake connection.
func NewWithExecer(db ExecFunc) *Catalog {
	return &Catalog{db: db}
}

var (
	MigrationURL = migrationURL
	MigrationFS  = migrationFS
)
