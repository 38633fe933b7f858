package catalog

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Querier is the minimal interface needed to read the catalog.
// Implemented by *sql.DB, *sql.Tx, and *sql.Conn. A *sql.Tx or *sql.Conn is
// inspected one query at a time.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to PostgreSQL through the pgx database/sql driver and
// verifies the connection. An empty dsn falls back to the libpq environment
// variables (PGHOST, PGDATABASE, ...).
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single export never needs more than a handful of connections.
	db.SetMaxOpenConns(4)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}
