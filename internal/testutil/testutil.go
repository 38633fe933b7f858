// Package testutil provides a shared PostgreSQL container for integration tests.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// FixtureSQL creates the app_public/app_private schemas used by integration
// tests, with grants, policies, triggers, constraints and comments.
//
//go:embed testdata/fixture.sql
var FixtureSQL string

// Singleton container state
var (
	singletonOnce sync.Once
	singletonDSN  string
	singletonErr  error
)

// ensureSingleton starts one PostgreSQL container per test binary. Setting
// TABLERIZER_TEST_DATABASE_URL uses an existing server instead.
func ensureSingleton() (string, error) {
	singletonOnce.Do(func() {
		if dsn := os.Getenv("TABLERIZER_TEST_DATABASE_URL"); dsn != "" {
			singletonDSN = dsn
			return
		}

		ctx := context.Background()
		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("postgres"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			singletonErr = fmt.Errorf("failed to start PostgreSQL container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = container.Terminate(ctx)
			singletonErr = fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
			return
		}
		singletonDSN = dsn
		// ryuk terminates the container when the test binary exits
	})
	return singletonDSN, singletonErr
}

// DB returns a connection to a fresh database loaded with FixtureSQL, and its DSN.
// The database is dropped when the test completes.
func DB(tb testing.TB) (*sql.DB, string) {
	tb.Helper()

	db, dsn := EmptyDB(tb)
	_, err := db.Exec(FixtureSQL)
	require.NoError(tb, err, "failed to load fixture")
	return db, dsn
}

// EmptyDB returns a connection to a fresh empty database, and its DSN.
func EmptyDB(tb testing.TB) (*sql.DB, string) {
	tb.Helper()
	if testing.Short() {
		tb.Skip("skipping integration test in short mode")
	}

	adminDSN, err := ensureSingleton()
	require.NoError(tb, err, "failed to start PostgreSQL")

	name := uniqueDBName("tablerizer")
	require.NoError(tb, exec(context.Background(), adminDSN, fmt.Sprintf("CREATE DATABASE %s", name)),
		"failed to create test database")

	dsn, err := replaceDBName(adminDSN, name)
	require.NoError(tb, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(tb, err, "failed to connect to test database")
	require.NoError(tb, db.Ping(), "failed to ping test database")

	tb.Cleanup(func() {
		_ = db.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = exec(ctx, adminDSN, fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", name))
	})
	return db, dsn
}

func exec(ctx context.Context, dsn, stmt string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, stmt)
	return err
}

func uniqueDBName(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

// replaceDBName swaps the database in a postgres:// URL.
func replaceDBName(dsn, name string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parsing DSN: %w", err)
	}
	u.Path = "/" + name
	return u.String(), nil
}
