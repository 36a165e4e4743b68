// Package dbtest connects repository integration tests to a Postgres
// instance described by the *_TEST environment variables.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/barelle/storefront/internal/config"
	"github.com/barelle/storefront/internal/db"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Config returns the test database settings, or false when DB_HOST_TEST is
// not set.
func Config() (config.PostgresConfig, bool) {
	host := os.Getenv("DB_HOST_TEST")
	if host == "" {
		return config.PostgresConfig{}, false
	}
	return config.PostgresConfig{
		Host:            host,
		Port:            getenv("DB_PORT_TEST", "5432"),
		User:            getenv("DB_USER_TEST", "postgres"),
		Password:        getenv("DB_PASSWORD_TEST", "postgres"),
		DBName:          getenv("DB_NAME_TEST", "storefront_test"),
		SSLMode:         getenv("DB_SSLMODE_TEST", "disable"),
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}, true
}

// Open migrates the test database and returns a pool, or nil when no test
// database is configured.
func Open() *pgxpool.Pool {
	cfg, ok := Config()
	if !ok {
		log.Info().Msg("DB_HOST_TEST not set, repository integration tests will be skipped")
		return nil
	}

	sqlDB, err := db.ConnectSQLX(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("host", cfg.Host).Msg("Failed to connect to test database")
	}
	if err := db.Migrate(sqlDB, cfg.DBName); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate test database")
	}
	sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, err := db.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open test pool")
	}
	return pg.Pool
}

// Require skips the test when pool is nil.
func Require(tb testing.TB, pool *pgxpool.Pool) {
	tb.Helper()
	if pool == nil {
		tb.Skip("test database not configured")
	}
}

// Truncate empties every storefront table.
func Truncate(tb testing.TB, pool *pgxpool.Pool) {
	tb.Helper()
	_, err := pool.Exec(context.Background(),
		"TRUNCATE TABLE order_items, orders, cart_items, products, categories, users RESTART IDENTITY CASCADE")
	if err != nil {
		tb.Fatalf("failed to truncate tables: %v", err)
	}
}

// OpenSQLX returns a database/sql handle on the test database for the sqlx
// read side, or nil when no test database is configured. Call Open first so
// the schema exists.
func OpenSQLX() *sqlx.DB {
	cfg, ok := Config()
	if !ok {
		return nil
	}
	sqlDB, err := db.ConnectSQLX(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("host", cfg.Host).Msg("Failed to connect to test database")
	}
	return sqlDB
}
