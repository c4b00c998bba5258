package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var schemas = map[string][]string{
	"postgres": {
		`CREATE TABLE IF NOT EXISTS news_sources (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) UNIQUE NOT NULL,
			feed_url VARCHAR(1000) NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS news (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			published_at TIMESTAMPTZ NOT NULL,
			image VARCHAR(500) NOT NULL DEFAULT '',
			link VARCHAR(1000) UNIQUE,
			source_id BIGINT REFERENCES news_sources(id) ON DELETE SET NULL,
			posted_at TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS idx_news_published ON news(published_at DESC);`,
		`CREATE TABLE IF NOT EXISTS currency_rates (
			symbol VARCHAR(10) PRIMARY KEY,
			rate NUMERIC(20, 4) NOT NULL,
			glyph VARCHAR(8) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			provider VARCHAR(100) NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS currency_rate_history (
			id BIGSERIAL PRIMARY KEY,
			symbol VARCHAR(10) NOT NULL,
			rate NUMERIC(20, 4) NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			provider VARCHAR(100) NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rate_history_symbol ON currency_rate_history(symbol, recorded_at DESC);`,
	},
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS news_sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			feed_url TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS news (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			published_at DATETIME NOT NULL,
			image TEXT NOT NULL DEFAULT '',
			link TEXT UNIQUE,
			source_id INTEGER REFERENCES news_sources(id) ON DELETE SET NULL,
			posted_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_news_published ON news(published_at DESC);`,
		`CREATE TABLE IF NOT EXISTS currency_rates (
			symbol TEXT PRIMARY KEY,
			rate NUMERIC(20, 4) NOT NULL,
			glyph TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			provider TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS currency_rate_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			rate NUMERIC(20, 4) NOT NULL,
			recorded_at DATETIME NOT NULL,
			provider TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rate_history_symbol ON currency_rate_history(symbol, recorded_at DESC);`,
	},
}

// Open connects to the database. driver is "postgres" or "sqlite".
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// sqlite допускает только одного писателя
		db.SetMaxOpenConns(1)

		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	return db, nil
}

func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts, ok := schemas[db.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %s", db.DriverName())
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}
