// Package db provides the Postgres connection, schema migration, and the
// persistence helpers behind credentials, preferences and the highlight
// audit log.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'

	"github.com/linelight/backend/crypto"
)

var (
	// sealer encrypts credentials at rest; nil when ENCRYPTION_KEY is unset.
	sealer     crypto.Sealer
	sealerOnce sync.Once
	sealerErr  error
)

// getSealer lazily builds the credential sealer from ENCRYPTION_KEY. A
// missing key disables encryption (encryption_version = 0); an invalid key
// is an error on every use.
func getSealer() (crypto.Sealer, error) {
	sealerOnce.Do(func() {
		key := os.Getenv("ENCRYPTION_KEY")
		if key == "" {
			slog.Warn("ENCRYPTION_KEY not set, credentials will be stored in plaintext (not recommended for production)", slog.String("component", "db_encryption"))
			return
		}
		s, err := crypto.NewAESSealer(key)
		if err != nil {
			sealerErr = fmt.Errorf("failed to initialize encryption: %w", err)
			slog.Error("encryption initialization failed", slog.Any("err", sealerErr), slog.String("component", "db_encryption"))
			return
		}
		sealer = s
		slog.Info("credential encryption enabled (AES-256-GCM)", slog.String("component", "db_encryption"))
	})
	if sealerErr != nil {
		return nil, sealerErr
	}
	return sealer, nil
}

// Connect opens a Postgres connection for the given DSN.
func Connect(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for all required tables and
// indices. It is the fallback path when the versioned migrations directory
// is not shipped alongside the binary.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			name TEXT PRIMARY KEY,
			value TEXT,
			expires_at TIMESTAMPTZ,
			encryption_version INTEGER DEFAULT 0,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS highlight_events (
			id SERIAL PRIMARY KEY,
			action TEXT NOT NULL,
			username TEXT,
			document TEXT,
			start_line INTEGER,
			end_line INTEGER,
			comment TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_highlight_events_created ON highlight_events(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_highlight_events_action ON highlight_events(action)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}
