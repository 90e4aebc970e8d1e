package db

import (
	"context"
	"database/sql"
	"errors"
)

const prefAlwaysRemoveKey = "unhighlight_on_disconnect"

// PrefStore persists small service preferences in the kv table. It backs
// the connection state machine's always-remove-on-disconnect setting.
type PrefStore struct{ DB *sql.DB }

// AlwaysRemoveOnDisconnect reads the persisted preference; an absent key
// reads as false.
func (p *PrefStore) AlwaysRemoveOnDisconnect(ctx context.Context) (bool, error) {
	v, err := GetKV(ctx, p.DB, prefAlwaysRemoveKey)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// SetAlwaysRemoveOnDisconnect persists the preference.
func (p *PrefStore) SetAlwaysRemoveOnDisconnect(ctx context.Context, v bool) error {
	s := "false"
	if v {
		s = "true"
	}
	return SetKV(ctx, p.DB, prefAlwaysRemoveKey, s)
}

// SeedAlwaysRemove writes the configured default only when no value has
// been persisted yet, so a user's answered prompt always wins over env.
func (p *PrefStore) SeedAlwaysRemove(ctx context.Context, v bool) error {
	existing, err := GetKV(ctx, p.DB, prefAlwaysRemoveKey)
	if err != nil || existing != "" {
		return err
	}
	return p.SetAlwaysRemoveOnDisconnect(ctx, v)
}

// GetKV reads a kv row; a missing key returns an empty string.
func GetKV(ctx context.Context, dbx *sql.DB, key string) (string, error) {
	var v string
	err := dbx.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// SetKV upserts a kv row.
func SetKV(ctx context.Context, dbx *sql.DB, key, value string) error {
	_, err := dbx.ExecContext(ctx,
		`INSERT INTO kv(key, value, updated_at) VALUES($1,$2,NOW())
		 ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`, key, value)
	return err
}
