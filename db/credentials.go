package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Credential names used across the service.
const (
	CredentialChatToken    = "twitch_chat_token"
	CredentialChatRefresh  = "twitch_chat_refresh_token"
	CredentialClientID     = "twitch_client_id"
	CredentialClientSecret = "twitch_client_secret"
)

// UpsertCredential stores or updates a named credential. When encryption is
// enabled (ENCRYPTION_KEY set) the value is sealed before storage and the
// row is marked encryption_version=1.
func UpsertCredential(ctx context.Context, dbx *sql.DB, name, value string, expiry time.Time) error {
	s, err := getSealer()
	if err != nil {
		return fmt.Errorf("get sealer: %w", err)
	}
	encVersion := 0
	toStore := value
	if s != nil && value != "" {
		sealed, err := s.Seal(value)
		if err != nil {
			return fmt.Errorf("seal credential %s: %w", name, err)
		}
		toStore = sealed
		encVersion = 1
	}
	q := `INSERT INTO credentials(name, value, expires_at, encryption_version, updated_at)
		  VALUES($1,$2,$3,$4,NOW())
		  ON CONFLICT(name) DO UPDATE SET
		    value=EXCLUDED.value,
		    expires_at=EXCLUDED.expires_at,
		    encryption_version=EXCLUDED.encryption_version,
		    updated_at=NOW()`
	_, err = dbx.ExecContext(ctx, q, name, toStore, nullableTime(expiry), encVersion)
	return err
}

// GetCredential retrieves a stored credential; missing rows return zero
// values with no error. Sealed values (encryption_version=1) are opened
// transparently; rows written before encryption was enabled read back as
// plaintext.
func GetCredential(ctx context.Context, dbx *sql.DB, name string) (value string, expiry time.Time, err error) {
	var encVersion int
	var exp sql.NullTime
	row := dbx.QueryRowContext(ctx,
		`SELECT value, expires_at, COALESCE(encryption_version, 0) FROM credentials WHERE name = $1`, name)
	err = row.Scan(&value, &exp, &encVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, err
	}
	if exp.Valid {
		expiry = exp.Time
	}
	if encVersion == 1 {
		s, sErr := getSealer()
		if sErr != nil {
			return "", time.Time{}, fmt.Errorf("get sealer for decryption: %w", sErr)
		}
		if s == nil {
			return "", time.Time{}, fmt.Errorf("credential %s is encrypted but ENCRYPTION_KEY not configured", name)
		}
		opened, oErr := s.Open(value)
		if oErr != nil {
			return "", time.Time{}, fmt.Errorf("open credential %s: %w", name, oErr)
		}
		value = opened
	}
	return value, expiry, nil
}

// DeleteCredential removes a credential and reports whether a row existed.
func DeleteCredential(ctx context.Context, dbx *sql.DB, name string) (bool, error) {
	res, err := dbx.ExecContext(ctx, `DELETE FROM credentials WHERE name = $1`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
