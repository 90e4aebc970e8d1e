// Package oauth provides background refresh scheduling for the chat token
// persisted in the credentials table. It performs jittered checks and
// refreshes when expiry falls within a configured window.
package oauth

import (
	"context"
	"database/sql"
	"log/slog"
	"math/rand"
	"time"

	"github.com/linelight/backend/db"
)

// RefreshFunc performs the provider-specific refresh and returns the new
// access token, refresh token and expiry.
type RefreshFunc func(ctx context.Context, refreshToken string) (access, refresh string, expiry time.Time, err error)

// StartRefresher launches a goroutine that periodically checks the stored
// chat token and refreshes it before it expires.
// interval: how often to wake up and check.
// window: refresh when remaining lifetime <= window.
func StartRefresher(ctx context.Context, dbx *sql.DB, interval, window time.Duration, fn RefreshFunc) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	// Randomize initial delay to spread load across instances.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval / 2)))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			// Per-iteration jitter (±20% of interval) for scheduling diversity.
			jitterRange := int64(interval / 5)
			//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
			jitter := time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
			nextSleep := interval + jitter
			if nextSleep < interval/2 {
				nextSleep = interval / 2
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextSleep):
			}
			if err := refreshOnce(ctx, dbx, window, fn); err != nil {
				slog.Warn("token refresh failed", slog.Any("err", err))
			}
		}
	}()
}

func refreshOnce(ctx context.Context, dbx *sql.DB, window time.Duration, fn RefreshFunc) error {
	_, expiry, err := db.GetCredential(ctx, dbx, db.CredentialChatToken)
	if err != nil {
		return err
	}
	// No stored expiry means an unmanaged token; leave it alone.
	if expiry.IsZero() || time.Until(expiry) > window {
		return nil
	}
	refresh, _, err := db.GetCredential(ctx, dbx, db.CredentialChatRefresh)
	if err != nil || refresh == "" {
		return err
	}
	rctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	newAccess, newRefresh, newExpiry, err := fn(rctx, refresh)
	cancel()
	if err != nil {
		return err
	}
	if newRefresh == "" {
		newRefresh = refresh
	}
	if err := db.UpsertCredential(ctx, dbx, db.CredentialChatToken, newAccess, newExpiry); err != nil {
		return err
	}
	if err := db.UpsertCredential(ctx, dbx, db.CredentialChatRefresh, newRefresh, time.Time{}); err != nil {
		return err
	}
	slog.Info("chat token refreshed", slog.Time("expires_at", newExpiry))
	return nil
}
