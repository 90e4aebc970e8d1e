package db

import (
	"context"
	"database/sql"
	"log/slog"
	"time"
)

// Event is one row of the highlight audit log.
type Event struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	User      string    `json:"user,omitempty"`
	Document  string    `json:"document,omitempty"`
	StartLine int       `json:"start_line,omitempty"`
	EndLine   int       `json:"end_line,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder appends highlight activity to the highlight_events table for
// post-stream review. Failures are logged and swallowed so persistence
// problems never stall the router.
type Recorder struct{ DB *sql.DB }

// Record implements the router's audit hook.
func (r *Recorder) Record(ctx context.Context, action, user, document string, startLine, endLine int, comment string) {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO highlight_events(action, username, document, start_line, end_line, comment)
		 VALUES($1,$2,$3,$4,$5,$6)`,
		action, user, document, startLine, endLine, comment)
	if err != nil {
		slog.Warn("audit insert failed", slog.String("action", action), slog.Any("err", err))
	}
}

// History returns the most recent audit events, newest first.
func (r *Recorder) History(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, action, COALESCE(username,''), COALESCE(document,''),
		        COALESCE(start_line,0), COALESCE(end_line,0), COALESCE(comment,''), created_at
		 FROM highlight_events ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Action, &e.User, &e.Document, &e.StartLine, &e.EndLine, &e.Comment, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
