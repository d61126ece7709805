package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flavio-cbz/logistix/internal/domain/model"
	"github.com/flavio-cbz/logistix/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionRepo)(nil)

// SessionRepo is the SQLite implementation of the SessionStore port.
// Credentials arrive here already encrypted; the repo never sees plaintext.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new SessionRepo backed by the given DB.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Find retrieves the session record for the given user.
// Returns nil, nil if no record exists.
func (r *SessionRepo) Find(ctx context.Context, userID string) (*model.MarketSession, error) {
	const query = `
		SELECT user_id, encrypted_credential, status, last_validated_at,
		       last_refreshed_at, refresh_error_message, updated_at
		FROM market_sessions WHERE user_id = ?`

	session, err := scanSession(r.db.Reader.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session %q: %w", userID, err)
	}

	return session, nil
}

// Upsert stores or replaces the session record keyed by UserID.
func (r *SessionRepo) Upsert(ctx context.Context, session model.MarketSession) error {
	const query = `
		INSERT INTO market_sessions
			(user_id, encrypted_credential, status, last_validated_at,
			 last_refreshed_at, refresh_error_message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			encrypted_credential = excluded.encrypted_credential,
			status = excluded.status,
			last_validated_at = excluded.last_validated_at,
			last_refreshed_at = excluded.last_refreshed_at,
			refresh_error_message = excluded.refresh_error_message,
			updated_at = CURRENT_TIMESTAMP`

	_, err := r.db.Writer.ExecContext(ctx, query,
		session.UserID,
		session.EncryptedCredential,
		string(session.Status),
		formatNullableTime(session.LastValidatedAt),
		formatNullableTime(session.LastRefreshedAt),
		session.RefreshErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("upsert session %q: %w", session.UserID, err)
	}

	return nil
}

// ListAll returns every stored session record ordered by user id.
func (r *SessionRepo) ListAll(ctx context.Context) ([]model.MarketSession, error) {
	const query = `
		SELECT user_id, encrypted_credential, status, last_validated_at,
		       last_refreshed_at, refresh_error_message, updated_at
		FROM market_sessions ORDER BY user_id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.MarketSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

func scanSession(s scanner) (*model.MarketSession, error) {
	var session model.MarketSession
	var status string
	var lastValidated, lastRefreshed sql.NullString
	var updatedAt string

	err := s.Scan(
		&session.UserID,
		&session.EncryptedCredential,
		&status,
		&lastValidated,
		&lastRefreshed,
		&session.RefreshErrorMessage,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	session.Status = model.SessionStatus(status)

	if session.LastValidatedAt, err = parseNullableTime(lastValidated); err != nil {
		return nil, fmt.Errorf("parse last_validated_at: %w", err)
	}
	if session.LastRefreshedAt, err = parseNullableTime(lastRefreshed); err != nil {
		return nil, fmt.Errorf("parse last_refreshed_at: %w", err)
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &session, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// formatNullableTime converts an optional timestamp to a driver value,
// preserving NULL for unset timestamps.
func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
