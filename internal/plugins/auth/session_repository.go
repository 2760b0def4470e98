package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keyxmakerx/vpanel/internal/apperror"
)

// SessionRepository is the SQL seam beneath SessionStore. It never sees a
// raw token, only fingerprints.
type SessionRepository interface {
	Insert(ctx context.Context, rec *SessionRecord) error

	// FindByTokenHash reads a session joined to its owner in one query.
	// Returns apperror.NotFound if no session has this fingerprint.
	FindByTokenHash(ctx context.Context, tokenHash string) (*SessionWithUser, error)

	// RevokeByTokenHash sets revoked_at on a session that is not yet revoked.
	RevokeByTokenHash(ctx context.Context, tokenHash string, at time.Time) (int64, error)

	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// sessionRepository implements SessionRepository on MariaDB.
type sessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a session repository backed by the given pool.
func NewSessionRepository(db *sql.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// Insert persists a new session and sets rec.ID.
func (r *sessionRepository) Insert(ctx context.Context, rec *SessionRecord) error {
	query := `INSERT INTO sessions (user_id, token_hash, created_at, expires_at, ip_address, user_agent)
	          VALUES (?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		rec.UserID,
		rec.TokenHash,
		rec.CreatedAt,
		rec.ExpiresAt,
		rec.IPAddress,
		truncate(rec.UserAgent, maxUserAgentLen),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// FindByTokenHash loads a session and its principal. Validity filtering is
// left to the caller so the reason for rejection stays observable.
func (r *sessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*SessionWithUser, error) {
	query := `SELECT s.id, s.user_id, s.token_hash, s.created_at, s.expires_at, s.revoked_at,
	                 s.ip_address, s.user_agent, u.username, u.role, u.is_active
	          FROM sessions s
	          JOIN users u ON u.id = s.user_id
	          WHERE s.token_hash = ?`

	s := &SessionWithUser{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&s.ID,
		&s.UserID,
		&s.TokenHash,
		&s.CreatedAt,
		&s.ExpiresAt,
		&s.RevokedAt,
		&s.IPAddress,
		&s.UserAgent,
		&s.Username,
		&s.Role,
		&s.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return s, nil
}

// RevokeByTokenHash returns the number of sessions revoked (0 or 1).
func (r *sessionRepository) RevokeByTokenHash(ctx context.Context, tokenHash string, at time.Time) (int64, error) {
	query := `UPDATE sessions SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, at, tokenHash)
	if err != nil {
		return 0, fmt.Errorf("revoking session: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// RevokeAllForUser revokes every live session of a user.
func (r *sessionRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	query := `UPDATE sessions SET revoked_at = ?
	          WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?`

	result, err := r.db.ExecContext(ctx, query, at, userID, at)
	if err != nil {
		return 0, fmt.Errorf("revoking user sessions: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// DeleteExpired removes sessions whose expiry is before the cutoff.
func (r *sessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
