package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/keyxmakerx/vpanel/internal/apperror"
)

// DefaultSessionTTL is the absolute session lifetime for every role.
const DefaultSessionTTL = 7 * 24 * time.Hour

// ResolveResult classifies a token lookup. Only ResolveValid authenticates;
// the other values exist for logging, metrics and tests and are collapsed
// into one 401 at the HTTP boundary.
type ResolveResult int

const (
	ResolveValid ResolveResult = iota
	ResolveNotFound
	ResolveExpired
	ResolveRevoked
	ResolveInactive
)

// String returns the metric label for r.
func (r ResolveResult) String() string {
	switch r {
	case ResolveValid:
		return "valid"
	case ResolveNotFound:
		return "not_found"
	case ResolveExpired:
		return "expired"
	case ResolveRevoked:
		return "revoked"
	case ResolveInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of SessionStore.Resolve. Session is set only
// when Result is ResolveValid.
type Resolution struct {
	Result  ResolveResult
	Session *Session
}

// SessionStore creates, resolves and revokes sessions. Store failures are
// returned as apperror StoreUnavailable errors and never as a resolution.
type SessionStore interface {
	Create(ctx context.Context, userID, ip, userAgent string) (*IssuedSession, error)
	Resolve(ctx context.Context, token string) (*Resolution, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllForUser(ctx context.Context, userID string) (int, error)
	ReapExpired(ctx context.Context, before time.Time) (int, error)
}

// sessionStore implements SessionStore over a SessionRepository.
type sessionStore struct {
	repo SessionRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewSessionStore creates a session store. A non-positive ttl falls back
// to DefaultSessionTTL.
func NewSessionStore(repo SessionRepository, ttl time.Duration) SessionStore {
	return newSessionStore(repo, ttl, time.Now)
}

func newSessionStore(repo SessionRepository, ttl time.Duration, now func() time.Time) *sessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &sessionStore{repo: repo, ttl: ttl, now: now}
}

// Create issues a token, persists its fingerprint with expiry now + TTL and
// returns the raw token to the caller.
func (s *sessionStore) Create(ctx context.Context, userID, ip, userAgent string) (*IssuedSession, error) {
	token, err := IssueToken()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	now := s.now().UTC().Truncate(time.Second)
	rec := &SessionRecord{
		UserID:    userID,
		TokenHash: Fingerprint(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		IPAddress: NormalizeIP(ip),
		UserAgent: userAgent,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, apperror.NewUnavailable(fmt.Errorf("creating session: %w", err))
	}

	return &IssuedSession{Token: token, ExpiresAt: rec.ExpiresAt}, nil
}

// Resolve looks a token up by fingerprint and classifies it. A session is
// valid iff it is not revoked, expires strictly after now, and its owner
// is active.
func (s *sessionStore) Resolve(ctx context.Context, token string) (*Resolution, error) {
	if token == "" {
		return &Resolution{Result: ResolveNotFound}, nil
	}

	row, err := s.repo.FindByTokenHash(ctx, Fingerprint(token))
	if apperror.Is(err, "not_found") {
		return &Resolution{Result: ResolveNotFound}, nil
	}
	if err != nil {
		return nil, apperror.NewUnavailable(fmt.Errorf("resolving session: %w", err))
	}

	switch {
	case row.RevokedAt != nil:
		return &Resolution{Result: ResolveRevoked}, nil
	case !row.ExpiresAt.After(s.now()):
		return &Resolution{Result: ResolveExpired}, nil
	case !row.IsActive:
		return &Resolution{Result: ResolveInactive}, nil
	}

	return &Resolution{
		Result: ResolveValid,
		Session: &Session{
			Token:     token,
			UserID:    row.UserID,
			Username:  row.Username,
			Role:      row.Role,
			ExpiresAt: row.ExpiresAt,
		},
	}, nil
}

// Revoke marks the token's session revoked. Revoking an unknown or already
// revoked token is a no-op.
func (s *sessionStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := s.repo.RevokeByTokenHash(ctx, Fingerprint(token), s.now().UTC()); err != nil {
		return apperror.NewUnavailable(fmt.Errorf("revoking session: %w", err))
	}
	return nil
}

// RevokeAllForUser revokes every live session of userID.
func (s *sessionStore) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.RevokeAllForUser(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, apperror.NewUnavailable(fmt.Errorf("revoking user sessions: %w", err))
	}
	return int(n), nil
}

// ReapExpired deletes sessions that expired before the cutoff. Expiry is
// already enforced by Resolve; reaping only keeps the table small.
func (s *sessionStore) ReapExpired(ctx context.Context, before time.Time) (int, error) {
	n, err := s.repo.DeleteExpired(ctx, before.UTC())
	if err != nil {
		return 0, apperror.NewUnavailable(fmt.Errorf("reaping sessions: %w", err))
	}
	return int(n), nil
}
