package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/keyxmakerx/vpanel/internal/apperror"
)

// memUserRepo is an in-memory UserRepository. Set failErr to make every
// call fail like an unreachable database.
type memUserRepo struct {
	mu      sync.Mutex
	users   map[string]*User
	failErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*User{}}
}

func (r *memUserRepo) add(u *User) *User {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return u
}

func (r *memUserRepo) get(id string) *User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (r *memUserRepo) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	for _, u := range r.users {
		if u.Username == user.Username {
			return errDuplicateUser
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, apperror.NewNotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByUsername(_ context.Context, username string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("user not found")
}

func (r *memUserRepo) List(_ context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	out := []User{}
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *memUserRepo) Update(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	for id, u := range r.users {
		if id != user.ID && u.Username == user.Username {
			return errDuplicateUser
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id, passwordHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	u, ok := r.users[id]
	if !ok {
		return apperror.NewNotFound("user not found")
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = at
	return nil
}

func (r *memUserRepo) RecordLogin(_ context.Context, id, ip string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	if u, ok := r.users[id]; ok {
		u.LastLoginAt = &at
		u.LastLoginIP = &ip
	}
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	if _, ok := r.users[id]; !ok {
		return apperror.NewNotFound("user not found")
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) CountActiveAdmins(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return 0, r.failErr
	}
	n := 0
	for _, u := range r.users {
		if u.Role == RoleAdmin && u.IsActive {
			n++
		}
	}
	return n, nil
}

// memLoginLogRepo is an in-memory LoginLogRepository.
type memLoginLogRepo struct {
	mu     sync.Mutex
	nextID int64
	logs   []LoginLog
}

func (r *memLoginLogRepo) Insert(_ context.Context, userID, ip, userAgent string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.logs = append(r.logs, LoginLog{ID: r.nextID, UserID: userID, IPAddress: ip, UserAgent: userAgent, CreatedAt: at})
	return nil
}

func (r *memLoginLogRepo) ListRecent(_ context.Context, limit int) ([]LoginLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []LoginLog{}
	for i := len(r.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.logs[i])
	}
	return out, nil
}

func (r *memLoginLogRepo) DeleteAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.logs))
	r.logs = nil
	return n, nil
}

// memSessionRepo is an in-memory SessionRepository that joins against a
// memUserRepo the way the SQL query joins users.
type memSessionRepo struct {
	mu       sync.Mutex
	users    *memUserRepo
	nextID   int64
	sessions map[string]*SessionRecord
	failErr  error
}

func newMemSessionRepo(users *memUserRepo) *memSessionRepo {
	return &memSessionRepo{users: users, sessions: map[string]*SessionRecord{}}
}

func (r *memSessionRepo) Insert(_ context.Context, rec *SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	r.nextID++
	rec.ID = r.nextID
	cp := *rec
	r.sessions[rec.TokenHash] = &cp
	return nil
}

func (r *memSessionRepo) FindByTokenHash(_ context.Context, tokenHash string) (*SessionWithUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	rec, ok := r.sessions[tokenHash]
	if !ok {
		return nil, apperror.NewNotFound("session not found")
	}
	u := r.users.get(rec.UserID)
	if u == nil {
		return nil, apperror.NewNotFound("session not found")
	}
	return &SessionWithUser{SessionRecord: *rec, Username: u.Username, Role: u.Role, IsActive: u.IsActive}, nil
}

func (r *memSessionRepo) RevokeByTokenHash(_ context.Context, tokenHash string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return 0, r.failErr
	}
	rec, ok := r.sessions[tokenHash]
	if !ok || rec.RevokedAt != nil {
		return 0, nil
	}
	rec.RevokedAt = &at
	return 1, nil
}

func (r *memSessionRepo) RevokeAllForUser(_ context.Context, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return 0, r.failErr
	}
	var n int64
	for _, rec := range r.sessions {
		if rec.UserID == userID && rec.RevokedAt == nil && rec.ExpiresAt.After(at) {
			rec.RevokedAt = &at
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return 0, r.failErr
	}
	var n int64
	for k, rec := range r.sessions {
		if rec.ExpiresAt.Before(before) {
			delete(r.sessions, k)
			n++
		}
	}
	return n, nil
}

// record returns a copy of the stored row for token.
func (r *memSessionRepo) record(token string) *SessionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[Fingerprint(token)]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// --- Shared helpers ---

// testHash caches one argon2id hash per password; hashing is deliberately slow.
var (
	testHashMu    sync.Mutex
	testHashCache = map[string]string{}
)

func testHash(password string) string {
	testHashMu.Lock()
	defer testHashMu.Unlock()
	if h, ok := testHashCache[password]; ok {
		return h
	}
	h, err := HashPassword(password)
	if err != nil {
		panic(err)
	}
	testHashCache[password] = h
	return h
}

func newTestUser(id, username, password string, role Role) *User {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &User{
		ID:           id,
		Username:     username,
		PasswordHash: testHash(password),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
