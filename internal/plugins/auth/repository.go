package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/vpanel/internal/apperror"
)

// mysqlErrDuplicateEntry is MariaDB's ER_DUP_ENTRY.
const mysqlErrDuplicateEntry = 1062

// errDuplicateUser is reported for any unique-key collision on users. The
// message does not say which field collided.
var errDuplicateUser = apperror.NewConflict("could not save user")

// UserRepository defines the data access contract for principals.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	RecordLogin(ctx context.Context, id, ip string, at time.Time) error
	Delete(ctx context.Context, id string) error
	CountActiveAdmins(ctx context.Context) (int, error)
}

// LoginLogRepository persists the append-only login history.
type LoginLogRepository interface {
	Insert(ctx context.Context, userID, ip, userAgent string, at time.Time) error
	ListRecent(ctx context.Context, limit int) ([]LoginLog, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// userRepository implements UserRepository with hand-written MariaDB queries.
type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository backed by the given DB pool.
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, password_hash, role, is_active,
	                 last_login_at, last_login_ip, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Role,
		&u.IsActive,
		&u.LastLoginAt,
		&u.LastLoginIP,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// Create inserts a new user row. A duplicate username yields a generic
// Conflict error.
func (r *userRepository) Create(ctx context.Context, user *User) error {
	query := `INSERT INTO users (id, username, password_hash, role, is_active, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isDuplicateKey(err) {
		return errDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// FindByID retrieves a user by UUID.
// Returns apperror.NotFound if no user exists with this ID.
func (r *userRepository) FindByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by id: %w", err)
	}
	return user, nil
}

// FindByUsername retrieves a user by exact, case-sensitive username.
// Returns apperror.NotFound if no user matches.
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by username: %w", err)
	}
	return user, nil
}

// List returns every user ordered by username.
func (r *userRepository) List(ctx context.Context) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY username`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Update writes the mutable profile fields of a user the caller has
// already loaded: username, role, active flag, password hash.
func (r *userRepository) Update(ctx context.Context, user *User) error {
	query := `UPDATE users
	          SET username = ?, role = ?, is_active = ?, password_hash = ?, updated_at = ?
	          WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query,
		user.Username,
		user.Role,
		user.IsActive,
		user.PasswordHash,
		user.UpdatedAt,
		user.ID,
	)
	if isDuplicateKey(err) {
		return errDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

// UpdatePassword sets a new password hash for a user.
func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	query := `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, passwordHash, at, id)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return checkRowsAffected(result, "user not found")
}

// RecordLogin stores the last-login bookkeeping for a user.
func (r *userRepository) RecordLogin(ctx context.Context, id, ip string, at time.Time) error {
	query := `UPDATE users SET last_login_at = ?, last_login_ip = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, at, ip, id); err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}

// Delete removes a user. Sessions and login logs cascade.
func (r *userRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return checkRowsAffected(result, "user not found")
}

// CountActiveAdmins returns the number of active admins.
func (r *userRepository) CountActiveAdmins(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE role = 'admin' AND is_active = TRUE`
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return count, nil
}

// --- Login logs ---

// loginLogRepository implements LoginLogRepository on MariaDB.
type loginLogRepository struct {
	db *sql.DB
}

// NewLoginLogRepository creates a login log repository.
func NewLoginLogRepository(db *sql.DB) LoginLogRepository {
	return &loginLogRepository{db: db}
}

// Insert appends a login log entry.
func (r *loginLogRepository) Insert(ctx context.Context, userID, ip, userAgent string, at time.Time) error {
	query := `INSERT INTO login_logs (user_id, ip_address, user_agent, created_at) VALUES (?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query, userID, ip, truncate(userAgent, maxUserAgentLen), at); err != nil {
		return fmt.Errorf("inserting login log: %w", err)
	}
	return nil
}

// ListRecent returns up to limit entries, most recent first.
func (r *loginLogRepository) ListRecent(ctx context.Context, limit int) ([]LoginLog, error) {
	query := `SELECT l.id, l.user_id, u.username, l.ip_address, l.user_agent, l.created_at
	          FROM login_logs l
	          JOIN users u ON u.id = l.user_id
	          ORDER BY l.created_at DESC, l.id DESC
	          LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing login logs: %w", err)
	}
	defer rows.Close()

	logs := []LoginLog{}
	for rows.Next() {
		var l LoginLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Username, &l.IPAddress, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning login log row: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// DeleteAll purges the login history and returns the number of rows removed.
func (r *loginLogRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM login_logs`)
	if err != nil {
		return 0, fmt.Errorf("purging login logs: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// --- Helpers ---

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
}

func checkRowsAffected(result sql.Result, notFoundMsg string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound(notFoundMsg)
	}
	return nil
}
