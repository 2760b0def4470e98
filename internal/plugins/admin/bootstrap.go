package admin

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/vpanel/internal/config"
	"github.com/keyxmakerx/vpanel/internal/plugins/auth"
)

// bootstrapPasswordLength is the length of the generated first-run password.
const bootstrapPasswordLength = 32

// BootstrapAdmin creates the first admin account when enabled and no active
// admin exists. The generated password is written to cfg.PasswordPath with
// mode 0600, or logged once when no path is configured.
func BootstrapAdmin(ctx context.Context, users auth.UserRepository, cfg config.BootstrapConfig) error {
	if !cfg.Enabled {
		return nil
	}

	admins, err := users.CountActiveAdmins(ctx)
	if err != nil {
		return fmt.Errorf("counting admins: %w", err)
	}
	if admins > 0 {
		return nil
	}

	username, err := validateUsername(cfg.Username)
	if err != nil {
		return fmt.Errorf("bootstrap username: %w", err)
	}
	password, err := generatePassword(bootstrapPasswordLength)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	user := &auth.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, user); err != nil {
		return fmt.Errorf("creating bootstrap admin: %w", err)
	}

	if cfg.PasswordPath != "" {
		if err := os.WriteFile(cfg.PasswordPath, []byte(password+"\n"), 0o600); err != nil {
			return fmt.Errorf("writing bootstrap password: %w", err)
		}
		slog.Warn("initial admin created; credentials written to file",
			slog.String("username", username),
			slog.String("path", cfg.PasswordPath),
		)
		return nil
	}

	slog.Warn("initial admin created; change this password after first login",
		slog.String("username", username),
		slog.String("password", password),
	)
	return nil
}

func generatePassword(length int) (string, error) {
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
