package db

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/fintechindex/internal/auth"
	"github.com/geocoder89/fintechindex/internal/config"
	"github.com/geocoder89/fintechindex/internal/domain/user"
	"github.com/geocoder89/fintechindex/internal/security"
	"github.com/google/uuid"
)

type AdminSeedStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

// EnsureAdminUser creates the configured admin account, already verified, when
// it does not exist yet. Registration refuses the admin role, so this is the
// only way the first admin comes to be.
func EnsureAdminUser(ctx context.Context, store AdminSeedStore, cfg config.Config) (bool, error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}

	_, err := store.GetByEmail(ctx, cfg.AdminEmail)

	if err == nil {
		return false, nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return false, err
	}

	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Email:        user.NormalizeEmail(cfg.AdminEmail),
		PasswordHash: hash,
		Name:         cfg.AdminName,
		Role:         auth.RoleAdmin,
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = store.Create(ctx, u)

	if errors.Is(err, user.ErrEmailTaken) {
		// another instance seeded it first
		return false, nil
	}

	return err == nil, err
}
