package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roster-app/roster/internal/rbac"
	"github.com/roster-app/roster/internal/shared"
)

const (
	// AdminUsername is the account created on first start.
	AdminUsername = "admin"
	// DefaultAdminPassword is used when no admin password is configured.
	DefaultAdminPassword = "admin123"
)

// SeedAdmin creates the admin account with every permission unless it
// already exists. Existing admins are left untouched.
func SeedAdmin(ctx context.Context, service *Service, password string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	_, err := service.FindByUsername(ctx, AdminUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("lookup admin: %w", err)
	}
	if password == "" {
		password = DefaultAdminPassword
	}
	if password == DefaultAdminPassword {
		logger.Warn("admin account seeded with the default password; set ADMIN_PASSWORD")
	}
	_, err = service.Register(ctx, RegisterInput{
		Username:    AdminUsername,
		Password:    password,
		Permissions: rbac.AllPermissions().Strings(),
	})
	if errors.Is(err, ErrDuplicateUsername) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	logger.Info("admin account created", slog.String("username", AdminUsername))
	return nil
}
