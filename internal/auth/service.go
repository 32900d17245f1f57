package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	"github.com/roster-app/roster/internal/rbac"
	"github.com/roster-app/roster/internal/shared"
)

// Service is the credential store: it owns user identity and password
// verification.
type Service struct {
	repo       Repository
	logger     *slog.Logger
	validate   *validator.Validate
	bcryptCost int
}

// NewService constructs a new Service.
func NewService(repo Repository, logger *slog.Logger, bcryptCost int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, validate: validator.New(), bcryptCost: bcryptCost}
}

// NormalizeUsername trims surrounding space and applies Unicode NFC so that
// visually identical names collide.
func NormalizeUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(username))
}

// Register creates a user. Unknown permission tokens reject the request.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Username = NormalizeUsername(in.Username)
	if err := s.validate.Struct(in); err != nil {
		return nil, shared.ValidationError(err)
	}
	perms, err := rbac.ParseSet(in.Permissions)
	if err != nil {
		return nil, err
	}
	if perms.IsEmpty() {
		perms = rbac.DefaultSet()
	}

	existing, err := s.repo.FindByUsername(ctx, in.Username)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateUsername
	}

	hash, err := HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &User{Username: in.Username, PasswordHash: hash, Permissions: perms}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", slog.Int64("user_id", user.ID), slog.String("permissions", perms.String()))
	return user, nil
}

// Verify checks username/password credentials. Every failure, including
// lookup errors, is reported as shared.ErrInvalidCredentials.
func (s *Service) Verify(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("verify credentials lookup", slog.Any("error", err))
		}
		burnComparison(password)
		return nil, shared.ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// FindByID returns the current state of a user.
func (s *Service) FindByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByUsername returns the user registered under username.
func (s *Service) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.FindByUsername(ctx, NormalizeUsername(username))
}

// GrantPermissions adds perms to a user's live set. Open sessions observe the
// grant on their next request.
func (s *Service) GrantPermissions(ctx context.Context, userID int64, perms rbac.Set) (*User, error) {
	user, err := s.repo.GrantPermissions(ctx, userID, perms)
	if err != nil {
		return nil, fmt.Errorf("grant permissions: %w", err)
	}
	s.logger.Info("permissions granted", slog.Int64("user_id", userID), slog.String("permissions", user.Permissions.String()))
	return user, nil
}
