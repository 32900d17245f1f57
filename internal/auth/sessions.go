package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roster-app/roster/internal/rbac"
	"github.com/roster-app/roster/internal/shared"
)

// SessionStore persists sessions by token.
type SessionStore interface {
	Create(ctx context.Context, sess *shared.Session) error
	Get(ctx context.Context, id string) (*shared.Session, error)
	Save(ctx context.Context, sess *shared.Session) error
	Delete(ctx context.Context, id string) error
}

// Sessions binds session tokens to users. A token is anonymous until login
// and unusable after logout.
type Sessions struct {
	store  SessionStore
	users  *Service
	csrf   *shared.CSRFManager
	logger *slog.Logger
}

// NewSessions constructs Sessions. csrf may be nil when CSRF is disabled.
func NewSessions(store SessionStore, users *Service, csrf *shared.CSRFManager, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{store: store, users: users, csrf: csrf, logger: logger}
}

// Anonymous creates a session bound to no user, carrying a CSRF token.
func (s *Sessions) Anonymous(ctx context.Context) (*shared.Session, error) {
	sess := &shared.Session{}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.issueCSRF(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// EnsureCSRF returns the CSRF token of sess, minting and persisting one
// when absent.
func (s *Sessions) EnsureCSRF(ctx context.Context, sess *shared.Session) (string, error) {
	if s.csrf == nil {
		return "", errors.New("csrf disabled")
	}
	token, issued, err := s.csrf.EnsureToken(sess)
	if err != nil {
		return "", err
	}
	if issued {
		if err := s.store.Save(ctx, sess); err != nil {
			return "", fmt.Errorf("persist csrf token: %w", err)
		}
	}
	return token, nil
}

// Login verifies credentials and opens a new authenticated session.
func (s *Sessions) Login(ctx context.Context, username, password string) (*shared.Session, *User, error) {
	user, err := s.users.Verify(ctx, username, password)
	if err != nil {
		return nil, nil, err
	}
	sess := &shared.Session{UserID: user.ID, Permissions: user.Permissions.Strings()}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	if err := s.issueCSRF(ctx, sess); err != nil {
		return nil, nil, err
	}
	s.logger.Info("user logged in", slog.Int64("user_id", user.ID))
	return sess, user, nil
}

// CurrentUser resolves token to the user it belongs to. Permissions come
// from the credential store, not from the login snapshot.
func (s *Sessions) CurrentUser(ctx context.Context, token string) (*User, error) {
	sess, err := s.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, shared.ErrSessionNotFound) {
			return nil, rbac.ErrUnauthenticated
		}
		return nil, err
	}
	return s.UserForSession(ctx, sess)
}

// UserForSession is CurrentUser for an already loaded session.
func (s *Sessions) UserForSession(ctx context.Context, sess *shared.Session) (*User, error) {
	if !sess.Authenticated() {
		return nil, rbac.ErrUnauthenticated
	}
	user, err := s.users.FindByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, rbac.ErrUnauthenticated
		}
		return nil, fmt.Errorf("load session user: %w", err)
	}
	return user, nil
}

// Logout terminates the session. Unknown tokens are ignored.
func (s *Sessions) Logout(ctx context.Context, token string) error {
	return s.store.Delete(ctx, token)
}

func (s *Sessions) issueCSRF(ctx context.Context, sess *shared.Session) error {
	if s.csrf == nil {
		return nil
	}
	if _, err := s.EnsureCSRF(ctx, sess); err != nil {
		return err
	}
	return nil
}
