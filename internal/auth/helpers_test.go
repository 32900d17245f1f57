package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/roster-app/roster/internal/auth"
	"github.com/roster-app/roster/internal/rbac"
	"github.com/roster-app/roster/internal/shared"
	_ "github.com/roster-app/roster/testing"
)

type memRepo struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]auth.User
	findErr error
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[int64]auth.User)}
}

func (m *memRepo) CreateUser(ctx context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == user.Username {
			return auth.ErrDuplicateUsername
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = *user
	return nil
}

func (m *memRepo) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == username {
			u := existing
			return &u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	existing, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &existing, nil
}

func (m *memRepo) failLookups(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findErr = err
}

func (m *memRepo) GrantPermissions(ctx context.Context, id int64, perms rbac.Set) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	existing.Permissions = existing.Permissions.Union(perms)
	m.users[id] = existing
	return &existing, nil
}

func (m *memRepo) remove(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

func newService(t *testing.T) (*auth.Service, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	return auth.NewService(repo, nil, bcrypt.MinCost), repo
}

type sessionFixture struct {
	service  *auth.Service
	repo     *memRepo
	sessions *auth.Sessions
	manager  *shared.SessionManager
	redis    *miniredis.Miniredis
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	manager := shared.NewSessionManager(client, "roster_session", "secret", time.Hour, false)
	service, repo := newService(t)
	sessions := auth.NewSessions(manager, service, shared.NewCSRFManager("csrfsecret"), nil)
	return &sessionFixture{service: service, repo: repo, sessions: sessions, manager: manager, redis: mr}
}

func mustRegister(t *testing.T, service *auth.Service, username string, perms ...string) *auth.User {
	t.Helper()
	user, err := service.Register(context.Background(), auth.RegisterInput{
		Username:    username,
		Password:    "password123",
		Permissions: perms,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return user
}
