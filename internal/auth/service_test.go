package auth_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roster-app/roster/internal/auth"
	"github.com/roster-app/roster/internal/platform/httpx"
	"github.com/roster-app/roster/internal/rbac"
	"github.com/roster-app/roster/internal/shared"
)

func TestRegisterDefaultsToRead(t *testing.T) {
	service, _ := newService(t)

	user, err := service.Register(context.Background(), auth.RegisterInput{Username: "ann", Password: "password123"})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, rbac.DefaultSet(), user.Permissions)
	assert.NotEqual(t, "password123", user.PasswordHash)
}

func TestRegisterNormalizesPermissions(t *testing.T) {
	service, _ := newService(t)

	user, err := service.Register(context.Background(), auth.RegisterInput{
		Username:    "bo",
		Password:    "password123",
		Permissions: []string{" Create", "read", "create"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "create"}, user.Permissions.Strings())
}

func TestRegisterRejectsUnknownPermission(t *testing.T) {
	service, repo := newService(t)

	_, err := service.Register(context.Background(), auth.RegisterInput{
		Username:    "eve",
		Password:    "password123",
		Permissions: []string{"read", "superuser"},
	})
	require.ErrorIs(t, err, rbac.ErrUnknownPermission)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Empty(t, repo.users)
}

func TestRegisterValidatesInput(t *testing.T) {
	service, _ := newService(t)

	cases := map[string]auth.RegisterInput{
		"missing username": {Password: "password123"},
		"blank username":   {Username: "   ", Password: "password123"},
		"short password":   {Username: "ann", Password: "short"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := service.Register(context.Background(), in)
			require.ErrorIs(t, err, httpx.ErrValidation)
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	service, _ := newService(t)
	mustRegister(t, service, "ann")

	_, err := service.Register(context.Background(), auth.RegisterInput{Username: "  ann ", Password: "password123"})
	require.ErrorIs(t, err, auth.ErrDuplicateUsername)
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestRegisterConcurrentSameUsernameHasOneWinner(t *testing.T) {
	service, repo := newService(t)

	const attempts = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		dupes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Register(context.Background(), auth.RegisterInput{Username: "race", Password: "password123"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, auth.ErrDuplicateUsername) {
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, dupes)
	assert.Len(t, repo.users, 1)
}

func TestVerifyFailuresAreIndistinguishable(t *testing.T) {
	service, _ := newService(t)
	mustRegister(t, service, "ann")

	_, wrongPassword := service.Verify(context.Background(), "ann", "not-the-password")
	_, unknownUser := service.Verify(context.Background(), "nobody", "password123")

	assert.Equal(t, shared.ErrInvalidCredentials, wrongPassword)
	assert.Equal(t, shared.ErrInvalidCredentials, unknownUser)
}

func TestVerifySucceeds(t *testing.T) {
	service, _ := newService(t)
	registered := mustRegister(t, service, "ann", "read", "create")

	user, err := service.Verify(context.Background(), " ann", "password123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.True(t, user.Permissions.Has(rbac.PermCreate))
}

func TestGrantPermissionsUnionsExistingSet(t *testing.T) {
	service, _ := newService(t)
	user := mustRegister(t, service, "ann", "read")

	updated, err := service.GrantPermissions(context.Background(), user.ID, rbac.NewSet(rbac.PermDelete))
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "delete"}, updated.Permissions.Strings())

	_, err = service.GrantPermissions(context.Background(), 999, rbac.NewSet(rbac.PermDelete))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := auth.HashPassword("password123", 0)
	require.NoError(t, err)
	require.NoError(t, auth.VerifyPassword(hash, "password123"))
	assert.Error(t, auth.VerifyPassword(hash, "password124"))
	assert.Error(t, auth.VerifyPassword("", "password123"))

	_, err = auth.HashPassword("", 0)
	assert.Error(t, err)
}
