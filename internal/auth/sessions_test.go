package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roster-app/roster/internal/rbac"
	"github.com/roster-app/roster/internal/shared"
)

func TestLoginOpensAuthenticatedSession(t *testing.T) {
	fx := newSessionFixture(t)
	registered := mustRegister(t, fx.service, "ann", "read", "create")

	sess, user, err := fx.sessions.Login(context.Background(), "ann", "password123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.CSRFToken)
	assert.Equal(t, []string{"read", "create"}, sess.Permissions)

	current, err := fx.sessions.CurrentUser(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann", current.Username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	fx := newSessionFixture(t)
	mustRegister(t, fx.service, "ann")

	sess, user, err := fx.sessions.Login(context.Background(), "ann", "wrong-password")
	assert.Equal(t, shared.ErrInvalidCredentials, err)
	assert.Nil(t, sess)
	assert.Nil(t, user)
}

func TestCurrentUserSeesGrantsMadeAfterLogin(t *testing.T) {
	fx := newSessionFixture(t)
	registered := mustRegister(t, fx.service, "ann", "read")

	sess, _, err := fx.sessions.Login(context.Background(), "ann", "password123")
	require.NoError(t, err)

	_, err = fx.service.GrantPermissions(context.Background(), registered.ID, rbac.NewSet(rbac.PermCreate))
	require.NoError(t, err)

	current, err := fx.sessions.CurrentUser(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, current.Permissions.Has(rbac.PermCreate))
	assert.Equal(t, []string{"read"}, sess.Permissions)
}

func TestLogoutTerminatesSession(t *testing.T) {
	fx := newSessionFixture(t)
	mustRegister(t, fx.service, "ann")

	sess, _, err := fx.sessions.Login(context.Background(), "ann", "password123")
	require.NoError(t, err)

	require.NoError(t, fx.sessions.Logout(context.Background(), sess.ID))
	require.NoError(t, fx.sessions.Logout(context.Background(), sess.ID))

	_, err = fx.sessions.CurrentUser(context.Background(), sess.ID)
	assert.ErrorIs(t, err, rbac.ErrUnauthenticated)
}

func TestCurrentUserRejectsUnusableTokens(t *testing.T) {
	fx := newSessionFixture(t)
	user := mustRegister(t, fx.service, "ann")

	anon, err := fx.sessions.Anonymous(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, anon.CSRFToken)

	_, err = fx.sessions.CurrentUser(context.Background(), anon.ID)
	assert.ErrorIs(t, err, rbac.ErrUnauthenticated)

	_, err = fx.sessions.CurrentUser(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, rbac.ErrUnauthenticated)

	_, err = fx.sessions.CurrentUser(context.Background(), "")
	assert.ErrorIs(t, err, rbac.ErrUnauthenticated)

	sess, _, err := fx.sessions.Login(context.Background(), "ann", "password123")
	require.NoError(t, err)
	fx.repo.remove(user.ID)
	_, err = fx.sessions.CurrentUser(context.Background(), sess.ID)
	assert.ErrorIs(t, err, rbac.ErrUnauthenticated)
}

func TestSessionExpiresAfterTTL(t *testing.T) {
	fx := newSessionFixture(t)
	mustRegister(t, fx.service, "ann")

	sess, _, err := fx.sessions.Login(context.Background(), "ann", "password123")
	require.NoError(t, err)

	fx.redis.FastForward(fx.manager.TTL() + time.Second)

	_, err = fx.sessions.CurrentUser(context.Background(), sess.ID)
	assert.ErrorIs(t, err, rbac.ErrUnauthenticated)
}

func TestEnsureCSRFIsStable(t *testing.T) {
	fx := newSessionFixture(t)

	anon, err := fx.sessions.Anonymous(context.Background())
	require.NoError(t, err)

	token, err := fx.sessions.EnsureCSRF(context.Background(), anon)
	require.NoError(t, err)
	assert.Equal(t, anon.CSRFToken, token)

	stored, err := fx.manager.Get(context.Background(), anon.ID)
	require.NoError(t, err)
	assert.Equal(t, token, stored.CSRFToken)
}
