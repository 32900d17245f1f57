package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRFEnsureTokenIsStable(t *testing.T) {
	m := NewCSRFManager("csrfsecret")
	sess := &Session{ID: "sess-1"}

	token, issued, err := m.EnsureToken(sess)
	require.NoError(t, err)
	assert.True(t, issued)
	assert.NotEmpty(t, token)

	again, issued, err := m.EnsureToken(sess)
	require.NoError(t, err)
	assert.False(t, issued)
	assert.Equal(t, token, again)
}

func TestCSRFVerifyToken(t *testing.T) {
	m := NewCSRFManager("csrfsecret")
	sess := &Session{ID: "sess-1"}
	token, _, err := m.EnsureToken(sess)
	require.NoError(t, err)

	assert.NoError(t, m.VerifyToken(sess, token))
	assert.ErrorIs(t, m.VerifyToken(sess, "forged"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, m.VerifyToken(sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(nil, token), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(&Session{ID: "other"}, token), ErrCSRFTokenMissing)

	_, _, err = m.EnsureToken(nil)
	assert.Error(t, err)
}
