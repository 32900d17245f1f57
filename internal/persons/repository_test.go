package persons

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roster-app/roster/internal/shared"
)

func TestMapWriteError(t *testing.T) {
	violation := &pgconn.PgError{Code: "23505", ConstraintName: emailConstraint}

	t.Run("email violation", func(t *testing.T) {
		assert.ErrorIs(t, mapWriteError("insert person", violation), ErrDuplicateEmail)
	})
	t.Run("wrapped email violation", func(t *testing.T) {
		err := mapWriteError("update person", fmt.Errorf("exec: %w", violation))
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})
	t.Run("other constraint", func(t *testing.T) {
		other := &pgconn.PgError{Code: "23505", ConstraintName: "persons_pkey"}
		err := mapWriteError("insert person", other)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicateEmail)
		assert.ErrorIs(t, err, other)
		assert.Contains(t, err.Error(), "insert person")
	})
	t.Run("not found passes through", func(t *testing.T) {
		assert.Equal(t, shared.ErrNotFound, mapWriteError("delete person", shared.ErrNotFound))
	})
	t.Run("plain error", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := mapWriteError("insert person", cause)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, ErrDuplicateEmail)
	})
}
