package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	violation := &pgconn.PgError{Code: "23505", ConstraintName: "persons_email_key"}

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "matching constraint", err: violation, constraint: "persons_email_key", want: true},
		{name: "wrapped", err: fmt.Errorf("insert person: %w", violation), constraint: "persons_email_key", want: true},
		{name: "any constraint", err: violation, constraint: "", want: true},
		{name: "other constraint", err: violation, constraint: "users_username_key", want: false},
		{name: "other code", err: &pgconn.PgError{Code: "23503", ConstraintName: "persons_email_key"}, constraint: "persons_email_key", want: false},
		{name: "not a pg error", err: errors.New("connection reset"), constraint: "persons_email_key", want: false},
		{name: "nil", err: nil, constraint: "", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsUniqueViolation(tc.err, tc.constraint))
		})
	}
}
