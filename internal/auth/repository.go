package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roster-app/roster/internal/platform/db"
	"github.com/roster-app/roster/internal/platform/httpx"
	"github.com/roster-app/roster/internal/rbac"
	"github.com/roster-app/roster/internal/shared"
)

// ErrDuplicateUsername indicates the username is already registered.
var ErrDuplicateUsername = fmt.Errorf("%w: username already exists", httpx.ErrDuplicate)

const usernameConstraint = "users_username_key"

// Repository defines persistence operations for the credential store.
type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	GrantPermissions(ctx context.Context, id int64, perms rbac.Set) (*User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, username, password_hash, permissions, created_at, updated_at`

// CreateUser inserts user and fills in its id and timestamps. The unique
// index on username decides concurrent registrations.
func (r *PGRepository) CreateUser(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id, created_at, updated_at`,
		user.Username, user.PasswordHash, user.Permissions.String(), now,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return mapInsertError(err)
	}
	return nil
}

func mapInsertError(err error) error {
	if db.IsUniqueViolation(err, usernameConstraint) {
		return ErrDuplicateUsername
	}
	return fmt.Errorf("insert user: %w", err)
}

// FindByUsername fetches a user by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GrantPermissions adds perms to the user's set under a row lock.
func (r *PGRepository) GrantPermissions(ctx context.Context, id int64, perms rbac.Set) (*User, error) {
	var user *User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		current.Permissions = current.Permissions.Union(perms)
		err = tx.QueryRow(ctx,
			`UPDATE users SET permissions = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at`,
			current.Permissions.String(), id,
		).Scan(&current.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update permissions: %w", err)
		}
		user = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		user  User
		perms string
	)
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &perms, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	set, err := rbac.ParseList(perms)
	if err != nil {
		return nil, fmt.Errorf("user %d: stored permissions: %w", user.ID, err)
	}
	user.Permissions = set
	return &user, nil
}

var _ Repository = (*PGRepository)(nil)
