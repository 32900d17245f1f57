package persons

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roster-app/roster/internal/platform/db"
	"github.com/roster-app/roster/internal/shared"
)

const emailConstraint = "persons_email_key"

// Repository provides read access to persons and opens write transactions.
type Repository interface {
	List(ctx context.Context) ([]Person, error)
	Get(ctx context.Context, id int64) (Person, error)
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// Store is the transactional view used by mutations. Nothing written through
// it is visible unless the surrounding WithinTx callback returns nil.
type Store interface {
	GetForUpdate(ctx context.Context, id int64) (Person, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	Insert(ctx context.Context, p Person) (Person, error)
	Update(ctx context.Context, p Person) (Person, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const personColumns = `id, name, age, email, phone, address, created_by, created_at, updated_at`

func (r *repository) List(ctx context.Context) ([]Person, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+personColumns+` FROM persons ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	persons := make([]Person, 0)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Person, error) {
	return scanPerson(r.pool.QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1`, id))
}

func (r *repository) WithinTx(ctx context.Context, fn func(Store) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

type txStore struct {
	tx pgx.Tx
}

func (s *txStore) GetForUpdate(ctx context.Context, id int64) (Person, error) {
	return scanPerson(s.tx.QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1 FOR UPDATE`, id))
}

func (s *txStore) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var taken bool
	err := s.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM persons WHERE email = $1 AND id <> $2)`, email, excludeID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return taken, nil
}

func (s *txStore) Insert(ctx context.Context, p Person) (Person, error) {
	row := s.tx.QueryRow(ctx, `
		INSERT INTO persons (name, age, email, phone, address, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING `+personColumns,
		p.Name, p.Age, p.Email, p.Phone, p.Address, p.CreatedBy,
	)
	created, err := scanPerson(row)
	if err != nil {
		return Person{}, mapWriteError("insert person", err)
	}
	return created, nil
}

func (s *txStore) Update(ctx context.Context, p Person) (Person, error) {
	row := s.tx.QueryRow(ctx, `
		UPDATE persons
		SET name = $2, age = $3, email = $4, phone = $5, address = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+personColumns,
		p.ID, p.Name, p.Age, p.Email, p.Phone, p.Address,
	)
	updated, err := scanPerson(row)
	if err != nil {
		return Person{}, mapWriteError("update person", err)
	}
	return updated, nil
}

func (s *txStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.tx.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanPerson(row pgx.Row) (Person, error) {
	var p Person
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Email, &p.Phone, &p.Address, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Person{}, shared.ErrNotFound
		}
		return Person{}, err
	}
	return p, nil
}

func mapWriteError(op string, err error) error {
	if db.IsUniqueViolation(err, emailConstraint) {
		return ErrDuplicateEmail
	}
	if errors.Is(err, shared.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
