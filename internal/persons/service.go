package persons

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roster-app/roster/internal/rbac"
	"github.com/roster-app/roster/internal/shared"
)

const idempotencyModule = "persons.create"

// IdempotencyStore claims request keys so a retried create is applied once.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Service applies access control and record invariants to person
// operations. Single-record operations check the base permission, load the
// record, check ownership, validate and only then write.
type Service struct {
	repo        Repository
	guard       *rbac.Guard
	idempotency IdempotencyStore
	logger      *slog.Logger
	validate    *validator.Validate
}

// NewService constructs the person service. idempotency may be nil, in which
// case idempotency keys are ignored.
func NewService(repo Repository, guard *rbac.Guard, idempotency IdempotencyStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if guard == nil {
		guard = rbac.NewGuard(nil)
	}
	return &Service{
		repo:        repo,
		guard:       guard,
		idempotency: idempotency,
		logger:      logger,
		validate:    validator.New(),
	}
}

// List returns every person. Listing is not filtered by ownership.
func (s *Service) List(ctx context.Context, actor *rbac.Actor) ([]Person, error) {
	if err := s.guard.Permit(actor, rbac.PermRead).Err(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// Get returns a single person the actor owns, or any person for admins.
func (s *Service) Get(ctx context.Context, actor *rbac.Actor, id int64) (Person, error) {
	if err := s.guard.Permit(actor, rbac.PermRead).Err(); err != nil {
		return Person{}, err
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Person{}, err
	}
	if err := s.guard.Authorize(actor, rbac.PermRead, rbac.OwnedBy(p.CreatedBy)).Err(); err != nil {
		return Person{}, err
	}
	return p, nil
}

// Create stores a new person stamped with the actor as creator.
func (s *Service) Create(ctx context.Context, actor *rbac.Actor, req CreateRequest) (Person, error) {
	return s.CreateWithKey(ctx, actor, "", req)
}

// CreateWithKey is Create guarded by an idempotency key. A key already used
// yields shared.ErrIdempotencyConflict; the key is released when the create
// fails.
func (s *Service) CreateWithKey(ctx context.Context, actor *rbac.Actor, key string, req CreateRequest) (Person, error) {
	if err := s.guard.Permit(actor, rbac.PermCreate).Err(); err != nil {
		return Person{}, err
	}
	if err := s.validate.Struct(req); err != nil {
		return Person{}, shared.ValidationError(err)
	}
	creator := actor.ID
	p := Person{
		Name:      strings.TrimSpace(req.Name),
		Age:       *req.Age,
		Email:     normalizeEmail(req.Email),
		Phone:     optional(req.Phone),
		Address:   optional(req.Address),
		CreatedBy: &creator,
	}
	if err := s.validateRecord(p); err != nil {
		return Person{}, err
	}

	key = strings.TrimSpace(key)
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			return Person{}, err
		}
	}

	var created Person
	err := s.repo.WithinTx(ctx, func(tx Store) error {
		taken, err := tx.EmailTaken(ctx, p.Email, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateEmail
		}
		created, err = tx.Insert(ctx, p)
		return err
	})
	if err != nil {
		if key != "" && s.idempotency != nil {
			if relErr := s.idempotency.Delete(ctx, key, idempotencyModule); relErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", relErr))
			}
		}
		return Person{}, err
	}
	s.logger.Info("person created", slog.Int64("person_id", created.ID), slog.Int64("user_id", actor.ID))
	return created, nil
}

// Update applies the fields present in req to a person the actor may edit.
func (s *Service) Update(ctx context.Context, actor *rbac.Actor, id int64, req UpdateRequest) (Person, error) {
	if err := s.guard.Permit(actor, rbac.PermUpdate).Err(); err != nil {
		return Person{}, err
	}
	var updated Person
	err := s.repo.WithinTx(ctx, func(tx Store) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.guard.Authorize(actor, rbac.PermUpdate, rbac.OwnedBy(current.CreatedBy)).Err(); err != nil {
			return err
		}
		next := apply(current, req)
		if err := s.validateRecord(next); err != nil {
			return err
		}
		if next.Email != current.Email {
			taken, err := tx.EmailTaken(ctx, next.Email, id)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateEmail
			}
		}
		updated, err = tx.Update(ctx, next)
		return err
	})
	if err != nil {
		return Person{}, err
	}
	return updated, nil
}

// Delete removes a person the actor may delete.
func (s *Service) Delete(ctx context.Context, actor *rbac.Actor, id int64) error {
	if err := s.guard.Permit(actor, rbac.PermDelete).Err(); err != nil {
		return err
	}
	err := s.repo.WithinTx(ctx, func(tx Store) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.guard.Authorize(actor, rbac.PermDelete, rbac.OwnedBy(current.CreatedBy)).Err(); err != nil {
			return err
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("person deleted", slog.Int64("person_id", id), slog.Int64("user_id", actor.ID))
	return nil
}

// apply merges the present fields of req into p. ID and CreatedBy are
// never touched.
func apply(p Person, req UpdateRequest) Person {
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Age != nil {
		p.Age = *req.Age
	}
	if req.Email != nil {
		p.Email = normalizeEmail(*req.Email)
	}
	if req.Phone != nil {
		p.Phone = optional(req.Phone)
	}
	if req.Address != nil {
		p.Address = optional(req.Address)
	}
	return p
}
