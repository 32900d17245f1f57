package persons_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/roster-app/roster/internal/persons"
	"github.com/roster-app/roster/internal/rbac"
	"github.com/roster-app/roster/internal/shared"
	_ "github.com/roster-app/roster/testing"
)

// memRepo serializes transactions and applies their writes only on success.
type memRepo struct {
	mu         sync.Mutex
	nextID     int64
	rows       map[int64]persons.Person
	failInsert error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[int64]persons.Person)}
}

func (m *memRepo) List(ctx context.Context) ([]persons.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]persons.Person, 0, len(m.rows))
	for _, p := range m.rows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) Get(ctx context.Context, id int64) (persons.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return persons.Person{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memRepo) WithinTx(ctx context.Context, fn func(persons.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{repo: m, rows: make(map[int64]persons.Person, len(m.rows)), nextID: m.nextID}
	for id, p := range m.rows {
		tx.rows[id] = p
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.rows = tx.rows
	m.nextID = tx.nextID
	return nil
}

// seed inserts p directly, bypassing access control.
func (m *memRepo) seed(p persons.Person) persons.Person {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	m.rows[p.ID] = p
	return p
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memTx struct {
	repo   *memRepo
	rows   map[int64]persons.Person
	nextID int64
}

func (t *memTx) GetForUpdate(ctx context.Context, id int64) (persons.Person, error) {
	p, ok := t.rows[id]
	if !ok {
		return persons.Person{}, shared.ErrNotFound
	}
	return p, nil
}

func (t *memTx) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	for id, p := range t.rows {
		if id != excludeID && p.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) Insert(ctx context.Context, p persons.Person) (persons.Person, error) {
	if t.repo.failInsert != nil {
		return persons.Person{}, t.repo.failInsert
	}
	t.nextID++
	p.ID = t.nextID
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	t.rows[p.ID] = p
	return p, nil
}

func (t *memTx) Update(ctx context.Context, p persons.Person) (persons.Person, error) {
	if _, ok := t.rows[p.ID]; !ok {
		return persons.Person{}, shared.ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	t.rows[p.ID] = p
	return p, nil
}

func (t *memTx) Delete(ctx context.Context, id int64) error {
	if _, ok := t.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(t.rows, id)
	return nil
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{keys: make(map[string]struct{})}
}

func (m *memIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[module+":"+key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+":"+key] = struct{}{}
	return nil
}

func (m *memIdempotency) Delete(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, module+":"+key)
	return nil
}

type decisionLog struct {
	mu      sync.Mutex
	entries []string
}

func (d *decisionLog) RecordDecision(permission, outcome string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, permission+":"+outcome)
}

func (d *decisionLog) contains(entry string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.entries {
		if e == entry {
			return true
		}
	}
	return false
}

type fixture struct {
	repo      *memRepo
	idem      *memIdempotency
	decisions *decisionLog
	service   *persons.Service
}

func newFixture() *fixture {
	repo := newMemRepo()
	idem := newMemIdempotency()
	decisions := &decisionLog{}
	service := persons.NewService(repo, rbac.NewGuard(decisions), idem, nil)
	return &fixture{repo: repo, idem: idem, decisions: decisions, service: service}
}

func actor(id int64, perms ...rbac.Permission) *rbac.Actor {
	return &rbac.Actor{ID: id, Permissions: rbac.NewSet(perms...)}
}

func adminActor(id int64) *rbac.Actor {
	return &rbac.Actor{ID: id, Permissions: rbac.AllPermissions()}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func createReq(name string, age int, email string) persons.CreateRequest {
	return persons.CreateRequest{Name: name, Age: intPtr(age), Email: email}
}

var errBoom = errors.New("boom")
