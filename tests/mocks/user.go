package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
	userDomain "github.com/davicafu/hexasync/internal/user/domain"
)

// InMemoryUserRepo simula UserRepository. Guarda copias para que el test
// no comparta punteros con el servicio.
type InMemoryUserRepo struct {
	Users map[uuid.UUID]userDomain.User
	mu    sync.Mutex
}

func NewInMemoryUserRepo() *InMemoryUserRepo {
	return &InMemoryUserRepo{Users: make(map[uuid.UUID]userDomain.User)}
}

func (r *InMemoryUserRepo) Create(ctx context.Context, u *userDomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Users {
		if existing.ID == u.ID || strings.EqualFold(existing.Email, u.Email) {
			return userDomain.ErrUserAlreadyExists
		}
	}
	r.Users[u.ID] = *u
	return nil
}

func (r *InMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[id]
	if !ok {
		return nil, userDomain.ErrUserNotFound
	}
	return &u, nil
}

func (r *InMemoryUserRepo) Update(ctx context.Context, u *userDomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Users[u.ID]; !ok {
		return userDomain.ErrUserNotFound
	}
	r.Users[u.ID] = *u
	return nil
}

func (r *InMemoryUserRepo) List(ctx context.Context, f userDomain.UserFilter) ([]*userDomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*userDomain.User
	for _, u := range r.Users {
		if f.Email != nil && u.Email != *f.Email {
			continue
		}
		if f.Nombre != nil && !strings.Contains(strings.ToLower(u.Nombre), strings.ToLower(*f.Nombre)) {
			continue
		}
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if f.Pagination.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Pagination.Offset:]
	if f.Pagination.Limit > 0 && len(out) > f.Pagination.Limit {
		out = out[:f.Pagination.Limit]
	}
	return out, nil
}

var _ userDomain.UserRepository = (*InMemoryUserRepo)(nil)

// InMemoryActivityRepo guarda el historial indexado por EventID.
type InMemoryActivityRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]userDomain.Activity
}

func NewInMemoryActivityRepo() *InMemoryActivityRepo {
	return &InMemoryActivityRepo{entries: make(map[uuid.UUID]userDomain.Activity)}
}

func (r *InMemoryActivityRepo) Record(ctx context.Context, a userDomain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[a.EventID]; !ok {
		r.entries[a.EventID] = a
	}
	return nil
}

func (r *InMemoryActivityRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]userDomain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []userDomain.Activity
	for _, a := range r.entries {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ userDomain.ActivityRepository = (*InMemoryActivityRepo)(nil)

// RecordingOutbox ejecuta la mutación y anota los eventos. Con FailWith
// devuelve ese error sin ejecutar nada, como una transacción que no abre.
type RecordingOutbox struct {
	mu       sync.Mutex
	Events   []sharedEvents.DomainEvent
	FailWith error
}

func (o *RecordingOutbox) Append(ctx context.Context, mutate func(ctx context.Context) error, evts ...sharedEvents.DomainEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.FailWith != nil {
		return o.FailWith
	}
	if mutate != nil {
		if err := mutate(ctx); err != nil {
			return err
		}
	}
	o.Events = append(o.Events, evts...)
	return nil
}

func (o *RecordingOutbox) Stage(ctx context.Context, evts ...sharedEvents.DomainEvent) error {
	return o.Append(ctx, nil, evts...)
}

func (o *RecordingOutbox) Types() []sharedEvents.EventType {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]sharedEvents.EventType, 0, len(o.Events))
	for _, e := range o.Events {
		out = append(out, e.Type)
	}
	return out
}
