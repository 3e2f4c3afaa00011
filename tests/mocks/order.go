package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	orderDomain "github.com/davicafu/hexasync/internal/order/domain"
)

type InMemoryOrderRepo struct {
	mu     sync.Mutex
	Orders map[uuid.UUID]orderDomain.Order
}

func NewInMemoryOrderRepo() *InMemoryOrderRepo {
	return &InMemoryOrderRepo{Orders: make(map[uuid.UUID]orderDomain.Order)}
}

func (r *InMemoryOrderRepo) Create(ctx context.Context, o *orderDomain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *InMemoryOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*orderDomain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.Orders[id]
	if !ok {
		return nil, orderDomain.ErrOrderNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r *InMemoryOrderRepo) Update(ctx context.Context, o *orderDomain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Orders[o.ID]; !ok {
		return orderDomain.ErrOrderNotFound
	}
	r.Orders[o.ID] = cloneOrder(*o)
	return nil
}

func cloneOrder(o orderDomain.Order) orderDomain.Order {
	o.Items = append([]orderDomain.OrderItem(nil), o.Items...)
	return o
}

// InMemoryReplicaRepo aplica la misma regla que los stores reales: un hecho
// más antiguo que lo guardado se ignora.
type InMemoryReplicaRepo struct {
	mu       sync.Mutex
	Users    map[uuid.UUID]orderDomain.KnownUser
	Products map[uuid.UUID]orderDomain.CatalogProduct
}

func NewInMemoryReplicaRepo() *InMemoryReplicaRepo {
	return &InMemoryReplicaRepo{
		Users:    make(map[uuid.UUID]orderDomain.KnownUser),
		Products: make(map[uuid.UUID]orderDomain.CatalogProduct),
	}
}

func (r *InMemoryReplicaRepo) UpsertUser(ctx context.Context, u orderDomain.KnownUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.Users[u.ID]; ok && cur.UpdatedAt.After(u.UpdatedAt) {
		return nil
	}
	r.Users[u.ID] = u
	return nil
}

func (r *InMemoryReplicaRepo) GetUser(ctx context.Context, id uuid.UUID) (*orderDomain.KnownUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[id]
	if !ok {
		return nil, orderDomain.ErrUnknownUser
	}
	return &u, nil
}

func (r *InMemoryReplicaRepo) UpsertProduct(ctx context.Context, p orderDomain.CatalogProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.Products[p.ID]; ok && cur.UpdatedAt.After(p.UpdatedAt) {
		return nil
	}
	r.Products[p.ID] = p
	return nil
}

func (r *InMemoryReplicaRepo) GetProduct(ctx context.Context, id uuid.UUID) (*orderDomain.CatalogProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Products[id]
	if !ok {
		return nil, orderDomain.ErrUnknownProduct
	}
	return &p, nil
}

func (r *InMemoryReplicaRepo) UpdateStock(ctx context.Context, productID uuid.UUID, remaining int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Products[productID]
	if !ok || p.UpdatedAt.After(at) {
		return nil
	}
	p.Stock = remaining
	p.UpdatedAt = at
	r.Products[productID] = p
	return nil
}

var (
	_ orderDomain.OrderRepository   = (*InMemoryOrderRepo)(nil)
	_ orderDomain.ReplicaRepository = (*InMemoryReplicaRepo)(nil)
)
