package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	productDomain "github.com/davicafu/hexasync/internal/product/domain"
)

// InMemoryProductRepo simula ProductRepository sin transacciones: un
// Reserve que falla a mitad de pedido deja aplicadas las líneas anteriores.
type InMemoryProductRepo struct {
	mu           sync.Mutex
	Products     map[uuid.UUID]productDomain.Product
	Reservations []productDomain.Reservation
}

func NewInMemoryProductRepo() *InMemoryProductRepo {
	return &InMemoryProductRepo{Products: make(map[uuid.UUID]productDomain.Product)}
}

func (r *InMemoryProductRepo) Create(ctx context.Context, p *productDomain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Products[p.ID] = *p
	return nil
}

func (r *InMemoryProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*productDomain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Products[id]
	if !ok {
		return nil, productDomain.ErrProductNotFound
	}
	return &p, nil
}

func (r *InMemoryProductRepo) List(ctx context.Context, limit, offset int) ([]*productDomain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*productDomain.Product, 0, len(r.Products))
	for _, p := range r.Products {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryProductRepo) Reserve(ctx context.Context, res productDomain.Reservation) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Products[res.ProductID]
	if !ok {
		return 0, productDomain.ErrProductNotFound
	}
	if p.Stock < res.Quantity {
		return 0, productDomain.ErrInsufficientStock
	}
	p.Stock -= res.Quantity
	r.Products[p.ID] = p
	r.Reservations = append(r.Reservations, res)
	return p.Stock, nil
}

func (r *InMemoryProductRepo) Release(ctx context.Context, orderID uuid.UUID) ([]productDomain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var released, kept []productDomain.Reservation
	for _, res := range r.Reservations {
		if res.OrderID != orderID {
			kept = append(kept, res)
			continue
		}
		p := r.Products[res.ProductID]
		p.Stock += res.Quantity
		r.Products[p.ID] = p
		released = append(released, res)
	}
	r.Reservations = kept
	return released, nil
}

// Stock devuelve el stock actual o -1 si el producto no existe.
func (r *InMemoryProductRepo) Stock(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Products[id]
	if !ok {
		return -1
	}
	return p.Stock
}

var _ productDomain.ProductRepository = (*InMemoryProductRepo)(nil)
