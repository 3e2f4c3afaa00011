package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
)

// OrderRepository usa la transacción o sesión que traiga ctx.
type OrderRepository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	Update(ctx context.Context, o *Order) error
}

// ReplicaRepository guarda las copias locales de usuarios y productos.
// Los upserts sólo aplican si el hecho no es más antiguo que lo guardado,
// de modo que una redelivery tardía no pisa un estado más reciente.
type ReplicaRepository interface {
	UpsertUser(ctx context.Context, u KnownUser) error
	GetUser(ctx context.Context, id uuid.UUID) (*KnownUser, error)
	UpsertProduct(ctx context.Context, p CatalogProduct) error
	GetProduct(ctx context.Context, id uuid.UUID) (*CatalogProduct, error)
	// UpdateStock no crea el producto si aún no llegó su ProductCreated.
	UpdateStock(ctx context.Context, productID uuid.UUID, remaining int, at time.Time) error
}

type EventOutbox interface {
	Append(ctx context.Context, mutate func(ctx context.Context) error, evts ...sharedEvents.DomainEvent) error
}
