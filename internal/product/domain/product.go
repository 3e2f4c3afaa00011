package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidProduct    = errors.New("invalid product")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product es un artículo del catálogo con su stock disponible.
type Product struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (p *Product) PartitionKey() string {
	return p.ID.String()
}

func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" || p.Price.IsNegative() || p.Stock < 0 {
		return ErrInvalidProduct
	}
	return nil
}

// Reservation es el stock apartado para una línea de pedido.
type Reservation struct {
	OrderID   uuid.UUID `json:"order_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// ProductRepository usa la transacción que traiga ctx.
type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context, limit, offset int) ([]*Product, error)

	// Reserve descuenta qty del stock y guarda la reserva. Devuelve el stock
	// restante o ErrInsufficientStock / ErrProductNotFound.
	Reserve(ctx context.Context, r Reservation) (int, error)

	// Release devuelve al stock las reservas del pedido y las borra.
	Release(ctx context.Context, orderID uuid.UUID) ([]Reservation, error)
}

// EventOutbox guarda eventos junto a la mutación que los origina.
type EventOutbox interface {
	Append(ctx context.Context, mutate func(ctx context.Context) error, evts ...sharedEvents.DomainEvent) error
	Stage(ctx context.Context, evts ...sharedEvents.DomainEvent) error
}
