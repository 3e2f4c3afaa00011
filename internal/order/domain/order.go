package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrInvalidOrder          = errors.New("invalid order")
	ErrUnknownUser           = errors.New("unknown user")
	ErrUnknownProduct        = errors.New("unknown product")
	ErrOrderAlreadyCancelled = errors.New("order already cancelled")
)

type OrderStatus string

const (
	StatusCreated   OrderStatus = "created"
	StatusCancelled OrderStatus = "cancelled"
)

type OrderItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal = precio unitario × cantidad
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Items     []OrderItem     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Status    OrderStatus     `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (o *Order) PartitionKey() string {
	return o.ID.String()
}

func (o *Order) Validate() error {
	if o.UserID == uuid.Nil || len(o.Items) == 0 {
		return ErrInvalidOrder
	}
	for _, it := range o.Items {
		if it.ProductID == uuid.Nil || it.Quantity <= 0 || it.UnitPrice.IsNegative() {
			return ErrInvalidOrder
		}
	}
	return nil
}

// CalculateTotal recalcula Total a partir de las líneas.
func (o *Order) CalculateTotal() {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	o.Total = total
}

// Cancel pasa el pedido a cancelado. Cancelar dos veces es un error.
func (o *Order) Cancel(reason string, at time.Time) error {
	if o.Status == StatusCancelled {
		return ErrOrderAlreadyCancelled
	}
	o.Status = StatusCancelled
	o.Reason = reason
	o.UpdatedAt = at
	return nil
}

// KnownUser es la réplica local de un usuario, alimentada por user-events.
type KnownUser struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CatalogProduct es la réplica local de un producto. Stock es orientativo:
// la reserva real la decide el servicio de productos.
type CatalogProduct struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	UpdatedAt time.Time       `json:"updated_at"`
}
