package events

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrMissingField indica que un payload no trae un campo obligatorio.
var ErrMissingField = errors.New("missing required field")

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

// Estos son contratos de integración, NO entidades del dominio.
// Los nombres de campo JSON son estables: solo se añaden campos opcionales.

// ---------------- users ----------------

type UserRegistered struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
}

func (UserRegistered) EventType() EventType { return TypeUserRegistered }

func (p UserRegistered) Validate() error {
	if p.UserID == uuid.Nil {
		return missing("user_id")
	}
	if !strings.Contains(p.Email, "@") {
		return missing("email")
	}
	if strings.TrimSpace(p.Name) == "" {
		return missing("name")
	}
	return nil
}

type UserUpdated struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
}

func (UserUpdated) EventType() EventType { return TypeUserUpdated }

func (p UserUpdated) Validate() error {
	if p.UserID == uuid.Nil {
		return missing("user_id")
	}
	if !strings.Contains(p.Email, "@") {
		return missing("email")
	}
	if strings.TrimSpace(p.Name) == "" {
		return missing("name")
	}
	return nil
}

// ---------------- products ----------------

type ProductCreated struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
}

func (ProductCreated) EventType() EventType { return TypeProductCreated }

func (p ProductCreated) Validate() error {
	if p.ProductID == uuid.Nil {
		return missing("product_id")
	}
	if strings.TrimSpace(p.Name) == "" {
		return missing("name")
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("price must not be negative: %s", p.Price)
	}
	if p.Stock < 0 {
		return fmt.Errorf("stock must not be negative: %d", p.Stock)
	}
	return nil
}

type ProductStockReserved struct {
	ProductID uuid.UUID `json:"product_id"`
	OrderID   uuid.UUID `json:"order_id"`
	Quantity  int       `json:"quantity"`
	Remaining int       `json:"remaining"`
}

func (ProductStockReserved) EventType() EventType { return TypeProductStockReserved }

func (p ProductStockReserved) Validate() error {
	if p.ProductID == uuid.Nil {
		return missing("product_id")
	}
	if p.OrderID == uuid.Nil {
		return missing("order_id")
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive: %d", p.Quantity)
	}
	return nil
}

// ---------------- orders ----------------

type OrderLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderCreated struct {
	OrderID uuid.UUID       `json:"order_id"`
	UserID  uuid.UUID       `json:"user_id"`
	Items   []OrderLine     `json:"items"`
	Total   decimal.Decimal `json:"total"`
}

func (OrderCreated) EventType() EventType { return TypeOrderCreated }

func (p OrderCreated) Validate() error {
	if p.OrderID == uuid.Nil {
		return missing("order_id")
	}
	if p.UserID == uuid.Nil {
		return missing("user_id")
	}
	if len(p.Items) == 0 {
		return missing("items")
	}
	for i, it := range p.Items {
		if it.ProductID == uuid.Nil {
			return missing(fmt.Sprintf("items[%d].product_id", i))
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("items[%d].quantity must be positive", i)
		}
	}
	return nil
}

type OrderCancelled struct {
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason"`
}

func (OrderCancelled) EventType() EventType { return TypeOrderCancelled }

func (p OrderCancelled) Validate() error {
	if p.OrderID == uuid.Nil {
		return missing("order_id")
	}
	return nil
}

// ---------------- registry ----------------

// Contextos acotados dueños de cada evento.
const (
	ContextUsers    = "users"
	ContextProducts = "products"
	ContextOrders   = "orders"
)

// Descriptor asocia un tipo de evento con su contexto dueño y su fábrica de payload.
type Descriptor struct {
	Context string
	New     func() Payload
}

// Registry es el conjunto cerrado de variantes que conoce este build.
type Registry map[EventType]Descriptor

// DefaultRegistry devuelve el catálogo completo de eventos.
func DefaultRegistry() Registry {
	return Registry{
		TypeUserRegistered:       {Context: ContextUsers, New: func() Payload { return &UserRegistered{} }},
		TypeUserUpdated:          {Context: ContextUsers, New: func() Payload { return &UserUpdated{} }},
		TypeProductCreated:       {Context: ContextProducts, New: func() Payload { return &ProductCreated{} }},
		TypeProductStockReserved: {Context: ContextProducts, New: func() Payload { return &ProductStockReserved{} }},
		TypeOrderCreated:         {Context: ContextOrders, New: func() Payload { return &OrderCreated{} }},
		TypeOrderCancelled:       {Context: ContextOrders, New: func() Payload { return &OrderCancelled{} }},
	}
}

// ContextOf devuelve el contexto dueño del tipo, o "" si no está registrado.
func (r Registry) ContextOf(t EventType) string {
	return r[t].Context
}

// Without devuelve una copia del registro sin los tipos indicados.
// Útil para simular un consumidor antiguo que no conoce variantes nuevas.
func (r Registry) Without(types ...EventType) Registry {
	out := make(Registry, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, t := range types {
		delete(out, t)
	}
	return out
}
