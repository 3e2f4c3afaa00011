package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/hexasync/internal/order/domain"
	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
)

// LineRequest es una línea tal como llega del cliente: el precio lo pone la réplica.
type LineRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type OrderService struct {
	orders   domain.OrderRepository
	replicas domain.ReplicaRepository
	outbox   domain.EventOutbox
	log      *zap.Logger
}

func NewOrderService(orders domain.OrderRepository, replicas domain.ReplicaRepository, outbox domain.EventOutbox, log *zap.Logger) *OrderService {
	return &OrderService{orders: orders, replicas: replicas, outbox: outbox, log: log}
}

// CreateOrder valida usuario y productos contra las réplicas locales, sin
// llamar a los otros servicios, y guarda el pedido con su OrderCreated.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, lines []LineRequest) (*domain.Order, error) {
	if len(lines) == 0 {
		return nil, domain.ErrInvalidOrder
	}
	if _, err := s.replicas.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    domain.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidOrder)
		}
		p, err := s.replicas.GetProduct(ctx, l.ProductID)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, domain.OrderItem{ProductID: p.ID, Quantity: l.Quantity, UnitPrice: p.Price})
	}
	order.CalculateTotal()
	if err := order.Validate(); err != nil {
		return nil, err
	}

	evt := sharedEvents.New(order.ID.String(), toOrderCreated(order))
	if err := s.outbox.Append(ctx, func(txCtx context.Context) error { return s.orders.Create(txCtx, order) }, evt); err != nil {
		return nil, err
	}

	s.log.Info("✅ Pedido creado",
		zap.String("order_id", order.ID.String()),
		zap.String("total", order.Total.String()),
		zap.String("event_id", evt.EventID.String()),
	)
	return order, nil
}

// CancelOrder lee y actualiza el pedido dentro de la misma transacción que el OrderCancelled.
func (s *OrderService) CancelOrder(ctx context.Context, id uuid.UUID, reason string) (*domain.Order, error) {
	var cancelled *domain.Order
	evt := sharedEvents.New(id.String(), sharedEvents.OrderCancelled{OrderID: id, Reason: reason})

	err := s.outbox.Append(ctx, func(txCtx context.Context) error {
		o, err := s.orders.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := o.Cancel(reason, time.Now().UTC()); err != nil {
			return err
		}
		cancelled = o
		return s.orders.Update(txCtx, o)
	}, evt)
	if err != nil {
		if !errors.Is(err, domain.ErrOrderNotFound) && !errors.Is(err, domain.ErrOrderAlreadyCancelled) {
			s.log.Error("❌ No se pudo cancelar el pedido", zap.String("order_id", id.String()), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("🛑 Pedido cancelado", zap.String("order_id", id.String()), zap.String("event_id", evt.EventID.String()))
	return cancelled, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func toOrderCreated(o *domain.Order) sharedEvents.OrderCreated {
	items := make([]sharedEvents.OrderLine, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, sharedEvents.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return sharedEvents.OrderCreated{OrderID: o.ID, UserID: o.UserID, Items: items, Total: o.Total}
}
