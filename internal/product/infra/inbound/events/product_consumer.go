package events

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/davicafu/hexasync/internal/product/application"
	productDomain "github.com/davicafu/hexasync/internal/product/domain"
	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
	"github.com/davicafu/hexasync/internal/shared/infra/consumer"
)

// OrdersGroup es el grupo con el que productos escucha los pedidos.
const OrdersGroup = "products-orders"

// OrderConsumer reserva y libera stock a partir de los eventos de pedido.
type OrderConsumer struct {
	service *application.ProductService
	log     *zap.Logger
}

func NewOrderConsumer(service *application.ProductService, log *zap.Logger) *OrderConsumer {
	return &OrderConsumer{service: service, log: log}
}

func (c *OrderConsumer) Register(g *consumer.Group) *consumer.Group {
	return g.
		OnEvent(sharedEvents.TypeOrderCreated, c.onOrderCreated).
		OnEvent(sharedEvents.TypeOrderCancelled, c.onOrderCancelled)
}

func (c *OrderConsumer) onOrderCreated(ctx context.Context, evt sharedEvents.DomainEvent) error {
	p, err := consumer.Payload[sharedEvents.OrderCreated](evt)
	if err != nil {
		return err
	}
	err = c.service.ReserveForOrder(ctx, p)
	if errors.Is(err, productDomain.ErrInsufficientStock) || errors.Is(err, productDomain.ErrProductNotFound) {
		// Reintentar no cambia el resultado: el pedido queda en cuarentena.
		c.log.Warn("⚠️ Pedido sin stock reservable", zap.String("order_id", p.OrderID.String()), zap.Error(err))
		return sharedDomain.Fatal(err)
	}
	return err
}

func (c *OrderConsumer) onOrderCancelled(ctx context.Context, evt sharedEvents.DomainEvent) error {
	p, err := consumer.Payload[sharedEvents.OrderCancelled](evt)
	if err != nil {
		return err
	}
	return c.service.ReleaseForOrder(ctx, p.OrderID)
}
