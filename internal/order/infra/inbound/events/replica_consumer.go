package events

import (
	"context"

	"go.uber.org/zap"

	orderDomain "github.com/davicafu/hexasync/internal/order/domain"
	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
	"github.com/davicafu/hexasync/internal/shared/infra/consumer"
)

// ReplicaGroup es el grupo con el que pedidos sigue a usuarios y productos.
const ReplicaGroup = "orders-replica"

// ReplicaConsumer proyecta user-events y product-events en las réplicas
// locales. La fecha del evento decide qué versión gana.
type ReplicaConsumer struct {
	replicas orderDomain.ReplicaRepository
	log      *zap.Logger
}

func NewReplicaConsumer(replicas orderDomain.ReplicaRepository, log *zap.Logger) *ReplicaConsumer {
	return &ReplicaConsumer{replicas: replicas, log: log}
}

func (c *ReplicaConsumer) Register(g *consumer.Group) *consumer.Group {
	return g.
		OnEvent(sharedEvents.TypeUserRegistered, c.onUserRegistered).
		OnEvent(sharedEvents.TypeUserUpdated, c.onUserUpdated).
		OnEvent(sharedEvents.TypeProductCreated, c.onProductCreated).
		OnEvent(sharedEvents.TypeProductStockReserved, c.onStockReserved)
}

func (c *ReplicaConsumer) onUserRegistered(ctx context.Context, evt sharedEvents.DomainEvent) error {
	p, err := consumer.Payload[sharedEvents.UserRegistered](evt)
	if err != nil {
		return err
	}
	return c.replicas.UpsertUser(ctx, orderDomain.KnownUser{ID: p.UserID, Email: p.Email, Name: p.Name, UpdatedAt: evt.OccurredAt})
}

func (c *ReplicaConsumer) onUserUpdated(ctx context.Context, evt sharedEvents.DomainEvent) error {
	p, err := consumer.Payload[sharedEvents.UserUpdated](evt)
	if err != nil {
		return err
	}
	return c.replicas.UpsertUser(ctx, orderDomain.KnownUser{ID: p.UserID, Email: p.Email, Name: p.Name, UpdatedAt: evt.OccurredAt})
}

func (c *ReplicaConsumer) onProductCreated(ctx context.Context, evt sharedEvents.DomainEvent) error {
	p, err := consumer.Payload[sharedEvents.ProductCreated](evt)
	if err != nil {
		return err
	}
	c.log.Debug("Producto replicado", zap.String("product_id", p.ProductID.String()))
	return c.replicas.UpsertProduct(ctx, orderDomain.CatalogProduct{
		ID:        p.ProductID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
		UpdatedAt: evt.OccurredAt,
	})
}

func (c *ReplicaConsumer) onStockReserved(ctx context.Context, evt sharedEvents.DomainEvent) error {
	p, err := consumer.Payload[sharedEvents.ProductStockReserved](evt)
	if err != nil {
		return err
	}
	return c.replicas.UpdateStock(ctx, p.ProductID, p.Remaining, evt.OccurredAt)
}
