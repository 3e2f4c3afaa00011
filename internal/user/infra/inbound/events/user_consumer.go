package events

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
	"github.com/davicafu/hexasync/internal/shared/infra/consumer"
	userDomain "github.com/davicafu/hexasync/internal/user/domain"
)

// SelfGroup es el grupo con el que el servicio de usuarios consume sus propios eventos.
const SelfGroup = "users-self"

// UserConsumer mantiene el historial de actividad a partir de los eventos de
// usuario. Pasa por el mismo runtime y ledger que cualquier otro suscriptor.
type UserConsumer struct {
	activity userDomain.ActivityRepository
	log      *zap.Logger
}

func NewUserConsumer(activity userDomain.ActivityRepository, log *zap.Logger) *UserConsumer {
	return &UserConsumer{activity: activity, log: log}
}

// Register enlaza los handlers al grupo.
func (c *UserConsumer) Register(g *consumer.Group) *consumer.Group {
	return g.
		OnEvent(sharedEvents.TypeUserRegistered, c.onUserRegistered).
		OnEvent(sharedEvents.TypeUserUpdated, c.onUserUpdated)
}

func (c *UserConsumer) onUserRegistered(ctx context.Context, evt sharedEvents.DomainEvent) error {
	p, err := consumer.Payload[sharedEvents.UserRegistered](evt)
	if err != nil {
		return err
	}
	return c.record(ctx, evt, p.UserID, p.Email)
}

func (c *UserConsumer) onUserUpdated(ctx context.Context, evt sharedEvents.DomainEvent) error {
	p, err := consumer.Payload[sharedEvents.UserUpdated](evt)
	if err != nil {
		return err
	}
	return c.record(ctx, evt, p.UserID, p.Email)
}

func (c *UserConsumer) record(ctx context.Context, evt sharedEvents.DomainEvent, userID uuid.UUID, email string) error {
	err := c.activity.Record(ctx, userDomain.Activity{
		EventID:    evt.EventID,
		UserID:     userID,
		EventType:  string(evt.Type),
		Email:      email,
		OccurredAt: evt.OccurredAt,
	})
	if err != nil {
		return err
	}
	c.log.Debug("Actividad de usuario registrada", zap.String("event_id", evt.EventID.String()), zap.String("event_type", string(evt.Type)))
	return nil
}
