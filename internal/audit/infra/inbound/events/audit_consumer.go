package events

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	auditDomain "github.com/davicafu/hexasync/internal/audit/domain"
	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
	"github.com/davicafu/hexasync/internal/shared/infra/consumer"
)

// AuditGroup se suscribe a todos los topics y guarda cada evento.
const AuditGroup = "audit"

type AuditConsumer struct {
	repo     auditDomain.EventLogRepository
	registry sharedEvents.Registry
	log      *zap.Logger
}

func NewAuditConsumer(repo auditDomain.EventLogRepository, registry sharedEvents.Registry, log *zap.Logger) *AuditConsumer {
	return &AuditConsumer{repo: repo, registry: registry, log: log}
}

// Register enlaza un handler por cada tipo del registro.
func (c *AuditConsumer) Register(g *consumer.Group) *consumer.Group {
	types := make([]string, 0, len(c.registry))
	for t := range c.registry {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		g.OnEvent(sharedEvents.EventType(t), c.handle)
	}
	return g
}

func (c *AuditConsumer) handle(ctx context.Context, evt sharedEvents.DomainEvent) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return err
	}
	entry := auditDomain.LogEntry{
		EventID:     evt.EventID,
		EventType:   string(evt.Type),
		Context:     c.registry.ContextOf(evt.Type),
		AggregateID: evt.AggregateID,
		Version:     evt.Version,
		OccurredAt:  evt.OccurredAt,
		Payload:     string(payload),
		RecordedAt:  time.Now().UTC(),
	}
	if err := c.repo.Append(ctx, entry); err != nil {
		c.log.Warn("⚠️ No se pudo escribir en el log de auditoría", zap.String("event_id", evt.EventID.String()), zap.Error(err))
		return err
	}
	return nil
}
