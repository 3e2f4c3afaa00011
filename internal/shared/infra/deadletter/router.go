package deadletter

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	"github.com/davicafu/hexasync/internal/shared/infra/alert"
	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
)

// Quarantined es un evento que no se pudo procesar y su historial.
type Quarantined struct {
	Consumer  string
	Delivery  sharedBus.Delivery
	EventID   string
	EventType string
	Reason    string
	Attempts  []sharedDomain.Attempt
}

// Router lleva eventos venenosos a la tabla de dead letters y, si hay
// producer, al topic <origen>.dlq. Nunca devuelve error: una partición
// bloqueada es peor que un evento pendiente de reproceso manual.
type Router struct {
	store    sharedDomain.DeadLetterStore
	producer sharedBus.Producer
	alerter  alert.Alerter
	timeout  time.Duration
	log      *zap.Logger
}

// NewRouter admite producer nil: entonces sólo se usa el store.
func NewRouter(store sharedDomain.DeadLetterStore, producer sharedBus.Producer, alerter alert.Alerter, log *zap.Logger) *Router {
	return &Router{store: store, producer: producer, alerter: alerter, timeout: 5 * time.Second, log: log}
}

// Quarantine persiste el evento aunque ctx esté cancelado por un apagado.
func (r *Router) Quarantine(ctx context.Context, q Quarantined) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	fields := []zap.Field{
		zap.String("consumer", q.Consumer),
		zap.String("event_id", q.EventID),
		zap.String("event_type", q.EventType),
		zap.String("topic", q.Delivery.Topic),
		zap.Int("partition", q.Delivery.Partition),
		zap.Int64("offset", q.Delivery.Offset),
		zap.String("reason", q.Reason),
		zap.Int("attempts", len(q.Attempts)),
	}

	stored := r.toStore(ctx, q, fields)
	published := r.toTopic(ctx, q, fields)

	if !stored && !published {
		r.alerter.Alert(ctx, alert.KindQuarantineFailed, "Evento perdido: no se pudo poner en cuarentena", fields...)
		return
	}
	r.alerter.Alert(ctx, alert.KindDeadLettered, "Evento enviado a dead letter", fields...)
}

// List devuelve los dead letters más recientes.
func (r *Router) List(ctx context.Context, limit int) ([]sharedDomain.DeadLetter, error) {
	return r.store.ListDeadLetters(ctx, limit)
}

func (r *Router) toStore(ctx context.Context, q Quarantined, fields []zap.Field) bool {
	if r.store == nil {
		return false
	}
	err := r.store.SaveDeadLetter(ctx, sharedDomain.DeadLetter{
		EventID:   q.EventID,
		EventType: q.EventType,
		Consumer:  q.Consumer,
		Topic:     q.Delivery.Topic,
		Partition: q.Delivery.Partition,
		Offset:    q.Delivery.Offset,
		Key:       q.Delivery.Key,
		Payload:   q.Delivery.Value,
		Reason:    q.Reason,
		Attempts:  q.Attempts,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		r.log.Error("No se pudo guardar el dead letter", append(fields, zap.Error(err))...)
		return false
	}
	return true
}

func (r *Router) toTopic(ctx context.Context, q Quarantined, fields []zap.Field) bool {
	if r.producer == nil {
		return false
	}
	err := r.producer.Send(ctx, sharedBus.Message{
		Topic: sharedBus.DeadLetterTopic(q.Delivery.Topic),
		Key:   q.Delivery.Key,
		Value: q.Delivery.Value,
		Headers: map[string]string{
			"event_id":         q.EventID,
			"event_type":       q.EventType,
			"consumer":         q.Consumer,
			"reason":           q.Reason,
			"attempts":         strconv.Itoa(len(q.Attempts)),
			"source_topic":     q.Delivery.Topic,
			"source_partition": strconv.Itoa(q.Delivery.Partition),
			"source_offset":    strconv.FormatInt(q.Delivery.Offset, 10),
		},
	})
	if err != nil {
		r.log.Error("No se pudo publicar en el topic de dead letter", append(fields, zap.Error(err))...)
		return false
	}
	return true
}
