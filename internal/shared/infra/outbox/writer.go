package outbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
)

// Notifier recibe un aviso tras cada commit con eventos nuevos.
type Notifier interface {
	Notify()
}

// Writer empareja una mutación de dominio con sus registros de outbox en la
// misma transacción. O se confirman ambos o ninguno.
type Writer struct {
	tx       sharedDomain.Transactor
	repo     sharedDomain.OutboxRepository
	codec    *sharedEvents.Codec
	topology sharedBus.Topology
	log      *zap.Logger
	notifier Notifier
}

func NewWriter(
	tx sharedDomain.Transactor,
	repo sharedDomain.OutboxRepository,
	codec *sharedEvents.Codec,
	topology sharedBus.Topology,
	log *zap.Logger,
) *Writer {
	return &Writer{tx: tx, repo: repo, codec: codec, topology: topology, log: log}
}

// WithNotifier despierta al publisher tras cada Append confirmado.
func (w *Writer) WithNotifier(n Notifier) *Writer {
	w.notifier = n
	return w
}

// Append ejecuta mutate y guarda los eventos en una sola transacción.
// Los eventos se serializan antes de abrirla: un EncodingError no toca el store.
// Un error de mutate se devuelve tal cual; uno del outbox como TransactionError.
func (w *Writer) Append(ctx context.Context, mutate func(ctx context.Context) error, evts ...sharedEvents.DomainEvent) error {
	records, err := w.records(evts)
	if err != nil {
		return err
	}

	err = w.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if mutate != nil {
			if err := mutate(txCtx); err != nil {
				return err
			}
		}
		return w.insert(txCtx, records)
	})
	if err != nil {
		return err
	}

	for _, rec := range records {
		w.log.Debug("📥 Evento guardado en outbox",
			zap.String("event_id", rec.EventID.String()),
			zap.String("event_type", rec.EventType),
			zap.String("topic", rec.Topic),
			zap.String("partition_key", rec.PartitionKey),
		)
	}
	if w.notifier != nil {
		w.notifier.Notify()
	}
	return nil
}

// Stage guarda eventos dentro de una transacción ya abierta en ctx, por
// ejemplo la de un handler que emite eventos derivados. Sin transacción falla.
func (w *Writer) Stage(ctx context.Context, evts ...sharedEvents.DomainEvent) error {
	records, err := w.records(evts)
	if err != nil {
		return err
	}
	return w.insert(ctx, records)
}

func (w *Writer) insert(ctx context.Context, records []sharedDomain.OutboxRecord) error {
	for _, rec := range records {
		if err := w.repo.InsertOutbox(ctx, rec); err != nil {
			return &sharedDomain.TransactionError{Op: "outbox insert", Err: err}
		}
	}
	return nil
}

func (w *Writer) records(evts []sharedEvents.DomainEvent) ([]sharedDomain.OutboxRecord, error) {
	if len(evts) == 0 {
		return nil, fmt.Errorf("outbox: no events to append")
	}

	records := make([]sharedDomain.OutboxRecord, 0, len(evts))
	for _, evt := range evts {
		data, err := w.codec.Encode(evt)
		if err != nil {
			return nil, err
		}
		topic, err := w.topology.TopicForEvent(w.codec.Registry(), evt.Type)
		if err != nil {
			return nil, &sharedEvents.EncodingError{EventID: evt.EventID, Type: evt.Type, Err: err}
		}
		records = append(records, sharedDomain.OutboxRecord{
			EventID:      evt.EventID,
			EventType:    string(evt.Type),
			Topic:        topic,
			PartitionKey: evt.PartitionKey(),
			Payload:      data,
			Status:       sharedDomain.OutboxPending,
			CreatedAt:    evt.OccurredAt,
		})
	}
	return records, nil
}
