package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyApplied: ya existe un marcador para (evento, consumidor).
var ErrAlreadyApplied = errors.New("event already applied by consumer")

// ConsumedMarker registra que un consumidor aplicó un evento.
type ConsumedMarker struct {
	EventID      uuid.UUID `json:"event_id"`
	ConsumerName string    `json:"consumer_name"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// Ledger es el libro de idempotencia de un servicio consumidor.
// MarkApplied dentro de WithinTransaction queda en la misma unidad que los
// efectos del handler cuando el store lo permite.
type Ledger interface {
	Transactor
	AlreadyApplied(ctx context.Context, eventID uuid.UUID, consumer string) (bool, error)
	MarkApplied(ctx context.Context, eventID uuid.UUID, consumer string) error
}

// LedgerCompactor borra marcadores más antiguos que la ventana de retención.
type LedgerCompactor interface {
	Compact(ctx context.Context, olderThan time.Time) (int64, error)
}
