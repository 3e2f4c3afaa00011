package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus es el estado de un registro de outbox.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxPublished OutboxStatus = "published"
	OutboxFailed    OutboxStatus = "failed"
)

var ErrOutboxRecordNotFound = errors.New("outbox record not found")

// OutboxRecord representa un evento serializado pendiente de publicar en el broker.
type OutboxRecord struct {
	EventID      uuid.UUID    `json:"event_id"`
	EventType    string       `json:"event_type"`
	Topic        string       `json:"topic"`
	PartitionKey string       `json:"partition_key"`
	Payload      []byte       `json:"payload"`
	Status       OutboxStatus `json:"status"`
	Attempts     int          `json:"attempts"`
	LastError    string       `json:"last_error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Transactor abre una unidad atómica y la propaga por el contexto.
// Si el contexto ya lleva una transacción, fn se une a ella.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OutboxRepository define el contrato para acceder a la tabla outbox.
// InsertOutbox debe ejecutarse dentro de una transacción abierta con el Transactor.
type OutboxRepository interface {
	InsertOutbox(ctx context.Context, rec OutboxRecord) error
	// FetchPendingOutbox devuelve registros Pending ordenados por (partition_key, created_at).
	FetchPendingOutbox(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkOutboxPublished(ctx context.Context, id uuid.UUID) error
	RecordOutboxAttempt(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error
	MarkOutboxFailed(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error
	ListFailedOutbox(ctx context.Context, limit int) ([]OutboxRecord, error)
	RequeueFailedOutbox(ctx context.Context, id uuid.UUID) error
}
