package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LogEntry es una fila del registro de auditoría: un evento tal como se consumió.
type LogEntry struct {
	EventID     uuid.UUID `json:"event_id"`
	EventType   string    `json:"event_type"`
	Context     string    `json:"context"`
	AggregateID string    `json:"aggregate_id"`
	Version     int       `json:"version"`
	OccurredAt  time.Time `json:"occurred_at"`
	Payload     string    `json:"payload"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// DailyCount agrega eventos por día y tipo.
type DailyCount struct {
	Day       time.Time `json:"day"`
	EventType string    `json:"event_type"`
	Count     uint64    `json:"count"`
}

// EventLogRepository es append-only. Append puede recibir el mismo evento
// más de una vez; el store colapsa duplicados por EventID.
type EventLogRepository interface {
	Append(ctx context.Context, entries ...LogEntry) error
	DailyCounts(ctx context.Context, start, end time.Time) ([]DailyCount, error)
}
