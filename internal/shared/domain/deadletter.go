package domain

import (
	"context"
	"time"
)

// Attempt es un intento fallido de procesar un evento.
type Attempt struct {
	Number int       `json:"number"`
	Error  string    `json:"error"`
	At     time.Time `json:"at"`
}

// DeadLetter es un evento en cuarentena con su contexto de diagnóstico.
// EventID es texto porque un sobre corrupto puede no traer un UUID válido.
type DeadLetter struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Consumer  string    `json:"consumer"`
	Topic     string    `json:"topic"`
	Partition int       `json:"partition"`
	Offset    int64     `json:"offset"`
	Key       string    `json:"key"`
	Payload   []byte    `json:"payload"`
	Reason    string    `json:"reason"`
	Attempts  []Attempt `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

type DeadLetterStore interface {
	SaveDeadLetter(ctx context.Context, dl DeadLetter) error
	ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
}
