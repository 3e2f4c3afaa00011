package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifica la variante de payload que viaja en el sobre.
type EventType string

// Catálogo cerrado de eventos de integración entre contextos.
const (
	TypeUserRegistered       EventType = "UserRegistered"
	TypeUserUpdated          EventType = "UserUpdated"
	TypeProductCreated       EventType = "ProductCreated"
	TypeProductStockReserved EventType = "ProductStockReserved"
	TypeOrderCreated         EventType = "OrderCreated"
	TypeOrderCancelled       EventType = "OrderCancelled"
)

// EnvelopeVersion es la versión de sobre que emite este build.
const EnvelopeVersion = 1

// Payload es el contenido tipado de un evento. Cada variante declara su tipo
// y valida sus campos obligatorios.
type Payload interface {
	EventType() EventType
	Validate() error
}

// DomainEvent es el hecho de dominio que se persiste en el outbox y viaja por el broker.
type DomainEvent struct {
	EventID     uuid.UUID
	Type        EventType
	AggregateID string
	Version     int
	OccurredAt  time.Time
	Payload     Payload
}

// New crea un evento con un ID nuevo para el agregado indicado.
func New(aggregateID string, payload Payload) DomainEvent {
	return DomainEvent{
		EventID:     uuid.New(),
		Type:        payload.EventType(),
		AggregateID: aggregateID,
		Version:     EnvelopeVersion,
		OccurredAt:  time.Now().UTC(),
		Payload:     payload,
	}
}

// PartitionKey enruta todos los eventos de un agregado a la misma partición.
func (e DomainEvent) PartitionKey() string {
	return e.AggregateID
}
