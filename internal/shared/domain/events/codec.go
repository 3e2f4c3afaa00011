package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownEventType: el sobre es válido pero el tipo no está en el registro.
	// El consumidor lo trata como salto compatible hacia delante, no como fallo.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrUnknownVersion: la versión del sobre no la soporta este build.
	ErrUnknownVersion = errors.New("unknown envelope version")
	// ErrMalformedEnvelope: datos corruptos o incompletos; reintentar no ayuda.
	ErrMalformedEnvelope = errors.New("malformed envelope")
)

// EncodingError se devuelve cuando un evento no puede serializarse.
type EncodingError struct {
	EventID uuid.UUID
	Type    EventType
	Err     error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode event %s (%s): %v", e.EventID, e.Type, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError lleva lo que se pudo leer del sobre para diagnóstico.
type DecodingError struct {
	EventID string
	Type    string
	Version int
	Err     error
	Cause   error
}

func (e *DecodingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode event %q (%s v%d): %v: %v", e.EventID, e.Type, e.Version, e.Err, e.Cause)
	}
	return fmt.Sprintf("decode event %q (%s v%d): %v", e.EventID, e.Type, e.Version, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// IsForwardCompatibleSkip indica si el error de decodificación corresponde a
// un tipo de evento desconocido que debe saltarse sin dead-letter.
func IsForwardCompatibleSkip(err error) bool {
	return errors.Is(err, ErrUnknownEventType)
}

// envelope es la forma en el cable. Los nombres de campo no se reutilizan nunca.
type envelope struct {
	EventID     string          `json:"event_id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Version     int             `json:"version"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

// Codec serializa y deserializa sobres versionados. Es puro y seguro para uso concurrente.
type Codec struct {
	registry Registry
	versions map[int]struct{}
}

// NewCodec crea un codec para el registro dado. Sin versiones explícitas acepta EnvelopeVersion.
func NewCodec(registry Registry, versions ...int) *Codec {
	if len(versions) == 0 {
		versions = []int{EnvelopeVersion}
	}
	vs := make(map[int]struct{}, len(versions))
	for _, v := range versions {
		vs[v] = struct{}{}
	}
	return &Codec{registry: registry, versions: vs}
}

// Registry expone el registro con el que se construyó el codec.
func (c *Codec) Registry() Registry {
	return c.registry
}

// Encode valida los campos obligatorios y el payload antes de serializar.
func (c *Codec) Encode(evt DomainEvent) ([]byte, error) {
	fail := func(err error) ([]byte, error) {
		return nil, &EncodingError{EventID: evt.EventID, Type: evt.Type, Err: err}
	}

	switch {
	case evt.EventID == uuid.Nil:
		return fail(missing("event_id"))
	case evt.Type == "":
		return fail(missing("type"))
	case evt.AggregateID == "":
		return fail(missing("aggregate_id"))
	case evt.Version == 0:
		return fail(missing("version"))
	case evt.OccurredAt.IsZero():
		return fail(missing("occurred_at"))
	case evt.Payload == nil:
		return fail(missing("payload"))
	}

	if _, ok := c.versions[evt.Version]; !ok {
		return fail(fmt.Errorf("%w: %d", ErrUnknownVersion, evt.Version))
	}
	if _, ok := c.registry[evt.Type]; !ok {
		return fail(fmt.Errorf("%w: %s", ErrUnknownEventType, evt.Type))
	}
	if evt.Payload.EventType() != evt.Type {
		return fail(fmt.Errorf("payload declares %s", evt.Payload.EventType()))
	}
	if err := evt.Payload.Validate(); err != nil {
		return fail(err)
	}

	raw, err := json.Marshal(evt.Payload)
	if err != nil {
		return fail(err)
	}

	return json.Marshal(envelope{
		EventID:     evt.EventID.String(),
		Type:        string(evt.Type),
		AggregateID: evt.AggregateID,
		Version:     evt.Version,
		OccurredAt:  evt.OccurredAt.UTC(),
		Payload:     raw,
	})
}

// Decode no tiene efectos secundarios. Un tipo desconocido devuelve ErrUnknownEventType.
func (c *Codec) Decode(data []byte) (DomainEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return DomainEvent{}, &DecodingError{Err: ErrMalformedEnvelope, Cause: err}
	}

	fail := func(kind, cause error) (DomainEvent, error) {
		return DomainEvent{}, &DecodingError{
			EventID: env.EventID,
			Type:    env.Type,
			Version: env.Version,
			Err:     kind,
			Cause:   cause,
		}
	}

	if env.Version == 0 {
		return fail(ErrMalformedEnvelope, missing("version"))
	}
	if _, ok := c.versions[env.Version]; !ok {
		return fail(ErrUnknownVersion, nil)
	}

	id, err := uuid.Parse(env.EventID)
	if err != nil {
		return fail(ErrMalformedEnvelope, fmt.Errorf("event_id: %w", err))
	}
	if env.Type == "" {
		return fail(ErrMalformedEnvelope, missing("type"))
	}

	desc, ok := c.registry[EventType(env.Type)]
	if !ok {
		return fail(ErrUnknownEventType, nil)
	}

	if env.AggregateID == "" {
		return fail(ErrMalformedEnvelope, missing("aggregate_id"))
	}
	if env.OccurredAt.IsZero() {
		return fail(ErrMalformedEnvelope, missing("occurred_at"))
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return fail(ErrMalformedEnvelope, missing("payload"))
	}

	target := desc.New()
	if err := json.Unmarshal(env.Payload, target); err != nil {
		return fail(ErrMalformedEnvelope, err)
	}
	// Las fábricas devuelven punteros; los handlers trabajan con valores.
	payload := reflect.ValueOf(target).Elem().Interface().(Payload)
	if err := payload.Validate(); err != nil {
		return fail(ErrMalformedEnvelope, err)
	}

	return DomainEvent{
		EventID:     id,
		Type:        EventType(env.Type),
		AggregateID: env.AggregateID,
		Version:     env.Version,
		OccurredAt:  env.OccurredAt,
		Payload:     payload,
	}, nil
}

// As extrae el payload tipado de un evento.
func As[T Payload](evt DomainEvent) (T, bool) {
	p, ok := evt.Payload.(T)
	return p, ok
}
