package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserRegistered() DomainEvent {
	userID := uuid.New()
	return New(userID.String(), UserRegistered{UserID: userID, Email: "ada@example.com", Name: "Ada"})
}

func TestCodec_EncodeDecode_RoundTrip(t *testing.T) {
	// ARRANGE
	codec := NewCodec(DefaultRegistry())
	orderID, userID, productID := uuid.New(), uuid.New(), uuid.New()
	evt := New(orderID.String(), OrderCreated{
		OrderID: orderID,
		UserID:  userID,
		Items:   []OrderLine{{ProductID: productID, Quantity: 2, UnitPrice: decimal.RequireFromString("9.95")}},
		Total:   decimal.RequireFromString("19.90"),
	})

	// ACT
	data, err := codec.Encode(evt)
	require.NoError(t, err)
	decoded, err := codec.Decode(data)

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, evt.EventID, decoded.EventID)
	assert.Equal(t, TypeOrderCreated, decoded.Type)
	assert.Equal(t, orderID.String(), decoded.AggregateID)
	assert.True(t, evt.OccurredAt.Equal(decoded.OccurredAt))

	payload, ok := As[OrderCreated](decoded)
	require.True(t, ok)
	assert.Equal(t, userID, payload.UserID)
	assert.True(t, payload.Total.Equal(decimal.RequireFromString("19.90")))
	require.Len(t, payload.Items, 1)
	assert.Equal(t, 2, payload.Items[0].Quantity)
}

func TestCodec_Encode_WireFieldNames(t *testing.T) {
	codec := NewCodec(DefaultRegistry())

	data, err := codec.Encode(newUserRegistered())
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &wire))
	for _, field := range []string{"event_id", "type", "aggregate_id", "version", "occurred_at", "payload"} {
		assert.Contains(t, wire, field)
	}
}

func TestCodec_Encode_MissingFields(t *testing.T) {
	codec := NewCodec(DefaultRegistry())

	tests := []struct {
		name   string
		mutate func(*DomainEvent)
	}{
		{"sin event id", func(e *DomainEvent) { e.EventID = uuid.Nil }},
		{"sin aggregate id", func(e *DomainEvent) { e.AggregateID = "" }},
		{"sin version", func(e *DomainEvent) { e.Version = 0 }},
		{"sin payload", func(e *DomainEvent) { e.Payload = nil }},
		{"payload invalido", func(e *DomainEvent) {
			e.Payload = UserRegistered{UserID: uuid.New(), Email: "no-es-email", Name: "Ada"}
		}},
		{"tipo no coincide con payload", func(e *DomainEvent) { e.Type = TypeUserUpdated }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := newUserRegistered()
			tt.mutate(&evt)

			_, err := codec.Encode(evt)

			var encErr *EncodingError
			assert.ErrorAs(t, err, &encErr)
		})
	}
}

func TestCodec_Decode_UnknownTypeIsForwardCompatibleSkip(t *testing.T) {
	// ARRANGE: un productor nuevo emite un tipo que el consumidor antiguo no conoce.
	producer := NewCodec(DefaultRegistry())
	consumer := NewCodec(DefaultRegistry().Without(TypeUserRegistered))

	data, err := producer.Encode(newUserRegistered())
	require.NoError(t, err)

	// ACT
	_, err = consumer.Decode(data)

	// ASSERT
	var decErr *DecodingError
	require.ErrorAs(t, err, &decErr)
	assert.True(t, IsForwardCompatibleSkip(err))
	assert.Equal(t, string(TypeUserRegistered), decErr.Type)
}

func TestCodec_Decode_UnknownVersion(t *testing.T) {
	producer := NewCodec(DefaultRegistry(), 1, 2)
	consumer := NewCodec(DefaultRegistry())

	evt := newUserRegistered()
	evt.Version = 2
	data, err := producer.Encode(evt)
	require.NoError(t, err)

	_, err = consumer.Decode(data)

	assert.True(t, errors.Is(err, ErrUnknownVersion))
	assert.False(t, IsForwardCompatibleSkip(err))
}

func TestCodec_Decode_Malformed(t *testing.T) {
	codec := NewCodec(DefaultRegistry())
	validID := uuid.New().String()

	tests := []struct {
		name string
		data string
	}{
		{"no es json", `{"event_id":`},
		{"event id invalido", `{"event_id":"x","type":"UserRegistered","aggregate_id":"a","version":1,"occurred_at":"2024-01-01T00:00:00Z","payload":{}}`},
		{"sin payload", `{"event_id":"` + validID + `","type":"UserRegistered","aggregate_id":"a","version":1,"occurred_at":"2024-01-01T00:00:00Z"}`},
		{"payload incompleto", `{"event_id":"` + validID + `","type":"UserRegistered","aggregate_id":"a","version":1,"occurred_at":"2024-01-01T00:00:00Z","payload":{"email":"a@b.c"}}`},
		{"payload con tipos erroneos", `{"event_id":"` + validID + `","type":"ProductCreated","aggregate_id":"a","version":1,"occurred_at":"2024-01-01T00:00:00Z","payload":{"stock":"many"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode([]byte(tt.data))

			assert.True(t, errors.Is(err, ErrMalformedEnvelope), "error: %v", err)
			assert.False(t, IsForwardCompatibleSkip(err))
		})
	}
}
