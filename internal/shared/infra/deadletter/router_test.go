package deadletter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	"github.com/davicafu/hexasync/internal/shared/infra/alert"
	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
	"github.com/davicafu/hexasync/tests/mocks"
)

func poison() Quarantined {
	return Quarantined{
		Consumer:  "products-orders",
		Delivery:  sharedBus.Delivery{Topic: "order-events", Partition: 1, Offset: 7, Key: "order-1", Value: []byte(`{"bad":true}`)},
		EventID:   "e1",
		EventType: "OrderCreated",
		Reason:    "insufficient stock",
		Attempts:  []sharedDomain.Attempt{{Number: 1, Error: "insufficient stock", At: time.Now()}},
	}
}

func TestRouter_Quarantine_StoreAndTopic(t *testing.T) {
	// ARRANGE
	store := &mocks.InMemoryDeadLetterStore{}
	producer := new(mocks.MockProducer)
	alerter := &mocks.RecordingAlerter{}
	producer.On("Send", mock.Anything, mock.MatchedBy(func(msg sharedBus.Message) bool {
		return msg.Topic == "order-events.dlq" &&
			msg.Key == "order-1" &&
			msg.Headers["reason"] == "insufficient stock" &&
			msg.Headers["source_offset"] == "7"
	})).Return(nil).Once()

	router := NewRouter(store, producer, alerter, zap.NewNop())

	// ACT
	router.Quarantine(context.Background(), poison())

	// ASSERT
	producer.AssertExpectations(t)
	letters := store.All()
	require.Len(t, letters, 1)
	assert.Equal(t, "products-orders", letters[0].Consumer)
	assert.Equal(t, int64(7), letters[0].Offset)
	assert.Equal(t, []byte(`{"bad":true}`), letters[0].Payload)
	assert.Equal(t, 1, alerter.Count(alert.KindDeadLettered))

	listed, err := router.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestRouter_Quarantine_NeverPanicsWhenAllSinksFail(t *testing.T) {
	store := &mocks.InMemoryDeadLetterStore{FailSaves: errors.New("disk full")}
	producer := new(mocks.MockProducer)
	alerter := &mocks.RecordingAlerter{}
	producer.On("Send", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	router := NewRouter(store, producer, alerter, zap.NewNop())

	assert.NotPanics(t, func() { router.Quarantine(context.Background(), poison()) })
	assert.Equal(t, 1, alerter.Count(alert.KindQuarantineFailed))
	assert.Zero(t, alerter.Count(alert.KindDeadLettered))
}

func TestRouter_Quarantine_SurvivesCancelledContext(t *testing.T) {
	store := &mocks.InMemoryDeadLetterStore{}
	router := NewRouter(store, nil, &mocks.RecordingAlerter{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	router.Quarantine(ctx, poison())

	assert.Len(t, store.All(), 1)
}
