package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
	"github.com/davicafu/hexasync/internal/shared/infra/consumer"
	"github.com/davicafu/hexasync/internal/shared/infra/deadletter"
	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
	"github.com/davicafu/hexasync/tests/mocks"
)

func newRuntime(replicas *mocks.InMemoryReplicaRepo) (*consumer.Runtime, *sharedEvents.Codec) {
	codec := sharedEvents.NewCodec(sharedEvents.DefaultRegistry())
	group := NewReplicaConsumer(replicas, zap.NewNop()).Register(consumer.NewGroup(ReplicaGroup, "user-events", "product-events"))
	alerter := &mocks.RecordingAlerter{}
	rt := consumer.NewRuntime(group, nil, codec, mocks.NewInMemoryLedger(),
		deadletter.NewRouter(&mocks.InMemoryDeadLetterStore{}, nil, alerter, zap.NewNop()), alerter, consumer.Config{}, zap.NewNop())
	return rt, codec
}

func deliver(t *testing.T, rt *consumer.Runtime, codec *sharedEvents.Codec, topic string, evt sharedEvents.DomainEvent) consumer.Outcome {
	t.Helper()
	data, err := codec.Encode(evt)
	require.NoError(t, err)
	return rt.Process(context.Background(), sharedBus.Delivery{Topic: topic, Key: evt.PartitionKey(), Value: data})
}

func TestReplicaConsumer_UsersOutOfOrder(t *testing.T) {
	// ARRANGE
	replicas := mocks.NewInMemoryReplicaRepo()
	rt, codec := newRuntime(replicas)
	userID := uuid.New()
	registered := sharedEvents.New(userID.String(), sharedEvents.UserRegistered{UserID: userID, Email: "ana@example.com", Name: "Ana"})
	updated := sharedEvents.New(userID.String(), sharedEvents.UserUpdated{UserID: userID, Email: "ana@new.example.com", Name: "Ana"})
	updated.OccurredAt = registered.OccurredAt.Add(time.Second)

	// ACT: el update llega antes que el registro
	assert.Equal(t, consumer.OutcomeApplied, deliver(t, rt, codec, "user-events", updated))
	assert.Equal(t, consumer.OutcomeApplied, deliver(t, rt, codec, "user-events", registered))

	// ASSERT
	u, err := replicas.GetUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "ana@new.example.com", u.Email)
}

func TestReplicaConsumer_ProductAndStock(t *testing.T) {
	replicas := mocks.NewInMemoryReplicaRepo()
	rt, codec := newRuntime(replicas)
	productID := uuid.New()
	created := sharedEvents.New(productID.String(), sharedEvents.ProductCreated{ProductID: productID, Name: "Taza", Price: decimal.NewFromInt(4), Stock: 10})
	reserved := sharedEvents.New(productID.String(), sharedEvents.ProductStockReserved{ProductID: productID, OrderID: uuid.New(), Quantity: 3, Remaining: 7})
	reserved.OccurredAt = created.OccurredAt.Add(time.Millisecond)

	assert.Equal(t, consumer.OutcomeApplied, deliver(t, rt, codec, "product-events", created))
	assert.Equal(t, consumer.OutcomeApplied, deliver(t, rt, codec, "product-events", reserved))
	assert.Equal(t, consumer.OutcomeDuplicate, deliver(t, rt, codec, "product-events", created))

	p, err := replicas.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)

	// OrderCreated no tiene handler en este grupo
	orderID := uuid.New()
	order := sharedEvents.New(orderID.String(), sharedEvents.OrderCreated{
		OrderID: orderID, UserID: uuid.New(),
		Items: []sharedEvents.OrderLine{{ProductID: productID, Quantity: 1}},
	})
	assert.Equal(t, consumer.OutcomeSkipped, deliver(t, rt, codec, "order-events", order))
}
