package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
	"github.com/davicafu/hexasync/internal/shared/infra/consumer"
	"github.com/davicafu/hexasync/internal/shared/infra/deadletter"
	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
	"github.com/davicafu/hexasync/tests/mocks"
)

func TestUserConsumer_RedeliveryRecordsOnce(t *testing.T) {
	// ARRANGE
	activity := mocks.NewInMemoryActivityRepo()
	codec := sharedEvents.NewCodec(sharedEvents.DefaultRegistry())
	group := NewUserConsumer(activity, zap.NewNop()).Register(consumer.NewGroup(SelfGroup, "user-events"))
	alerter := &mocks.RecordingAlerter{}
	rt := consumer.NewRuntime(group, nil, codec, mocks.NewInMemoryLedger(),
		deadletter.NewRouter(&mocks.InMemoryDeadLetterStore{}, nil, alerter, zap.NewNop()), alerter, consumer.Config{}, zap.NewNop())

	userID := uuid.New()
	registered := sharedEvents.New(userID.String(), sharedEvents.UserRegistered{UserID: userID, Email: "ana@example.com", Name: "Ana"})
	updated := sharedEvents.New(userID.String(), sharedEvents.UserUpdated{UserID: userID, Email: "ana@new.example.com", Name: "Ana"})

	deliver := func(evt sharedEvents.DomainEvent) consumer.Outcome {
		data, err := codec.Encode(evt)
		require.NoError(t, err)
		return rt.Process(context.Background(), sharedBus.Delivery{Topic: "user-events", Key: evt.PartitionKey(), Value: data})
	}

	// ACT
	assert.Equal(t, consumer.OutcomeApplied, deliver(registered))
	assert.Equal(t, consumer.OutcomeDuplicate, deliver(registered))
	assert.Equal(t, consumer.OutcomeApplied, deliver(updated))

	// ASSERT
	list, err := activity.ListByUser(context.Background(), userID, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ana@new.example.com", list[1].Email)
	assert.ElementsMatch(t, []sharedEvents.EventType{sharedEvents.TypeUserRegistered, sharedEvents.TypeUserUpdated}, group.EventTypes())
}
