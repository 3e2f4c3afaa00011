package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
)

func send(t *testing.T, b *InMemoryEventBus, topic, key, value string) {
	t.Helper()
	require.NoError(t, b.Send(context.Background(), sharedBus.Message{Topic: topic, Key: key, Value: []byte(value)}))
}

func TestInMemoryEventBus_SameKeySamePartitionInOrder(t *testing.T) {
	// ARRANGE
	bus := NewInMemoryEventBus(4, WithShuffle(7))
	for i := 0; i < 20; i++ {
		send(t, bus, "user-events", fmt.Sprintf("k%d", i%3), fmt.Sprintf("%d", i))
	}
	sub, err := bus.Subscribe(context.Background(), "g", []string{"user-events"})
	require.NoError(t, err)

	// ACT
	seen := map[string][]string{}
	for i := 0; i < 20; i++ {
		d, err := sub.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, bus.PartitionFor(d.Key), d.Partition)
		seen[d.Key] = append(seen[d.Key], string(d.Value))
	}

	// ASSERT
	assert.Equal(t, []string{"0", "3", "6", "9", "12", "15", "18"}, seen["k0"])
	assert.Equal(t, []string{"1", "4", "7", "10", "13", "16", "19"}, seen["k1"])
}

func TestInMemoryEventBus_ResubscribeRedeliversUncommitted(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(1)
	send(t, bus, "t", "a", "1")
	send(t, bus, "t", "a", "2")

	sub, err := bus.Subscribe(ctx, "g", []string{"t"})
	require.NoError(t, err)
	first, err := sub.Fetch(ctx)
	require.NoError(t, err)
	require.NoError(t, sub.Commit(ctx, first))
	_, err = sub.Fetch(ctx)
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	// Un nuevo miembro del grupo empieza tras el último commit.
	sub, err = bus.Subscribe(ctx, "g", []string{"t"})
	require.NoError(t, err)
	d, err := sub.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", string(d.Value))
	assert.Equal(t, int64(1), bus.Committed("g", "t", 0))
	assert.Equal(t, int64(1), bus.Lag("g", "t"))

	// Otro grupo lee desde el principio.
	other, err := bus.Subscribe(ctx, "other", []string{"t"})
	require.NoError(t, err)
	d, err = other.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", string(d.Value))
}

func TestInMemoryEventBus_FetchBlocksUntilSend(t *testing.T) {
	bus := NewInMemoryEventBus(2)
	sub, err := bus.Subscribe(context.Background(), "g", []string{"t"})
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = bus.Send(context.Background(), sharedBus.Message{Topic: "t", Key: "k", Value: []byte("v")})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d, err := sub.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v", string(d.Value))
}

func TestInMemoryEventBus_FetchHonoursContext(t *testing.T) {
	bus := NewInMemoryEventBus(1)
	sub, err := bus.Subscribe(context.Background(), "g", []string{"t"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = sub.Fetch(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInMemoryEventBus_UnsubscribedTopicIsSilent(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(1)
	send(t, bus, "order_created", "o1", "x")

	sub, err := bus.Subscribe(ctx, "g", []string{"order-events"})
	require.NoError(t, err)

	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = sub.Fetch(fetchCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
