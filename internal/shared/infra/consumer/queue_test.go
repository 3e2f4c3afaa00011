package consumer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
)

func TestPartitionQueue_PushNeverBlocksAndKeepsOrder(t *testing.T) {
	q := newPartitionQueue()
	for i := 0; i < 10_000; i++ {
		q.push(sharedBus.Delivery{Offset: int64(i)})
	}

	for i := 0; i < 10_000; i++ {
		d, ok := q.pop()
		assert.True(t, ok)
		assert.Equal(t, int64(i), d.Offset)
	}
}

func TestPartitionQueue_CloseDropsPending(t *testing.T) {
	q := newPartitionQueue()
	q.push(sharedBus.Delivery{Offset: 1})
	q.close()

	_, ok := q.pop()

	assert.False(t, ok)
}
