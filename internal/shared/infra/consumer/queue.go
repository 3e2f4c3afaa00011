package consumer

import (
	"sync"

	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
)

// partitionQueue es la cola de entregas de una partición. push no bloquea
// nunca, así una partición lenta no frena la lectura de las demás.
type partitionQueue struct {
	mu     sync.Mutex
	items  []sharedBus.Delivery
	ready  chan struct{}
	closed bool
}

func newPartitionQueue() *partitionQueue {
	return &partitionQueue{ready: make(chan struct{}, 1)}
}

// push encola d y devuelve cuántas entregas quedan pendientes.
func (q *partitionQueue) push(d sharedBus.Delivery) int {
	q.mu.Lock()
	q.items = append(q.items, d)
	n := len(q.items)
	q.mu.Unlock()
	q.signal()
	return n
}

// pop espera la siguiente entrega. Devuelve false tras close; lo encolado
// entonces se descarta y el broker lo reentregará.
func (q *partitionQueue) pop() (sharedBus.Delivery, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.items = nil
			q.mu.Unlock()
			return sharedBus.Delivery{}, false
		}
		if len(q.items) > 0 {
			d := q.items[0]
			q.items[0] = sharedBus.Delivery{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return d, true
		}
		q.mu.Unlock()
		<-q.ready
	}
}

func (q *partitionQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *partitionQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
