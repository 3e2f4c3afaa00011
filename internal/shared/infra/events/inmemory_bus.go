package events

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/twmb/murmur3"

	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
)

// ErrBusClosed se devuelve al usar el bus después de Close.
var ErrBusClosed = errors.New("in-memory bus closed")

// InMemoryEventBus es un log particionado en memoria con offsets por grupo.
// Reproduce lo que importa del broker real: orden por partición, clave a
// partición estable, commits explícitos y redelivery desde el último commit.
type InMemoryEventBus struct {
	mu         sync.Mutex
	partitions int
	logs       map[string][][]sharedBus.Delivery
	committed  map[offsetKey]int64
	notify     chan struct{}
	closed     bool
	rnd        *rand.Rand
}

type offsetKey struct {
	group     string
	topic     string
	partition int
}

// Verifica en tiempo de compilación que cumple la interfaz
var _ sharedBus.Broker = (*InMemoryEventBus)(nil)

type InMemoryOption func(*InMemoryEventBus)

// WithShuffle entrega las particiones en orden aleatorio. El orden dentro de
// cada partición se mantiene.
func WithShuffle(seed int64) InMemoryOption {
	return func(b *InMemoryEventBus) { b.rnd = rand.New(rand.NewSource(seed)) }
}

func NewInMemoryEventBus(partitions int, opts ...InMemoryOption) *InMemoryEventBus {
	if partitions <= 0 {
		partitions = 1
	}
	b := &InMemoryEventBus{
		partitions: partitions,
		logs:       make(map[string][][]sharedBus.Delivery),
		committed:  make(map[offsetKey]int64),
		notify:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PartitionFor usa murmur3 sobre la clave, igual para todos los productores.
func (b *InMemoryEventBus) PartitionFor(key string) int {
	return int(murmur3.Sum32([]byte(key)) % uint32(b.partitions))
}

func (b *InMemoryEventBus) Send(ctx context.Context, msg sharedBus.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.Topic == "" {
		return fmt.Errorf("message without topic")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}

	logs := b.topicLogs(msg.Topic)
	p := b.PartitionFor(msg.Key)
	logs[p] = append(logs[p], sharedBus.Delivery{
		Topic:     msg.Topic,
		Partition: p,
		Offset:    int64(len(logs[p])),
		Key:       msg.Key,
		Value:     append([]byte(nil), msg.Value...),
		Headers:   copyHeaders(msg.Headers),
	})

	// Despierta a los Fetch bloqueados.
	close(b.notify)
	b.notify = make(chan struct{})
	return nil
}

// Subscribe empieza en el último offset confirmado del grupo en cada partición.
func (b *InMemoryEventBus) Subscribe(ctx context.Context, group string, topics []string) (sharedBus.Subscription, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("consumer group %q without topics", group)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	sub := &inMemorySubscription{bus: b, group: group, cursors: make(map[offsetKey]int64)}
	for _, topic := range topics {
		b.topicLogs(topic)
		for p := 0; p < b.partitions; p++ {
			k := offsetKey{group: group, topic: topic, partition: p}
			sub.keys = append(sub.keys, k)
			sub.cursors[k] = b.committed[k]
		}
	}
	return sub, nil
}

// Committed devuelve el siguiente offset a leer por el grupo en esa partición.
func (b *InMemoryEventBus) Committed(group, topic string, partition int) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed[offsetKey{group: group, topic: topic, partition: partition}]
}

// Messages devuelve todo lo escrito en un topic, partición a partición.
func (b *InMemoryEventBus) Messages(topic string) []sharedBus.Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sharedBus.Delivery
	for _, log := range b.logs[topic] {
		out = append(out, log...)
	}
	return out
}

// Lag suma los mensajes pendientes de confirmar por el grupo en los topics.
func (b *InMemoryEventBus) Lag(group string, topics ...string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var lag int64
	for _, topic := range topics {
		for p, log := range b.logs[topic] {
			lag += int64(len(log)) - b.committed[offsetKey{group: group, topic: topic, partition: p}]
		}
	}
	return lag
}

func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.notify)
	}
	return nil
}

// topicLogs requiere b.mu.
func (b *InMemoryEventBus) topicLogs(topic string) [][]sharedBus.Delivery {
	logs, ok := b.logs[topic]
	if !ok {
		logs = make([][]sharedBus.Delivery, b.partitions)
		b.logs[topic] = logs
	}
	return logs
}

type inMemorySubscription struct {
	bus     *InMemoryEventBus
	group   string
	keys    []offsetKey
	cursors map[offsetKey]int64
	next    int
	closed  bool
}

func (s *inMemorySubscription) Fetch(ctx context.Context) (sharedBus.Delivery, error) {
	for {
		s.bus.mu.Lock()
		if s.closed || s.bus.closed {
			s.bus.mu.Unlock()
			return sharedBus.Delivery{}, ErrBusClosed
		}
		if d, ok := s.pick(); ok {
			s.bus.mu.Unlock()
			return d, nil
		}
		wait := s.bus.notify
		s.bus.mu.Unlock()

		select {
		case <-ctx.Done():
			return sharedBus.Delivery{}, ctx.Err()
		case <-wait:
		}
	}
}

// pick requiere bus.mu. Recorre las particiones en round robin o al azar.
func (s *inMemorySubscription) pick() (sharedBus.Delivery, bool) {
	var ready []offsetKey
	for i := range s.keys {
		k := s.keys[(s.next+i)%len(s.keys)]
		if s.cursors[k] < int64(len(s.bus.logs[k.topic][k.partition])) {
			ready = append(ready, k)
		}
	}
	if len(ready) == 0 {
		return sharedBus.Delivery{}, false
	}

	k := ready[0]
	if s.bus.rnd != nil {
		k = ready[s.bus.rnd.Intn(len(ready))]
	}
	s.next = (s.next + 1) % len(s.keys)

	d := s.bus.logs[k.topic][k.partition][s.cursors[k]]
	s.cursors[k]++
	d.Value = append([]byte(nil), d.Value...)
	d.Headers = copyHeaders(d.Headers)
	return d, true
}

// Commit nunca retrocede el offset confirmado.
func (s *inMemorySubscription) Commit(ctx context.Context, d sharedBus.Delivery) error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return ErrBusClosed
	}
	k := offsetKey{group: s.group, topic: d.Topic, partition: d.Partition}
	if d.Offset+1 > s.bus.committed[k] {
		s.bus.committed[k] = d.Offset + 1
	}
	return nil
}

// Close despierta a un Fetch bloqueado en esta suscripción.
func (s *inMemorySubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.closed = true
	if !s.bus.closed {
		close(s.bus.notify)
		s.bus.notify = make(chan struct{})
	}
	return nil
}

func copyHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
