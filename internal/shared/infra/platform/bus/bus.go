package bus

import "context"

type Keyer interface {
	PartitionKey() string
}

// Message es lo que el publisher entrega al broker. Key decide la partición.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Delivery es un mensaje leído de una partición concreta.
type Delivery struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Value     []byte
	Headers   map[string]string
}

// Producer sólo devuelve nil cuando el broker confirmó la escritura.
type Producer interface {
	Send(ctx context.Context, msg Message) error
}

// Subscription entrega mensajes en orden dentro de cada partición.
// Commit avanza el offset del grupo hasta d incluido.
type Subscription interface {
	Fetch(ctx context.Context) (Delivery, error)
	Commit(ctx context.Context, d Delivery) error
	Close() error
}

// Subscriber une un grupo de consumo a un conjunto de topics.
type Subscriber interface {
	Subscribe(ctx context.Context, group string, topics []string) (Subscription, error)
}

// Broker agrupa ambos lados. Lo implementan Kafka y el broker en memoria.
type Broker interface {
	Producer
	Subscriber
}
