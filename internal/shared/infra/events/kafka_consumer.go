package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
)

// KafkaSubscriber crea un Reader de grupo por suscripción.
type KafkaSubscriber struct {
	brokers []string
	log     *zap.Logger
}

func NewKafkaSubscriber(brokers []string, log *zap.Logger) *KafkaSubscriber {
	return &KafkaSubscriber{brokers: brokers, log: log}
}

func (s *KafkaSubscriber) Subscribe(ctx context.Context, group string, topics []string) (sharedBus.Subscription, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("consumer group %q without topics", group)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     s.brokers,
		GroupID:     group,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
		// Commits síncronos: el offset avanza sólo cuando lo pide el runtime.
		CommitInterval: 0,
		Dialer: &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
		},
	})

	s.log.Info("🎧 Iniciando consumidor de Kafka...",
		zap.String("consumer", group),
		zap.Strings("topics", topics),
		zap.Strings("brokers", s.brokers),
	)
	return &kafkaSubscription{reader: reader}, nil
}

type kafkaSubscription struct {
	reader *kafka.Reader
}

// Fetch no confirma el mensaje; eso lo hace Commit.
func (s *kafkaSubscription) Fetch(ctx context.Context) (sharedBus.Delivery, error) {
	msg, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return sharedBus.Delivery{}, err
	}

	d := sharedBus.Delivery{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       string(msg.Key),
		Value:     msg.Value,
	}
	if len(msg.Headers) > 0 {
		d.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			d.Headers[h.Key] = string(h.Value)
		}
	}
	return d, nil
}

func (s *kafkaSubscription) Commit(ctx context.Context, d sharedBus.Delivery) error {
	return s.reader.CommitMessages(ctx, kafka.Message{
		Topic:     d.Topic,
		Partition: d.Partition,
		Offset:    d.Offset,
	})
}

func (s *kafkaSubscription) Close() error {
	return s.reader.Close()
}

var _ sharedBus.Subscriber = (*KafkaSubscriber)(nil)
