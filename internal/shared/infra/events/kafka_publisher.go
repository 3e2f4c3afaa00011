package events

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
)

// KafkaPublisher entrega mensajes al broker. La clave del mensaje es la
// partition key y el balanceador Hash la fija a una partición.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaWriter configura un writer sin topic fijo: cada mensaje lleva el suyo.
// Los reintentos los gobierna el publisher del outbox, no el writer.
func NewKafkaWriter(brokers []string, writeTimeout time.Duration) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            1,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           writeTimeout,
		ReadTimeout:            writeTimeout,
		Async:                  false,
		AllowAutoTopicCreation: false,
	}
}

func NewKafkaPublisher(writer *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

// Send sólo devuelve nil cuando todas las réplicas confirmaron.
func (p *KafkaPublisher) Send(ctx context.Context, msg sharedBus.Message) error {
	km := kafka.Message{
		Topic: msg.Topic,
		Key:   []byte(msg.Key),
		Value: msg.Value,
	}
	for k, v := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := p.writer.WriteMessages(ctx, km); err != nil {
		p.log.Warn("Error publishing to Kafka",
			zap.String("topic", msg.Topic),
			zap.String("partition_key", msg.Key),
			zap.Error(err),
		)
		return classifyKafkaError(err)
	}

	p.log.Debug("Event published successfully",
		zap.String("topic", msg.Topic),
		zap.String("partition_key", msg.Key),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// classifyKafkaError separa errores que un reintento puede resolver de los que no.
// Los permanentes se devuelven tal cual; el resto como TransientBrokerError.
func classifyKafkaError(err error) error {
	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) && len(writeErrs) > 0 && writeErrs[0] != nil {
		err = writeErrs[0]
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	var tooLarge kafka.MessageTooLargeError
	if errors.As(err, &tooLarge) {
		return err
	}

	var kerr kafka.Error
	if errors.As(err, &kerr) && !kerr.Temporary() {
		return err
	}

	return &sharedDomain.TransientBrokerError{Err: err}
}

var _ sharedBus.Producer = (*KafkaPublisher)(nil)
