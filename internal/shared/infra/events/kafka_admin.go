package events

import (
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
)

// KafkaAdmin provisiona y verifica topics contra el cluster.
type KafkaAdmin struct {
	broker string
}

func NewKafkaAdmin(brokers []string) (*KafkaAdmin, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	return &KafkaAdmin{broker: brokers[0]}, nil
}

// CreateTopics crea los topics en el controller. Los existentes se ignoran.
func (a *KafkaAdmin) CreateTopics(topics []string, partitions, replication int) error {
	conn, err := kafka.Dial("tcp", a.broker)
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}
	ctrlConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer ctrlConn.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, t := range topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             t,
			NumPartitions:     partitions,
			ReplicationFactor: replication,
		})
	}
	return ctrlConn.CreateTopics(configs...)
}

// VerifyTopics falla con TopicMismatchError si alguno de los topics no existe en el cluster.
func (a *KafkaAdmin) VerifyTopics(topics []string) error {
	conn, err := kafka.Dial("tcp", a.broker)
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("read partitions: %w", err)
	}

	existing := make(map[string]struct{})
	for _, p := range partitions {
		existing[p.Topic] = struct{}{}
	}
	known := make([]string, 0, len(existing))
	for t := range existing {
		known = append(known, t)
	}

	for _, t := range topics {
		if _, ok := existing[t]; !ok {
			return &sharedDomain.TopicMismatchError{Source: "broker " + a.broker, Topic: t, Known: known}
		}
	}
	return nil
}
