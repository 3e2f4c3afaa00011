package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/hexasync/internal/shared/infra/events"
	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
	"github.com/davicafu/hexasync/internal/shared/infra/utils"
)

// openBroker elige Kafka o el broker en memoria. Con Kafka, antes de arrancar
// se comprueba que todos los topics de la topología existen.
func (a *App) openBroker(ctx context.Context) error {
	if !a.cfg.Kafka.Enabled {
		a.log.Info("⚡️ Usando bus de eventos en memoria", zap.Int("partitions", a.cfg.Kafka.Partitions))
		bus := events.NewInMemoryEventBus(a.cfg.Kafka.Partitions)
		a.producer, a.subscriber = bus, bus
		a.closers = append(a.closers, bus.Close)
		return nil
	}

	a.log.Info("🚀 Usando Kafka como bus de eventos", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	admin, err := events.NewKafkaAdmin(a.cfg.Kafka.Brokers)
	if err != nil {
		return err
	}
	topics := RequiredTopics(a.Topology, a.cfg.Kafka.DeadLetterTopics)
	err = utils.Retry(ctx, 3, time.Second, func() error { return admin.VerifyTopics(topics) })
	if err != nil {
		return err
	}

	writer := events.NewKafkaWriter(a.cfg.Kafka.Brokers, a.cfg.Outbox.SendTimeout)
	publisher := events.NewKafkaPublisher(writer, a.log)
	a.producer = publisher
	a.subscriber = events.NewKafkaSubscriber(a.cfg.Kafka.Brokers, a.log)
	a.closers = append(a.closers, publisher.Close)
	return nil
}

// RequiredTopics son los topics de productor y, si se usan, sus topics de cuarentena.
func RequiredTopics(topo sharedBus.Topology, withDeadLetters bool) []string {
	produced := topo.ProducedTopics()
	if !withDeadLetters {
		return produced
	}
	out := append([]string(nil), produced...)
	for _, t := range produced {
		out = append(out, sharedBus.DeadLetterTopic(t))
	}
	return out
}
