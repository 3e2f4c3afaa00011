package relayer

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	"github.com/davicafu/hexasync/internal/shared/infra/alert"
	"github.com/davicafu/hexasync/internal/shared/infra/metrics"
	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
	"github.com/davicafu/hexasync/internal/shared/infra/utils"
)

// Config del publisher de outbox.
type Config struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	// Concurrency limita cuántas partition keys se publican a la vez.
	Concurrency int
	Backoff     utils.Backoff
	SendTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

const maxBatchesPerTick = 10

// Worker drena la tabla outbox hacia el broker.
// Cada partition key es un carril: sus registros salen en orden y uno a uno;
// carriles distintos avanzan en paralelo.
type Worker struct {
	name     string
	repo     sharedDomain.OutboxRepository
	producer sharedBus.Producer
	cfg      Config
	alerter  alert.Alerter
	log      *zap.Logger
	wake     chan struct{}
}

func NewOutboxWorker(
	name string,
	repo sharedDomain.OutboxRepository,
	producer sharedBus.Producer,
	cfg Config,
	alerter alert.Alerter,
	log *zap.Logger,
) *Worker {
	return &Worker{
		name:     name,
		repo:     repo,
		producer: producer,
		cfg:      cfg.withDefaults(),
		alerter:  alerter,
		log:      log.With(zap.String("outbox", name)),
		wake:     make(chan struct{}, 1),
	}
}

// Notify adelanta el siguiente ciclo sin esperar al ticker. No bloquea:
// varias llamadas seguidas se funden en un solo ciclo.
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start inicia el bucle de polling del worker. Bloquea hasta que ctx se cancela.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.log.Info("🚀 Outbox worker iniciado", zap.Duration("interval", w.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox worker detenido.")
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-w.wake:
			w.drain(ctx)
		}
	}
}

// drain publica mientras haya lotes llenos, con tope por ciclo.
func (w *Worker) drain(ctx context.Context) {
	for i := 0; i < maxBatchesPerTick; i++ {
		n, err := w.ProcessBatch(ctx)
		if err != nil || n < w.cfg.BatchSize || ctx.Err() != nil {
			return
		}
	}
}

// ProcessBatch publica un lote y devuelve cuántos registros se leyeron.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	records, err := w.repo.FetchPendingOutbox(ctx, w.cfg.BatchSize)
	if err != nil {
		w.log.Warn("⚠️ Error al obtener eventos pendientes", zap.Error(err))
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	w.log.Debug("📬 Eventos encontrados para procesar", zap.Int("count", len(records)))

	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for _, lane := range lanes(records) {
		g.Go(func() error {
			w.publishLane(ctx, lane)
			return nil
		})
	}
	_ = g.Wait()

	return len(records), nil
}

// lanes agrupa registros consecutivos con la misma partition key.
// El repositorio los entrega ya ordenados por (partition_key, inserción).
func lanes(records []sharedDomain.OutboxRecord) [][]sharedDomain.OutboxRecord {
	var out [][]sharedDomain.OutboxRecord
	start := 0
	for i := 1; i <= len(records); i++ {
		if i == len(records) || records[i].PartitionKey != records[start].PartitionKey {
			out = append(out, records[start:i])
			start = i
		}
	}
	return out
}

// publishLane se detiene en cuanto un registro no se publica; el resto del
// carril queda Pending y conserva su orden. Si el registro acabó Failed, el
// repositorio deja de entregar la clave hasta RequeueFailedOutbox.
func (w *Worker) publishLane(ctx context.Context, lane []sharedDomain.OutboxRecord) {
	for _, rec := range lane {
		if !w.publishAndMark(ctx, rec) {
			return
		}
	}
}

// publishAndMark devuelve false si el carril debe parar.
func (w *Worker) publishAndMark(ctx context.Context, rec sharedDomain.OutboxRecord) bool {
	fields := []zap.Field{
		zap.String("event_id", rec.EventID.String()),
		zap.String("event_type", rec.EventType),
		zap.String("topic", rec.Topic),
		zap.String("partition_key", rec.PartitionKey),
	}

	attempts := rec.Attempts
	for {
		attempts++
		err := w.send(ctx, rec)
		if err == nil {
			if err := w.repo.MarkOutboxPublished(ctx, rec.EventID); err != nil {
				// Se republicará en el siguiente lote; los consumidores deduplican.
				w.log.Warn("⚠️ No se pudo marcar evento como publicado", append(fields, zap.Error(err))...)
				return false
			}
			metrics.OutboxPublished.WithLabelValues(rec.Topic).Inc()
			w.log.Debug("✅ Evento publicado y marcado", append(fields, zap.Int("attempt", attempts))...)
			return true
		}

		// Una cancelación no cuenta como intento.
		if ctx.Err() != nil {
			return false
		}

		lastErr := err.Error()
		if !sharedDomain.IsTransient(err) || attempts >= w.cfg.MaxAttempts {
			if err := w.repo.MarkOutboxFailed(ctx, rec.EventID, attempts, lastErr); err != nil {
				w.log.Error("No se pudo marcar evento como fallido", append(fields, zap.Error(err))...)
				return false
			}
			metrics.OutboxFailed.WithLabelValues(rec.Topic).Inc()
			w.alerter.Alert(ctx, alert.KindOutboxFailed, "Evento de outbox marcado como fallido",
				append(fields, zap.Int("attempt", attempts), zap.String("last_error", lastErr))...)
			// La clave queda aparcada hasta que se reencole el registro.
			return false
		}

		metrics.OutboxRetries.WithLabelValues(rec.Topic).Inc()
		w.log.Warn("⚠️ No se pudo publicar evento, reintentando",
			append(fields, zap.Int("attempt", attempts), zap.Error(err))...)
		if err := w.repo.RecordOutboxAttempt(ctx, rec.EventID, attempts, lastErr); err != nil {
			w.log.Warn("⚠️ No se pudo registrar el intento", append(fields, zap.Error(err))...)
			return false
		}
		if utils.Sleep(ctx, w.cfg.Backoff.Delay(attempts)) != nil {
			return false
		}
	}
}

func (w *Worker) send(ctx context.Context, rec sharedDomain.OutboxRecord) error {
	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	defer cancel()
	return w.producer.Send(sendCtx, sharedBus.Message{
		Topic: rec.Topic,
		Key:   rec.PartitionKey,
		Value: rec.Payload,
		Headers: map[string]string{
			"event_id":   rec.EventID.String(),
			"event_type": rec.EventType,
		},
	})
}
