package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
	"github.com/davicafu/hexasync/internal/shared/infra/alert"
	"github.com/davicafu/hexasync/internal/shared/infra/deadletter"
	"github.com/davicafu/hexasync/internal/shared/infra/metrics"
	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
	"github.com/davicafu/hexasync/internal/shared/infra/utils"
)

// Outcome es el resultado de procesar una entrega.
type Outcome int

const (
	// OutcomeApplied: el handler corrió y el marcador quedó escrito.
	OutcomeApplied Outcome = iota
	// OutcomeDuplicate: el ledger ya tenía marcador; no se invocó el handler.
	OutcomeDuplicate
	// OutcomeSkipped: tipo desconocido o sin handler en este grupo.
	OutcomeSkipped
	// OutcomeDeadLettered: datos corruptos, error fatal o reintentos agotados.
	OutcomeDeadLettered
	// OutcomeAborted: apagado a mitad de reintentos. El offset no avanza.
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDeadLettered:
		return "dead_lettered"
	case OutcomeAborted:
		return "aborted"
	}
	return "unknown"
}

// Commits avanza el offset para todo salvo Aborted.
func (o Outcome) Commits() bool { return o != OutcomeAborted }

type Config struct {
	MaxAttempts int
	Backoff     utils.Backoff
	// BacklogWarning: a partir de cuántas entregas encoladas en una partición
	// se avisa de que su worker va por detrás.
	BacklogWarning int
	CommitTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Backoff.Initial <= 0 {
		c.Backoff = utils.Backoff{Initial: 100 * time.Millisecond, Max: 5 * time.Second, Multiplier: 2}
	}
	if c.BacklogWarning <= 0 {
		c.BacklogWarning = 1000
	}
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = 5 * time.Second
	}
	return c
}

// Runtime ejecuta un grupo de consumo: una goroutine por partición asignada,
// en serie dentro de la partición y en paralelo entre particiones.
type Runtime struct {
	group      *Group
	subscriber sharedBus.Subscriber
	codec      *sharedEvents.Codec
	ledger     sharedDomain.Ledger
	router     *deadletter.Router
	alerter    alert.Alerter
	cfg        Config
	log        *zap.Logger
}

func NewRuntime(
	group *Group,
	subscriber sharedBus.Subscriber,
	codec *sharedEvents.Codec,
	ledger sharedDomain.Ledger,
	router *deadletter.Router,
	alerter alert.Alerter,
	cfg Config,
	log *zap.Logger,
) *Runtime {
	return &Runtime{
		group:      group,
		subscriber: subscriber,
		codec:      codec,
		ledger:     ledger,
		router:     router,
		alerter:    alerter,
		cfg:        cfg.withDefaults(),
		log:        log.With(zap.String("consumer", group.Name())),
	}
}

func (r *Runtime) Group() *Group { return r.group }

type partitionKey struct {
	topic     string
	partition int
}

// Run bloquea hasta que ctx se cancela. Al apagar, la entrega en curso de cada
// partición termina y confirma su offset; las encoladas no se empiezan.
func (r *Runtime) Run(ctx context.Context) error {
	sub, err := r.subscriber.Subscribe(ctx, r.group.Name(), r.group.Topics())
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", r.group.Name(), err)
	}
	defer sub.Close()

	r.log.Info("🎧 Consumer group iniciado", zap.Strings("topics", r.group.Topics()))

	workers := make(map[partitionKey]*partitionQueue)
	var wg sync.WaitGroup
	defer func() {
		for _, q := range workers {
			q.close()
		}
		wg.Wait()
		r.log.Info("🛑 Consumer group detenido.")
	}()

	fetchFailures := 0
	for {
		d, err := sub.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fetchFailures++
			r.log.Error("Error al leer mensaje del broker", zap.Error(err), zap.Int("attempt", fetchFailures))
			if utils.Sleep(ctx, r.cfg.Backoff.Delay(fetchFailures)) != nil {
				return nil
			}
			continue
		}
		fetchFailures = 0

		pk := partitionKey{topic: d.Topic, partition: d.Partition}
		q, ok := workers[pk]
		if !ok {
			q = newPartitionQueue()
			workers[pk] = q
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.partitionWorker(ctx, sub, q)
			}()
		}

		if n := q.push(d); n == r.cfg.BacklogWarning {
			r.log.Warn("⚠️ Partición con entregas acumuladas",
				zap.String("topic", d.Topic), zap.Int("partition", d.Partition), zap.Int("backlog", n))
		}
	}
}

func (r *Runtime) partitionWorker(ctx context.Context, sub sharedBus.Subscription, q *partitionQueue) {
	halted := false
	for {
		d, ok := q.pop()
		if !ok {
			return
		}
		// Tras un aborto o un apagado no se avanza más en esta partición.
		if halted || ctx.Err() != nil {
			continue
		}

		outcome := r.Process(ctx, d)
		if !outcome.Commits() {
			halted = true
			continue
		}
		r.commit(ctx, sub, d)
	}
}

func (r *Runtime) commit(ctx context.Context, sub sharedBus.Subscription, d sharedBus.Delivery) {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.CommitTimeout)
	defer cancel()
	if err := sub.Commit(commitCtx, d); err != nil {
		// La entrega se repetirá y el ledger la descartará.
		r.alerter.Alert(ctx, alert.KindOffsetCommitFailed, "No se pudo confirmar el offset",
			zap.String("topic", d.Topic), zap.Int("partition", d.Partition), zap.Int64("offset", d.Offset), zap.Error(err))
	}
}

// Process aplica el protocolo a una entrega: decodificar, consultar el ledger,
// invocar el handler con reintentos y marcar, o mandar a dead letter.
// No confirma offsets; eso lo hace quien llama según Outcome.Commits.
func (r *Runtime) Process(ctx context.Context, d sharedBus.Delivery) Outcome {
	outcome := r.process(ctx, d)
	metrics.ConsumerEvents.WithLabelValues(r.group.Name(), outcome.String()).Inc()
	return outcome
}

func (r *Runtime) process(ctx context.Context, d sharedBus.Delivery) Outcome {
	fields := []zap.Field{
		zap.String("topic", d.Topic),
		zap.Int("partition", d.Partition),
		zap.Int64("offset", d.Offset),
	}

	evt, err := r.codec.Decode(d.Value)
	if err != nil {
		var decErr *sharedEvents.DecodingError
		errors.As(err, &decErr)
		if sharedEvents.IsForwardCompatibleSkip(err) {
			r.log.Debug("Tipo de evento desconocido, se salta", append(fields, zap.String("event_type", decErr.Type))...)
			return OutcomeSkipped
		}
		q := deadletter.Quarantined{Consumer: r.group.Name(), Delivery: d, Reason: err.Error()}
		if decErr != nil {
			q.EventID, q.EventType = decErr.EventID, decErr.Type
		}
		r.log.Warn("Evento ilegible, a dead letter", append(fields, zap.Error(err))...)
		r.router.Quarantine(ctx, q)
		return OutcomeDeadLettered
	}

	fields = append(fields, zap.String("event_id", evt.EventID.String()), zap.String("event_type", string(evt.Type)))

	handler, ok := r.group.handler(evt.Type)
	if !ok {
		r.log.Debug("Sin handler para el tipo, se salta", fields...)
		return OutcomeSkipped
	}

	var history []sharedDomain.Attempt
	for attempt := 1; ; attempt++ {
		outcome, err := r.apply(ctx, evt, handler)
		if err == nil {
			if outcome == OutcomeDuplicate {
				r.log.Debug("Evento ya aplicado, se salta", fields...)
			}
			return outcome
		}

		history = append(history, sharedDomain.Attempt{Number: attempt, Error: err.Error(), At: time.Now().UTC()})
		if sharedDomain.IsFatal(err) || attempt >= r.cfg.MaxAttempts {
			r.log.Warn("Handler sin éxito, a dead letter",
				append(fields, zap.Int("attempt", attempt), zap.Bool("fatal", sharedDomain.IsFatal(err)), zap.Error(err))...)
			r.router.Quarantine(ctx, deadletter.Quarantined{
				Consumer:  r.group.Name(),
				Delivery:  d,
				EventID:   evt.EventID.String(),
				EventType: string(evt.Type),
				Reason:    err.Error(),
				Attempts:  history,
			})
			return OutcomeDeadLettered
		}

		r.log.Warn("⚠️ Handler falló, reintentando", append(fields, zap.Int("attempt", attempt), zap.Error(err))...)
		if utils.Sleep(ctx, r.cfg.Backoff.Delay(attempt)) != nil {
			r.log.Info("Apagado durante reintentos; el evento se repetirá", fields...)
			return OutcomeAborted
		}
	}
}

// apply consulta el ledger, invoca el handler y escribe el marcador en la
// transacción del ledger. Un intento ya empezado termina aunque ctx se cancele.
func (r *Runtime) apply(ctx context.Context, evt sharedEvents.DomainEvent, h Handler) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	name := r.group.Name()

	applied, err := r.ledger.AlreadyApplied(ctx, evt.EventID, name)
	if err != nil {
		return 0, sharedDomain.Retryable(fmt.Errorf("ledger lookup: %w", err))
	}
	if applied {
		return OutcomeDuplicate, nil
	}

	start := time.Now()
	err = r.ledger.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := invoke(txCtx, h, evt); err != nil {
			return err
		}
		return r.ledger.MarkApplied(txCtx, evt.EventID, name)
	})
	if errors.Is(err, sharedDomain.ErrAlreadyApplied) {
		// Otra entrega del mismo evento ganó la carrera.
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return 0, err
	}

	metrics.HandlerDuration.WithLabelValues(name, string(evt.Type)).Observe(time.Since(start).Seconds())
	return OutcomeApplied, nil
}

// invoke convierte un panic del handler en error fatal.
func invoke(ctx context.Context, h Handler, evt sharedEvents.DomainEvent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = sharedDomain.Fatal(fmt.Errorf("handler panic: %v", p))
		}
	}()
	return h(ctx, evt)
}
