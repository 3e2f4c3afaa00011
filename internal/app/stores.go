package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/davicafu/hexasync/internal/config"
	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	"github.com/davicafu/hexasync/internal/shared/infra/deadletter"
	"github.com/davicafu/hexasync/internal/shared/infra/ledger"
	"github.com/davicafu/hexasync/internal/shared/infra/outbox"
	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/cache"
	sharedMongo "github.com/davicafu/hexasync/internal/shared/infra/platform/db/mongodb"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/postgres"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqlite"
	"github.com/davicafu/hexasync/internal/shared/infra/relayer"
	"github.com/davicafu/hexasync/internal/shared/infra/utils"
)

// openSQL abre la base de un servicio y crea las tablas de sincronización.
func openSQL(ctx context.Context, cfg config.Store, dsn string) (*sqldb.DB, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, dsn, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := postgres.InitSchema(ctx, db.SQL()); err != nil {
			_ = db.SQL().Close()
			return nil, fmt.Errorf("init postgres schema: %w", err)
		}
		return db, nil
	default:
		db, err := sqlite.Open(dsn)
		if err != nil {
			return nil, err
		}
		if err := sqlite.InitSchema(ctx, db.SQL()); err != nil {
			_ = db.SQL().Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
		return db, nil
	}
}

// syncStores son los tres almacenes privados de un servicio más su transactor.
type syncStores struct {
	tx          sharedDomain.Transactor
	outbox      sharedDomain.OutboxRepository
	ledger      sharedDomain.Ledger
	compactor   sharedDomain.LedgerCompactor
	deadLetters sharedDomain.DeadLetterStore
}

func sqlStores(db *sqldb.DB) syncStores {
	l := sqldb.NewLedgerRepo(db)
	return syncStores{
		tx:          db,
		outbox:      sqldb.NewOutboxRepo(db),
		ledger:      l,
		compactor:   l,
		deadLetters: sqldb.NewDeadLetterRepo(db),
	}
}

func mongoStores(store *sharedMongo.Store) syncStores {
	l := sharedMongo.NewLedgerRepoMongoDB(store)
	return syncStores{
		tx:          store,
		outbox:      sharedMongo.NewOutboxRepoMongoDB(store),
		ledger:      l,
		compactor:   l,
		deadLetters: sharedMongo.NewDeadLetterRepoMongoDB(store),
	}
}

// newService monta writer, publisher, ledger con caché y router de dead letters
// sobre los almacenes de un servicio.
func (a *App) newService(name string, st syncStores) *Service {
	log := a.log.With(zap.String("service", name))

	worker := relayer.NewOutboxWorker(name, st.outbox, a.producer, relayer.Config{
		Interval:    a.cfg.Outbox.Interval,
		BatchSize:   a.cfg.Outbox.BatchSize,
		MaxAttempts: a.cfg.Outbox.MaxAttempts,
		Concurrency: a.cfg.Outbox.Concurrency,
		Backoff:     backoff(a.cfg.Outbox.BackoffInitial, a.cfg.Outbox.BackoffMax),
		SendTimeout: a.cfg.Outbox.SendTimeout,
	}, a.alerter, log)

	writer := outbox.NewWriter(st.tx, st.outbox, a.Codec, a.Topology, log).WithNotifier(worker)

	dlqProducer := utils.Ternary[sharedBus.Producer](a.cfg.Kafka.DeadLetterTopics, a.producer, nil)

	svc := &Service{
		Name:        name,
		Outbox:      st.outbox,
		Ledger:      ledger.NewCachedLedger(st.ledger, a.cache, int(a.cfg.Redis.CacheTTL.Seconds()), log),
		DeadLetters: deadletter.NewRouter(st.deadLetters, dlqProducer, a.alerter, log),
		Writer:      writer,
		Worker:      worker,
		compactor:   st.compactor,
		log:         log,
	}
	a.Services[name] = svc
	return svc
}

// openCache usa Redis si está activo y responde; si no, caché en memoria.
func openCache(ctx context.Context, cfg config.Redis, log *zap.Logger) (cache.Cache, func() error) {
	if cfg.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr})
		rc := cache.NewRedisCache(rdb, "hexasync:")
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := rc.Ping(pingCtx)
		if err == nil {
			log.Info("✅ Redis conectado, cache habilitado", zap.String("addr", cfg.Addr))
			return rc, rdb.Close
		}
		log.Warn("⚠️ Redis no disponible, cache en memoria", zap.Error(err))
		_ = rdb.Close()
	}
	mem := cache.NewInMemoryCache(cfg.CacheTTL, 3*cfg.CacheTTL)
	return mem, func() error { mem.Stop(); return nil }
}
