package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	auditEvents "github.com/davicafu/hexasync/internal/audit/infra/inbound/events"
	auditCH "github.com/davicafu/hexasync/internal/audit/infra/outbound/analytics/clickhouse"
	"github.com/davicafu/hexasync/internal/config"
	orderApp "github.com/davicafu/hexasync/internal/order/application"
	orderDomain "github.com/davicafu/hexasync/internal/order/domain"
	orderEvents "github.com/davicafu/hexasync/internal/order/infra/inbound/events"
	orderHttp "github.com/davicafu/hexasync/internal/order/infra/inbound/http"
	orderMongo "github.com/davicafu/hexasync/internal/order/infra/outbound/db/mongodb"
	orderSQL "github.com/davicafu/hexasync/internal/order/infra/outbound/db/sqlstore"
	productApp "github.com/davicafu/hexasync/internal/product/application"
	productEvents "github.com/davicafu/hexasync/internal/product/infra/inbound/events"
	productHttp "github.com/davicafu/hexasync/internal/product/infra/inbound/http"
	productSQL "github.com/davicafu/hexasync/internal/product/infra/outbound/db/sqlstore"
	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
	"github.com/davicafu/hexasync/internal/shared/infra/alert"
	"github.com/davicafu/hexasync/internal/shared/infra/consumer"
	"github.com/davicafu/hexasync/internal/shared/infra/deadletter"
	"github.com/davicafu/hexasync/internal/shared/infra/outbox"
	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/cache"
	sharedMongo "github.com/davicafu/hexasync/internal/shared/infra/platform/db/mongodb"
	"github.com/davicafu/hexasync/internal/shared/infra/relayer"
	"github.com/davicafu/hexasync/internal/shared/infra/utils"
	userApp "github.com/davicafu/hexasync/internal/user/application"
	userEvents "github.com/davicafu/hexasync/internal/user/infra/inbound/events"
	userHttp "github.com/davicafu/hexasync/internal/user/infra/inbound/http"
	userSQL "github.com/davicafu/hexasync/internal/user/infra/outbound/db/sqlstore"
)

// Nombres de servicio. Coinciden con el contexto dueño de cada topic.
const (
	ServiceUsers    = sharedEvents.ContextUsers
	ServiceProducts = sharedEvents.ContextProducts
	ServiceOrders   = sharedEvents.ContextOrders
	ServiceAudit    = "audit"
)

const compactInterval = time.Hour

// Service es la maquinaria de sincronización privada de un servicio: su
// outbox, su publisher, su ledger y sus grupos de consumo.
type Service struct {
	Name        string
	Outbox      sharedDomain.OutboxRepository
	Ledger      sharedDomain.Ledger
	DeadLetters *deadletter.Router
	Writer      *outbox.Writer
	Worker      *relayer.Worker
	Runtimes    []*consumer.Runtime
	compactor   sharedDomain.LedgerCompactor
	log         *zap.Logger
}

// App contiene los tres servicios en un mismo proceso. Cada uno conserva sus
// propias bases; sólo comparten el broker.
type App struct {
	cfg      *config.Config
	log      *zap.Logger
	Topology sharedBus.Topology
	Codec    *sharedEvents.Codec
	Services map[string]*Service
	Router   *gin.Engine

	Users    *userApp.UserService
	Products *productApp.ProductService
	Orders   *orderApp.OrderService

	producer   sharedBus.Producer
	subscriber sharedBus.Subscriber
	alerter    alert.Alerter
	cache      cache.Cache
	routes     []func(gin.IRouter)
	closers    []func() error
}

// New valida la topología y abre todo lo necesario. No arranca ningún bucle:
// eso lo hace Run. Si algo falla, lo ya abierto se cierra.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		Topology: cfg.Topology(),
		Codec:    sharedEvents.NewCodec(sharedEvents.DefaultRegistry()),
		Services: make(map[string]*Service),
		alerter:  alert.NewLogAlerter(log),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if err := a.openBroker(ctx); err != nil {
		return nil, err
	}

	var closeCache func() error
	a.cache, closeCache = openCache(ctx, cfg.Redis, log)
	a.closers = append(a.closers, closeCache)

	if err := a.buildUsers(ctx); err != nil {
		return nil, fmt.Errorf("users service: %w", err)
	}
	if err := a.buildProducts(ctx); err != nil {
		return nil, fmt.Errorf("products service: %w", err)
	}
	if err := a.buildOrders(ctx); err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}
	if cfg.ClickHouse.Enabled {
		if err := a.buildAudit(ctx); err != nil {
			return nil, fmt.Errorf("audit service: %w", err)
		}
	}

	a.Router = a.newRouter()
	return a, nil
}

func (a *App) buildUsers(ctx context.Context) error {
	db, err := openSQL(ctx, a.cfg.Store, a.cfg.Store.UsersDSN)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, db.SQL().Close)
	if err := userSQL.InitSchema(ctx, db); err != nil {
		return err
	}

	svc := a.newService(ServiceUsers, sqlStores(db))
	activity := userSQL.NewActivityRepo(db)
	a.Users = userApp.NewUserService(userSQL.NewUserRepo(db), a.cache, svc.Writer, svc.log)

	group := userEvents.NewUserConsumer(activity, svc.log).
		Register(consumer.NewGroup(config.GroupUsersSelf, a.cfg.Topics.UsersSelf...))
	a.addRuntime(svc, group)

	h := userHttp.NewUserHandler(a.Users, activity)
	a.routes = append(a.routes, func(r gin.IRouter) { userHttp.RegisterUserRoutes(r, h) })
	return nil
}

func (a *App) buildProducts(ctx context.Context) error {
	db, err := openSQL(ctx, a.cfg.Store, a.cfg.Store.ProductsDSN)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, db.SQL().Close)
	if err := productSQL.InitSchema(ctx, db); err != nil {
		return err
	}

	svc := a.newService(ServiceProducts, sqlStores(db))
	a.Products = productApp.NewProductService(productSQL.NewProductRepo(db), svc.Writer, svc.log)

	group := productEvents.NewOrderConsumer(a.Products, svc.log).
		Register(consumer.NewGroup(config.GroupProductsOrders, a.cfg.Topics.ProductsOrders...))
	a.addRuntime(svc, group)

	h := productHttp.NewProductHandler(a.Products)
	a.routes = append(a.routes, func(r gin.IRouter) { productHttp.RegisterProductRoutes(r, h) })
	return nil
}

// buildOrders usa Mongo si está activo; si no, el store SQL configurado.
func (a *App) buildOrders(ctx context.Context) error {
	var (
		st       syncStores
		orders   orderDomain.OrderRepository
		replicas orderDomain.ReplicaRepository
	)

	if a.cfg.Mongo.Enabled {
		store, err := sharedMongo.Connect(ctx, a.cfg.Mongo.URI, a.cfg.Mongo.Database)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { return store.Disconnect(context.Background()) })
		if err := store.EnsureIndexes(ctx); err != nil {
			return err
		}
		st = mongoStores(store)
		orders = orderMongo.NewOrderRepoMongoDB(store)
		replicas = orderMongo.NewReplicaRepoMongoDB(store)
		a.log.Info("✅ MongoDB conectado para pedidos", zap.String("db", a.cfg.Mongo.Database))
	} else {
		db, err := openSQL(ctx, a.cfg.Store, a.cfg.Store.OrdersDSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.SQL().Close)
		if err := orderSQL.InitSchema(ctx, db); err != nil {
			return err
		}
		st = sqlStores(db)
		orders = orderSQL.NewOrderRepo(db)
		replicas = orderSQL.NewReplicaRepo(db)
	}

	svc := a.newService(ServiceOrders, st)
	a.Orders = orderApp.NewOrderService(orders, replicas, svc.Writer, svc.log)

	group := orderEvents.NewReplicaConsumer(replicas, svc.log).
		Register(consumer.NewGroup(config.GroupOrdersReplica, a.cfg.Topics.OrdersReplica...))
	a.addRuntime(svc, group)

	h := orderHttp.NewOrderHandler(a.Orders)
	a.routes = append(a.routes, func(r gin.IRouter) { orderHttp.RegisterOrderRoutes(r, h) })
	return nil
}

// buildAudit escribe en ClickHouse. Su ledger vive en una base SQL aparte
// porque ClickHouse no ofrece transacciones.
func (a *App) buildAudit(ctx context.Context) error {
	repo, err := auditCH.NewEventLogRepo(a.cfg.ClickHouse.Addr, a.cfg.ClickHouse.Database, a.cfg.ClickHouse.User, a.cfg.ClickHouse.Password)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, repo.Close)
	if err := repo.InitSchema(ctx); err != nil {
		return err
	}

	db, err := openSQL(ctx, a.cfg.Store, a.cfg.Store.AuditDSN)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, db.SQL().Close)

	svc := a.newService(ServiceAudit, sqlStores(db))
	group := auditEvents.NewAuditConsumer(repo, sharedEvents.DefaultRegistry(), svc.log).
		Register(consumer.NewGroup(config.GroupAudit, a.cfg.Topics.Audit...))
	a.addRuntime(svc, group)
	return nil
}

func (a *App) addRuntime(svc *Service, group *consumer.Group) {
	rt := consumer.NewRuntime(group, a.subscriber, a.Codec, svc.Ledger, svc.DeadLetters, a.alerter, consumer.Config{
		MaxAttempts:   a.cfg.Consumer.MaxAttempts,
		Backoff:       backoff(a.cfg.Consumer.BackoffInitial, a.cfg.Consumer.BackoffMax),
		CommitTimeout: a.cfg.Consumer.CommitTimeout,
	}, svc.log)
	svc.Runtimes = append(svc.Runtimes, rt)
}

func backoff(initial, max time.Duration) utils.Backoff {
	return utils.Backoff{Initial: initial, Max: max, Multiplier: 2}
}

// Service devuelve la maquinaria de un servicio por nombre.
func (a *App) Service(name string) (*Service, error) {
	svc, ok := a.Services[name]
	if !ok {
		return nil, fmt.Errorf("unknown service %q (known: %v)", name, a.ServiceNames())
	}
	return svc, nil
}

func (a *App) ServiceNames() []string {
	names := make([]string, 0, len(a.Services))
	for n := range a.Services {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunLoops arranca publishers, grupos de consumo y la compactación del ledger.
// Bloquea hasta que ctx se cancela y todos los bucles han salido.
func (a *App) RunLoops(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range a.ServiceNames() {
		svc := a.Services[name]
		g.Go(func() error {
			svc.Worker.Start(gctx)
			return nil
		})
		for _, rt := range svc.Runtimes {
			g.Go(func() error { return rt.Run(gctx) })
		}
		g.Go(func() error {
			a.compactLoop(gctx, svc)
			return nil
		})
	}
	return g.Wait()
}

// Run añade el servidor HTTP a RunLoops y apaga todo al cancelar ctx.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.cfg.HTTP.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.RunLoops(gctx) })
	g.Go(func() error {
		a.log.Info("🚀 Server running", zap.String("url", "http://localhost:"+a.cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// compactLoop borra marcadores más viejos que la retención configurada, que
// debe superar la ventana de redelivery del broker.
func (a *App) compactLoop(ctx context.Context, svc *Service) {
	if svc.compactor == nil || a.cfg.Consumer.LedgerRetention <= 0 {
		return
	}
	ticker := time.NewTicker(compactInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.compactor.Compact(ctx, time.Now().UTC().Add(-a.cfg.Consumer.LedgerRetention))
			if err != nil {
				svc.log.Warn("⚠️ Error al compactar el ledger", zap.Error(err))
				continue
			}
			if n > 0 {
				svc.log.Info("🧹 Ledger compactado", zap.Int64("removed", n))
			}
		}
	}
}

// Close libera conexiones en orden inverso a su apertura.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Requeue pasa un registro Failed a Pending con los intentos a cero.
func (s *Service) Requeue(ctx context.Context, id uuid.UUID) error {
	if err := s.Outbox.RequeueFailedOutbox(ctx, id); err != nil {
		return err
	}
	s.log.Info("🔁 Registro de outbox reencolado", zap.String("event_id", id.String()))
	s.Worker.Notify()
	return nil
}
