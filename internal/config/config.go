package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
)

// Nombres de los grupos de consumo. Coinciden con los que registra cada servicio.
const (
	GroupUsersSelf      = "users-self"
	GroupProductsOrders = "products-orders"
	GroupOrdersReplica  = "orders-replica"
	GroupAudit          = "audit"
)

type Config struct {
	App        App        `yaml:"app"`
	HTTP       HTTP       `yaml:"http"`
	Log        Log        `yaml:"log"`
	Store      Store      `yaml:"store"`
	Mongo      Mongo      `yaml:"mongo"`
	Redis      Redis      `yaml:"redis"`
	ClickHouse ClickHouse `yaml:"clickhouse"`
	Kafka      Kafka      `yaml:"kafka"`
	Topics     Topics     `yaml:"topics"`
	Outbox     Outbox     `yaml:"outbox"`
	Consumer   Consumer   `yaml:"consumer"`
	Metrics    Metrics    `yaml:"metrics"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"hexasync"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// Store: cada servicio tiene su propia base; nada se comparte entre servicios.
type Store struct {
	Driver      string `yaml:"driver" env:"STORE_DRIVER" env-default:"sqlite"`
	UsersDSN    string `yaml:"users_dsn" env:"USERS_DSN" env-default:"./hexasync_users.db"`
	ProductsDSN string `yaml:"products_dsn" env:"PRODUCTS_DSN" env-default:"./hexasync_products.db"`
	OrdersDSN   string `yaml:"orders_dsn" env:"ORDERS_DSN" env-default:"./hexasync_orders.db"`
	AuditDSN    string `yaml:"audit_dsn" env:"AUDIT_DSN" env-default:"./hexasync_audit.db"`
	MaxConns    int    `yaml:"max_conns" env:"STORE_MAX_CONNS" env-default:"10"`
}

// Mongo, si está activo, sustituye al store SQL del servicio de pedidos.
type Mongo struct {
	Enabled  bool   `yaml:"enabled" env:"MONGO_ENABLED" env-default:"false"`
	URI      string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017/?replicaSet=rs0"`
	Database string `yaml:"database" env:"MONGO_DB" env-default:"hexasync_orders"`
}

type Redis struct {
	Enabled  bool          `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL" env-default:"5m"`
}

type ClickHouse struct {
	Enabled  bool   `yaml:"enabled" env:"CLICKHOUSE_ENABLED" env-default:"false"`
	Addr     string `yaml:"addr" env:"CLICKHOUSE_ADDR" env-default:"localhost:9000"`
	Database string `yaml:"database" env:"CLICKHOUSE_DB" env-default:"default"`
	User     string `yaml:"user" env:"CLICKHOUSE_USER" env-default:"default"`
	Password string `yaml:"password" env:"CLICKHOUSE_PASSWORD"`
}

// Kafka desactivado usa el broker en memoria del proceso.
type Kafka struct {
	Enabled           bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers           []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Partitions        int      `yaml:"partitions" env:"KAFKA_PARTITIONS" env-default:"6"`
	ReplicationFactor int      `yaml:"replication_factor" env:"KAFKA_REPLICATION" env-default:"1"`
	DeadLetterTopics  bool     `yaml:"dead_letter_topics" env:"KAFKA_DLQ_TOPICS" env-default:"true"`
}

// Topics: el topic de productor de cada contexto y las suscripciones de cada grupo.
type Topics struct {
	Users          string   `yaml:"users" env:"TOPIC_USERS" env-default:"user-events"`
	Products       string   `yaml:"products" env:"TOPIC_PRODUCTS" env-default:"product-events"`
	Orders         string   `yaml:"orders" env:"TOPIC_ORDERS" env-default:"order-events"`
	UsersSelf      []string `yaml:"users_self" env:"GROUP_USERS_SELF_TOPICS" env-default:"user-events"`
	ProductsOrders []string `yaml:"products_orders" env:"GROUP_PRODUCTS_ORDERS_TOPICS" env-default:"order-events"`
	OrdersReplica  []string `yaml:"orders_replica" env:"GROUP_ORDERS_REPLICA_TOPICS" env-default:"user-events,product-events"`
	Audit          []string `yaml:"audit" env:"GROUP_AUDIT_TOPICS" env-default:"user-events,product-events,order-events"`
}

type Outbox struct {
	Interval       time.Duration `yaml:"interval" env:"OUTBOX_INTERVAL" env-default:"1s"`
	BatchSize      int           `yaml:"batch_size" env:"OUTBOX_BATCH_SIZE" env-default:"100"`
	MaxAttempts    int           `yaml:"max_attempts" env:"OUTBOX_MAX_ATTEMPTS" env-default:"5"`
	Concurrency    int           `yaml:"concurrency" env:"OUTBOX_CONCURRENCY" env-default:"8"`
	BackoffInitial time.Duration `yaml:"backoff_initial" env:"OUTBOX_BACKOFF_INITIAL" env-default:"200ms"`
	BackoffMax     time.Duration `yaml:"backoff_max" env:"OUTBOX_BACKOFF_MAX" env-default:"10s"`
	SendTimeout    time.Duration `yaml:"send_timeout" env:"OUTBOX_SEND_TIMEOUT" env-default:"10s"`
}

type Consumer struct {
	MaxAttempts     int           `yaml:"max_attempts" env:"CONSUMER_MAX_ATTEMPTS" env-default:"5"`
	BackoffInitial  time.Duration `yaml:"backoff_initial" env:"CONSUMER_BACKOFF_INITIAL" env-default:"100ms"`
	BackoffMax      time.Duration `yaml:"backoff_max" env:"CONSUMER_BACKOFF_MAX" env-default:"5s"`
	CommitTimeout   time.Duration `yaml:"commit_timeout" env:"CONSUMER_COMMIT_TIMEOUT" env-default:"5s"`
	LedgerRetention time.Duration `yaml:"ledger_retention" env:"LEDGER_RETENTION" env-default:"168h"`
}

type Metrics struct {
	Enabled bool `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
}

// New lee path (si existe) y deja que las variables de entorno lo sobrescriban.
func New(path string) (*Config, error) {
	cfg := &Config{}

	if _, statErr := os.Stat(path); path != "" && statErr == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Topology arma productores y grupos a partir de la configuración.
// El grupo de auditoría sólo existe con ClickHouse activo.
func (c *Config) Topology() sharedBus.Topology {
	topo := sharedBus.Topology{
		Producers: map[string]string{
			sharedEvents.ContextUsers:    c.Topics.Users,
			sharedEvents.ContextProducts: c.Topics.Products,
			sharedEvents.ContextOrders:   c.Topics.Orders,
		},
		Groups: map[string][]string{
			GroupUsersSelf:      c.Topics.UsersSelf,
			GroupProductsOrders: c.Topics.ProductsOrders,
			GroupOrdersReplica:  c.Topics.OrdersReplica,
		},
	}
	if c.ClickHouse.Enabled {
		topo.Groups[GroupAudit] = c.Topics.Audit
	}
	return topo
}

// Validate falla en arranque, antes de abrir ningún bucle. Un topic mal
// escrito se devuelve como TopicMismatchError.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config error: unknown store driver %q", c.Store.Driver)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("config error: kafka enabled without brokers")
	}
	topo := c.Topology()
	if err := topo.ValidateRegistry(sharedEvents.DefaultRegistry()); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return topo.Validate()
}
