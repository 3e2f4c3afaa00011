package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
)

// Nombres de colecciones de sincronización.
const (
	OutboxCollection     = "outbox"
	LedgerCollection     = "consumed_markers"
	DeadLetterCollection = "dead_letters"
)

// Store agrupa el cliente y la base de datos de un servicio. Las transacciones
// requieren que Mongo corra como replica set.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ sharedDomain.Transactor = (*Store)(nil)

// Connect abre el cliente y comprueba el primario.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}
	return NewStore(client, dbName), nil
}

func NewStore(client *mongo.Client, dbName string) *Store {
	return &Store{client: client, db: client.Database(dbName)}
}

func (s *Store) Database() *mongo.Database { return s.db }

func (s *Store) Collection(name string) *mongo.Collection { return s.db.Collection(name) }

func (s *Store) Disconnect(ctx context.Context) error { return s.client.Disconnect(ctx) }

// WithinTransaction abre sesión y transacción; si el contexto ya trae una
// sesión, fn se ejecuta dentro de ella.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return &sharedDomain.TransactionError{Op: "start session", Err: err}
	}
	defer session.EndSession(ctx)

	var fnErr error
	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		fnErr = fn(sessCtx)
		return nil, fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return &sharedDomain.TransactionError{Op: "commit", Err: err}
	}
	return nil
}

// EnsureIndexes crea los índices que sostienen orden del outbox y unicidad del ledger.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.Collection(OutboxCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "seq", Value: 1}},
	}); err != nil {
		return fmt.Errorf("outbox index: %w", err)
	}
	if _, err := s.Collection(LedgerCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "eventId", Value: 1}, {Key: "consumerName", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "processedAt", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("ledger index: %w", err)
	}
	return nil
}

func findLatest(limit int) *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
}
