package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
)

// LedgerRepoMongoDB depende del índice único (eventId, consumerName) de EnsureIndexes.
type LedgerRepoMongoDB struct {
	store *Store
	coll  *mongo.Collection
}

func NewLedgerRepoMongoDB(store *Store) *LedgerRepoMongoDB {
	return &LedgerRepoMongoDB{store: store, coll: store.Collection(LedgerCollection)}
}

type mongoMarker struct {
	EventID      string    `bson:"eventId"`
	ConsumerName string    `bson:"consumerName"`
	ProcessedAt  time.Time `bson:"processedAt"`
}

func (r *LedgerRepoMongoDB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.store.WithinTransaction(ctx, fn)
}

func (r *LedgerRepoMongoDB) AlreadyApplied(ctx context.Context, eventID uuid.UUID, consumer string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"eventId": eventID.String(), "consumerName": consumer})
	if err != nil {
		return false, fmt.Errorf("failed to query ledger: %w", err)
	}
	return n > 0, nil
}

func (r *LedgerRepoMongoDB) MarkApplied(ctx context.Context, eventID uuid.UUID, consumer string) error {
	_, err := r.coll.InsertOne(ctx, mongoMarker{
		EventID:      eventID.String(),
		ConsumerName: consumer,
		ProcessedAt:  time.Now().UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return sharedDomain.ErrAlreadyApplied
	}
	if err != nil {
		return fmt.Errorf("failed to insert consumed marker: %w", err)
	}
	return nil
}

func (r *LedgerRepoMongoDB) Compact(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"processedAt": bson.M{"$lt": olderThan.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to compact ledger: %w", err)
	}
	return res.DeletedCount, nil
}

// DeadLetterRepoMongoDB guarda eventos en cuarentena como documentos.
type DeadLetterRepoMongoDB struct {
	coll *mongo.Collection
}

func NewDeadLetterRepoMongoDB(store *Store) *DeadLetterRepoMongoDB {
	return &DeadLetterRepoMongoDB{coll: store.Collection(DeadLetterCollection)}
}

type mongoDeadLetter struct {
	EventID   string                 `bson:"eventId"`
	EventType string                 `bson:"eventType"`
	Consumer  string                 `bson:"consumer"`
	Topic     string                 `bson:"topic"`
	Partition int                    `bson:"partition"`
	Offset    int64                  `bson:"offset"`
	Key       string                 `bson:"key"`
	Payload   []byte                 `bson:"payload"`
	Reason    string                 `bson:"reason"`
	Attempts  []sharedDomain.Attempt `bson:"attempts"`
	CreatedAt time.Time              `bson:"createdAt"`
}

func (r *DeadLetterRepoMongoDB) SaveDeadLetter(ctx context.Context, dl sharedDomain.DeadLetter) error {
	if dl.CreatedAt.IsZero() {
		dl.CreatedAt = time.Now().UTC()
	}
	_, err := r.coll.InsertOne(ctx, mongoDeadLetter{
		EventID:   dl.EventID,
		EventType: dl.EventType,
		Consumer:  dl.Consumer,
		Topic:     dl.Topic,
		Partition: dl.Partition,
		Offset:    dl.Offset,
		Key:       dl.Key,
		Payload:   dl.Payload,
		Reason:    dl.Reason,
		Attempts:  dl.Attempts,
		CreatedAt: dl.CreatedAt,
	})
	return err
}

func (r *DeadLetterRepoMongoDB) ListDeadLetters(ctx context.Context, limit int) ([]sharedDomain.DeadLetter, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, findLatest(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []sharedDomain.DeadLetter
	for cursor.Next(ctx) {
		var md mongoDeadLetter
		if err := cursor.Decode(&md); err != nil {
			return nil, err
		}
		out = append(out, sharedDomain.DeadLetter{
			EventID:   md.EventID,
			EventType: md.EventType,
			Consumer:  md.Consumer,
			Topic:     md.Topic,
			Partition: md.Partition,
			Offset:    md.Offset,
			Key:       md.Key,
			Payload:   md.Payload,
			Reason:    md.Reason,
			Attempts:  md.Attempts,
			CreatedAt: md.CreatedAt,
		})
	}
	if err := cursor.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}
	return out, nil
}

var (
	_ sharedDomain.Ledger          = (*LedgerRepoMongoDB)(nil)
	_ sharedDomain.LedgerCompactor = (*LedgerRepoMongoDB)(nil)
	_ sharedDomain.DeadLetterStore = (*DeadLetterRepoMongoDB)(nil)
)
