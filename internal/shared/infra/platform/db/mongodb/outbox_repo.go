package mongodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
)

// OutboxRepoMongoDB implementa sharedDomain.OutboxRepository.
type OutboxRepoMongoDB struct {
	coll *mongo.Collection
}

func NewOutboxRepoMongoDB(store *Store) *OutboxRepoMongoDB {
	return &OutboxRepoMongoDB{coll: store.Collection(OutboxCollection)}
}

// mongoOutboxRecord mapea los documentos de la colección outbox.
// seq es un ObjectID generado en el cliente: sólo es monótono dentro de un
// mismo proceso, así que cada servicio necesita un único escritor por base
// para que el orden por clave se mantenga.
type mongoOutboxRecord struct {
	EventID      string             `bson:"_id"`
	Seq          primitive.ObjectID `bson:"seq"`
	EventType    string             `bson:"eventType"`
	Topic        string             `bson:"topic"`
	PartitionKey string             `bson:"partitionKey"`
	Payload      []byte             `bson:"payload"`
	Status       string             `bson:"status"`
	Attempts     int                `bson:"attempts"`
	LastError    string             `bson:"lastError"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

// InsertOutbox exige la sesión transaccional abierta por Store.WithinTransaction.
func (r *OutboxRepoMongoDB) InsertOutbox(ctx context.Context, rec sharedDomain.OutboxRecord) error {
	if mongo.SessionFromContext(ctx) == nil {
		return sharedDomain.ErrNoTransaction
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	doc := mongoOutboxRecord{
		EventID:      rec.EventID.String(),
		Seq:          primitive.NewObjectID(),
		EventType:    rec.EventType,
		Topic:        rec.Topic,
		PartitionKey: rec.PartitionKey,
		Payload:      rec.Payload,
		Status:       string(sharedDomain.OutboxPending),
		CreatedAt:    rec.CreatedAt.UTC(),
		UpdatedAt:    now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert outbox record: %w", err)
	}
	return nil
}

// FetchPendingOutbox omite las claves con algún registro Failed hasta que se reencole.
func (r *OutboxRepoMongoDB) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxRecord, error) {
	parked, err := r.coll.Distinct(ctx, "partitionKey", bson.M{"status": string(sharedDomain.OutboxFailed)})
	if err != nil {
		return nil, fmt.Errorf("failed to query parked keys: %w", err)
	}
	filter := bson.M{"status": string(sharedDomain.OutboxPending)}
	if len(parked) > 0 {
		filter["partitionKey"] = bson.M{"$nin": parked}
	}

	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}).SetLimit(int64(limit))
	recs, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	// El lote ya viene en orden de inserción; se agrupa por clave sin alterarlo.
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].PartitionKey < recs[j].PartitionKey })
	return recs, nil
}

func (r *OutboxRepoMongoDB) MarkOutboxPublished(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, bson.M{"_id": id.String()}, bson.M{
		"status":    string(sharedDomain.OutboxPublished),
		"updatedAt": time.Now().UTC(),
	})
}

func (r *OutboxRepoMongoDB) RecordOutboxAttempt(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error {
	return r.update(ctx, bson.M{"_id": id.String(), "status": string(sharedDomain.OutboxPending)}, bson.M{
		"attempts":  attempts,
		"lastError": lastErr,
		"updatedAt": time.Now().UTC(),
	})
}

func (r *OutboxRepoMongoDB) MarkOutboxFailed(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error {
	return r.update(ctx, bson.M{"_id": id.String()}, bson.M{
		"status":    string(sharedDomain.OutboxFailed),
		"attempts":  attempts,
		"lastError": lastErr,
		"updatedAt": time.Now().UTC(),
	})
}

func (r *OutboxRepoMongoDB) ListFailedOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, bson.M{"status": string(sharedDomain.OutboxFailed)}, opts)
}

func (r *OutboxRepoMongoDB) RequeueFailedOutbox(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, bson.M{"_id": id.String(), "status": string(sharedDomain.OutboxFailed)}, bson.M{
		"status":    string(sharedDomain.OutboxPending),
		"attempts":  0,
		"lastError": "",
		"updatedAt": time.Now().UTC(),
	})
}

func (r *OutboxRepoMongoDB) update(ctx context.Context, filter, set bson.M) error {
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %v", sharedDomain.ErrOutboxRecordNotFound, filter["_id"])
	}
	return nil
}

func (r *OutboxRepoMongoDB) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]sharedDomain.OutboxRecord, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []sharedDomain.OutboxRecord
	for cursor.Next(ctx) {
		var mo mongoOutboxRecord
		if err := cursor.Decode(&mo); err != nil {
			return nil, err
		}
		rec, err := fromMongoOutboxRecord(&mo)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, cursor.Err()
}

func fromMongoOutboxRecord(mo *mongoOutboxRecord) (sharedDomain.OutboxRecord, error) {
	id, err := uuid.Parse(mo.EventID)
	if err != nil {
		return sharedDomain.OutboxRecord{}, fmt.Errorf("invalid UUID in outbox document: %w", err)
	}
	return sharedDomain.OutboxRecord{
		EventID:      id,
		EventType:    mo.EventType,
		Topic:        mo.Topic,
		PartitionKey: mo.PartitionKey,
		Payload:      mo.Payload,
		Status:       sharedDomain.OutboxStatus(mo.Status),
		Attempts:     mo.Attempts,
		LastError:    mo.LastError,
		CreatedAt:    mo.CreatedAt,
		UpdatedAt:    mo.UpdatedAt,
	}, nil
}

var _ sharedDomain.OutboxRepository = (*OutboxRepoMongoDB)(nil)
