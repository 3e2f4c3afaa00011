package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/davicafu/hexasync/internal/order/domain"
	sharedMongo "github.com/davicafu/hexasync/internal/shared/infra/platform/db/mongodb"
)

const (
	OrdersCollection  = "orders"
	UsersCollection   = "known_users"
	CatalogCollection = "product_catalog"
)

// OrderRepoMongoDB implementa OrderRepository. Las escrituras usan la sesión
// que Store.WithinTransaction deja en el contexto.
type OrderRepoMongoDB struct {
	coll *mongo.Collection
}

func NewOrderRepoMongoDB(store *sharedMongo.Store) *OrderRepoMongoDB {
	return &OrderRepoMongoDB{coll: store.Collection(OrdersCollection)}
}

// --- Structs de BSON para el mapeo ---
// Se definen localmente para no "contaminar" el dominio con tags de BSON.

type mongoOrderItem struct {
	ProductID string               `bson:"productId"`
	Quantity  int                  `bson:"quantity"`
	UnitPrice primitive.Decimal128 `bson:"unitPrice"`
}

type mongoOrder struct {
	ID        string               `bson:"_id"`
	UserID    string               `bson:"userId"`
	Items     []mongoOrderItem     `bson:"items"`
	Total     primitive.Decimal128 `bson:"total"`
	Status    string               `bson:"status"`
	Reason    string               `bson:"reason"`
	CreatedAt time.Time            `bson:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt"`
}

func (r *OrderRepoMongoDB) Create(ctx context.Context, o *domain.Order) error {
	doc, err := toMongoOrder(o)
	if err != nil {
		return err
	}
	_, err = r.coll.InsertOne(ctx, doc)
	return err
}

func (r *OrderRepoMongoDB) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var doc mongoOrder
	err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromMongoOrder(doc)
}

func (r *OrderRepoMongoDB) Update(ctx context.Context, o *domain.Order) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": o.ID.String()}, bson.M{"$set": bson.M{
		"status":    string(o.Status),
		"reason":    o.Reason,
		"updatedAt": o.UpdatedAt.UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// --- Mappers ---

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	out, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("decimal %s: %w", d, err)
	}
	return out, nil
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(d.String())
}

func toMongoOrder(o *domain.Order) (mongoOrder, error) {
	total, err := toDecimal128(o.Total)
	if err != nil {
		return mongoOrder{}, err
	}
	items := make([]mongoOrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		price, err := toDecimal128(it.UnitPrice)
		if err != nil {
			return mongoOrder{}, err
		}
		items = append(items, mongoOrderItem{ProductID: it.ProductID.String(), Quantity: it.Quantity, UnitPrice: price})
	}
	return mongoOrder{
		ID:        o.ID.String(),
		UserID:    o.UserID.String(),
		Items:     items,
		Total:     total,
		Status:    string(o.Status),
		Reason:    o.Reason,
		CreatedAt: o.CreatedAt.UTC(),
		UpdatedAt: o.UpdatedAt.UTC(),
	}, nil
}

func fromMongoOrder(doc mongoOrder) (*domain.Order, error) {
	o := &domain.Order{
		Status:    domain.OrderStatus(doc.Status),
		Reason:    doc.Reason,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
	var err error
	if o.ID, err = uuid.Parse(doc.ID); err != nil {
		return nil, fmt.Errorf("invalid UUID in DB: %w", err)
	}
	if o.UserID, err = uuid.Parse(doc.UserID); err != nil {
		return nil, fmt.Errorf("invalid UUID in DB: %w", err)
	}
	if o.Total, err = fromDecimal128(doc.Total); err != nil {
		return nil, err
	}
	for _, mi := range doc.Items {
		it := domain.OrderItem{Quantity: mi.Quantity}
		if it.ProductID, err = uuid.Parse(mi.ProductID); err != nil {
			return nil, fmt.Errorf("invalid UUID in DB: %w", err)
		}
		if it.UnitPrice, err = fromDecimal128(mi.UnitPrice); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return o, nil
}

// ReplicaRepoMongoDB guarda las réplicas como documentos con la fecha del
// último hecho aplicado.
type ReplicaRepoMongoDB struct {
	users   *mongo.Collection
	catalog *mongo.Collection
}

func NewReplicaRepoMongoDB(store *sharedMongo.Store) *ReplicaRepoMongoDB {
	return &ReplicaRepoMongoDB{users: store.Collection(UsersCollection), catalog: store.Collection(CatalogCollection)}
}

type mongoKnownUser struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Name      string    `bson:"name"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type mongoCatalogProduct struct {
	ID        string               `bson:"_id"`
	Name      string               `bson:"name"`
	Price     primitive.Decimal128 `bson:"price"`
	Stock     int                  `bson:"stock"`
	UpdatedAt time.Time            `bson:"updatedAt"`
}

// upsertIfNewer sólo encuentra el documento si no es más reciente que at.
// Si existe y es más reciente, el upsert choca con _id y se ignora.
func upsertIfNewer(ctx context.Context, coll *mongo.Collection, id string, at time.Time, set bson.M) error {
	_, err := coll.UpdateOne(ctx,
		bson.M{"_id": id, "updatedAt": bson.M{"$lte": at}},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (r *ReplicaRepoMongoDB) UpsertUser(ctx context.Context, u domain.KnownUser) error {
	at := u.UpdatedAt.UTC()
	return upsertIfNewer(ctx, r.users, u.ID.String(), at, bson.M{"email": u.Email, "name": u.Name, "updatedAt": at})
}

func (r *ReplicaRepoMongoDB) GetUser(ctx context.Context, id uuid.UUID) (*domain.KnownUser, error) {
	var doc mongoKnownUser
	err := r.users.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownUser, id)
	}
	if err != nil {
		return nil, err
	}
	return &domain.KnownUser{ID: id, Email: doc.Email, Name: doc.Name, UpdatedAt: doc.UpdatedAt.UTC()}, nil
}

func (r *ReplicaRepoMongoDB) UpsertProduct(ctx context.Context, p domain.CatalogProduct) error {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return err
	}
	at := p.UpdatedAt.UTC()
	return upsertIfNewer(ctx, r.catalog, p.ID.String(), at, bson.M{"name": p.Name, "price": price, "stock": p.Stock, "updatedAt": at})
}

func (r *ReplicaRepoMongoDB) GetProduct(ctx context.Context, id uuid.UUID) (*domain.CatalogProduct, error) {
	var doc mongoCatalogProduct
	err := r.catalog.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProduct, id)
	}
	if err != nil {
		return nil, err
	}
	price, err := fromDecimal128(doc.Price)
	if err != nil {
		return nil, err
	}
	return &domain.CatalogProduct{ID: id, Name: doc.Name, Price: price, Stock: doc.Stock, UpdatedAt: doc.UpdatedAt.UTC()}, nil
}

func (r *ReplicaRepoMongoDB) UpdateStock(ctx context.Context, productID uuid.UUID, remaining int, at time.Time) error {
	at = at.UTC()
	_, err := r.catalog.UpdateOne(ctx,
		bson.M{"_id": productID.String(), "updatedAt": bson.M{"$lte": at}},
		bson.M{"$set": bson.M{"stock": remaining, "updatedAt": at}},
	)
	return err
}

var (
	_ domain.OrderRepository   = (*OrderRepoMongoDB)(nil)
	_ domain.ReplicaRepository = (*ReplicaRepoMongoDB)(nil)
)
