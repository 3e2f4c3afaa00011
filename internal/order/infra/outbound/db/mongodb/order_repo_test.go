package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/hexasync/internal/order/domain"
	sharedMongo "github.com/davicafu/hexasync/internal/shared/infra/platform/db/mongodb"
)

// setupMongo se conecta a un replica set real; sin MONGO_URI el test se salta.
func setupMongo(t *testing.T) *sharedMongo.Store {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI no está configurada, saltando test de integración con MongoDB")
	}
	ctx := context.Background()
	store, err := sharedMongo.Connect(ctx, uri, "hexasync_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Database().Drop(ctx)
		_ = store.Disconnect(ctx)
	})
	require.NoError(t, store.EnsureIndexes(ctx))
	return store
}

func TestDecimal128RoundTrip(t *testing.T) {
	d := decimal.RequireFromString("1234.5678")

	d128, err := toDecimal128(d)
	require.NoError(t, err)
	back, err := fromDecimal128(d128)

	require.NoError(t, err)
	assert.True(t, d.Equal(back))
}

func TestOrderRepoMongoDB_CreateInTransaction(t *testing.T) {
	store := setupMongo(t)
	repo := NewOrderRepoMongoDB(store)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	o := &domain.Order{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Items:     []domain.OrderItem{{ProductID: uuid.New(), Quantity: 2, UnitPrice: decimal.RequireFromString("2.5")}},
		Status:    domain.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.CalculateTotal()

	require.NoError(t, store.WithinTransaction(ctx, func(txCtx context.Context) error { return repo.Create(txCtx, o) }))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(5)))
	require.Len(t, got.Items, 1)
}

func TestReplicaRepoMongoDB_StaleUpsertIgnored(t *testing.T) {
	store := setupMongo(t)
	repo := NewReplicaRepoMongoDB(store)
	ctx := context.Background()
	id := uuid.New()
	t0 := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, repo.UpsertUser(ctx, domain.KnownUser{ID: id, Email: "nuevo@example.com", Name: "Ana", UpdatedAt: t0.Add(time.Minute)}))
	require.NoError(t, repo.UpsertUser(ctx, domain.KnownUser{ID: id, Email: "viejo@example.com", Name: "Ana", UpdatedAt: t0}))

	got, err := repo.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "nuevo@example.com", got.Email)
}
