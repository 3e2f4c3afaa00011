package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/hexasync/internal/order/domain"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqlite"
)

func setupTestDB(t *testing.T) *sqldb.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.SQL().Close() })
	require.NoError(t, InitSchema(context.Background(), db))
	return db
}

func TestOrderRepo_CreateGetUpdate(t *testing.T) {
	// ARRANGE
	db := setupTestDB(t)
	repo := NewOrderRepo(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	o := &domain.Order{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Items: []domain.OrderItem{
			{ProductID: uuid.New(), Quantity: 2, UnitPrice: decimal.RequireFromString("1.25")},
			{ProductID: uuid.New(), Quantity: 1, UnitPrice: decimal.RequireFromString("3")},
		},
		Status:    domain.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.CalculateTotal()

	// ACT
	require.NoError(t, repo.Create(ctx, o))
	got, err := repo.GetByID(ctx, o.ID)

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, o.UserID, got.UserID)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("5.5")), "total: %s", got.Total)
	require.Len(t, got.Items, 2)
	assert.Equal(t, o.Items[0].ProductID, got.Items[0].ProductID)

	require.NoError(t, got.Cancel("prueba", now.Add(time.Second)))
	require.NoError(t, repo.Update(ctx, got))
	got, err = repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, "prueba", got.Reason)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &domain.Order{ID: uuid.New()}), domain.ErrOrderNotFound)
}

func TestReplicaRepo_StaleUpsertDoesNotOverwrite(t *testing.T) {
	// ARRANGE
	db := setupTestDB(t)
	repo := NewReplicaRepo(db)
	ctx := context.Background()
	id := uuid.New()
	t0 := time.Now().UTC()

	// ACT: llega primero el UserUpdated y después, redelivered, el UserRegistered
	require.NoError(t, repo.UpsertUser(ctx, domain.KnownUser{ID: id, Email: "nuevo@example.com", Name: "Ana", UpdatedAt: t0.Add(time.Minute)}))
	require.NoError(t, repo.UpsertUser(ctx, domain.KnownUser{ID: id, Email: "viejo@example.com", Name: "Ana", UpdatedAt: t0}))

	// ASSERT
	got, err := repo.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "nuevo@example.com", got.Email)

	_, err = repo.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUnknownUser)
}

func TestReplicaRepo_ProductAndStock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReplicaRepo(db)
	ctx := context.Background()
	id := uuid.New()
	t0 := time.Now().UTC()

	// Stock de un producto que aún no está en el catálogo: no hace nada
	require.NoError(t, repo.UpdateStock(ctx, id, 3, t0))
	_, err := repo.GetProduct(ctx, id)
	assert.ErrorIs(t, err, domain.ErrUnknownProduct)

	require.NoError(t, repo.UpsertProduct(ctx, domain.CatalogProduct{ID: id, Name: "Taza", Price: decimal.RequireFromString("4.5"), Stock: 10, UpdatedAt: t0}))
	require.NoError(t, repo.UpdateStock(ctx, id, 7, t0.Add(time.Second)))
	require.NoError(t, repo.UpdateStock(ctx, id, 9, t0.Add(-time.Second)))

	got, err := repo.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("4.50")))
}
