package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
	"github.com/davicafu/hexasync/internal/shared/infra/outbox"
	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqlite"
	"github.com/davicafu/hexasync/internal/user/domain"
)

func setupTestDB(t *testing.T) *sqldb.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.SQL().Close() })
	require.NoError(t, sqlite.InitSchema(context.Background(), db.SQL()))
	require.NoError(t, InitSchema(context.Background(), db))
	return db
}

func newUser(email, nombre string) *domain.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.User{ID: uuid.New(), Email: email, Nombre: nombre, CreatedAt: now, UpdatedAt: now}
}

func TestUserRepo_CreateGetUpdate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	// Crear usuario
	user := newUser("integration@example.com", "Integrado")
	require.NoError(t, repo.Create(ctx, user))

	// Obtener usuario
	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)
	assert.True(t, user.CreatedAt.Equal(got.CreatedAt))

	// Actualizar usuario
	user.Nombre = "Actualizado"
	require.NoError(t, repo.Update(ctx, user))
	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Actualizado", got.Nombre)

	// Errores de dominio
	assert.ErrorIs(t, repo.Create(ctx, newUser("integration@example.com", "Otro")), domain.ErrUserAlreadyExists)
	assert.ErrorIs(t, repo.Update(ctx, newUser("x@example.com", "X")), domain.ErrUserNotFound)
	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepo_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()
	for _, n := range []string{"Ana", "Juana", "Bob"} {
		require.NoError(t, repo.Create(ctx, newUser(n+"@example.com", n)))
	}

	name := "ana"
	users, err := repo.List(ctx, domain.UserFilter{Nombre: &name, Sort: domain.Sort{Field: "nombre"}})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Ana", users[0].Nombre)
	assert.Equal(t, "Juana", users[1].Nombre)

	users, err = repo.List(ctx, domain.UserFilter{Pagination: domain.Pagination{Limit: 1, Offset: 1}, Sort: domain.Sort{Field: "nombre; DROP TABLE users"}})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserRepo_DuplicateRegistrationLeavesNoOutboxRecord(t *testing.T) {
	// ARRANGE
	db := setupTestDB(t)
	repo := NewUserRepo(db)
	outboxRepo := sqldb.NewOutboxRepo(db)
	topology := sharedBus.Topology{Producers: map[string]string{
		sharedEvents.ContextUsers:    "user-events",
		sharedEvents.ContextProducts: "product-events",
		sharedEvents.ContextOrders:   "order-events",
	}}
	writer := outbox.NewWriter(db, outboxRepo, sharedEvents.NewCodec(sharedEvents.DefaultRegistry()), topology, zap.NewNop())

	register := func(u *domain.User) (sharedEvents.DomainEvent, error) {
		evt := sharedEvents.New(u.ID.String(), sharedEvents.UserRegistered{UserID: u.ID, Email: u.Email, Name: u.Nombre})
		return evt, writer.Append(context.Background(), func(ctx context.Context) error { return repo.Create(ctx, u) }, evt)
	}

	first, err := register(newUser("ana@example.com", "Ana"))
	require.NoError(t, err)

	// ACT
	second, err := register(newUser("ana@example.com", "Ana bis"))

	// ASSERT
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	_, err = outboxRepo.GetOutbox(context.Background(), first.EventID)
	assert.NoError(t, err)
	_, err = outboxRepo.GetOutbox(context.Background(), second.EventID)
	assert.Error(t, err)
}

func TestActivityRepo_RecordIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRepo(db)
	ctx := context.Background()
	userID := uuid.New()
	a := domain.Activity{EventID: uuid.New(), UserID: userID, EventType: "UserRegistered", Email: "a@example.com", OccurredAt: time.Now()}

	require.NoError(t, repo.Record(ctx, a))
	require.NoError(t, repo.Record(ctx, a))
	require.NoError(t, repo.Record(ctx, domain.Activity{EventID: uuid.New(), UserID: userID, EventType: "UserUpdated", Email: "b@example.com", OccurredAt: time.Now().Add(time.Second)}))

	list, err := repo.ListByUser(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "UserRegistered", list[0].EventType)
	assert.Equal(t, "UserUpdated", list[1].EventType)
}
