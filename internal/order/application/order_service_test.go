package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/hexasync/internal/order/domain"
	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
	"github.com/davicafu/hexasync/tests/mocks"
)

type fixture struct {
	svc      *OrderService
	orders   *mocks.InMemoryOrderRepo
	replicas *mocks.InMemoryReplicaRepo
	outbox   *mocks.RecordingOutbox
	userID   uuid.UUID
	product  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:   mocks.NewInMemoryOrderRepo(),
		replicas: mocks.NewInMemoryReplicaRepo(),
		outbox:   &mocks.RecordingOutbox{},
		userID:   uuid.New(),
		product:  uuid.New(),
	}
	f.svc = NewOrderService(f.orders, f.replicas, f.outbox, zap.NewNop())

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, f.replicas.UpsertUser(ctx, domain.KnownUser{ID: f.userID, Email: "ana@example.com", Name: "Ana", UpdatedAt: now}))
	require.NoError(t, f.replicas.UpsertProduct(ctx, domain.CatalogProduct{ID: f.product, Name: "Taza", Price: decimal.RequireFromString("4.50"), Stock: 10, UpdatedAt: now}))
	return f
}

func TestOrderService_CreateOrder_PricesFromReplica(t *testing.T) {
	// ARRANGE
	f := newFixture(t)

	// ACT
	order, err := f.svc.CreateOrder(context.Background(), f.userID, []LineRequest{{ProductID: f.product, Quantity: 3}})

	// ASSERT
	require.NoError(t, err)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("13.50")), "total: %s", order.Total)
	assert.Equal(t, domain.StatusCreated, order.Status)
	require.Len(t, f.outbox.Events, 1)

	evt := f.outbox.Events[0]
	assert.Equal(t, order.ID.String(), evt.AggregateID)
	created, ok := sharedEvents.As[sharedEvents.OrderCreated](evt)
	require.True(t, ok)
	require.Len(t, created.Items, 1)
	assert.True(t, created.Items[0].UnitPrice.Equal(decimal.RequireFromString("4.5")))

	_, err = f.orders.GetByID(context.Background(), order.ID)
	assert.NoError(t, err)
}

func TestOrderService_CreateOrder_Rejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		userID uuid.UUID
		lines  []LineRequest
		want   error
	}{
		{"usuario desconocido", uuid.New(), []LineRequest{{ProductID: f.product, Quantity: 1}}, domain.ErrUnknownUser},
		{"producto desconocido", f.userID, []LineRequest{{ProductID: uuid.New(), Quantity: 1}}, domain.ErrUnknownProduct},
		{"sin lineas", f.userID, nil, domain.ErrInvalidOrder},
		{"cantidad cero", f.userID, []LineRequest{{ProductID: f.product, Quantity: 0}}, domain.ErrInvalidOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(context.Background(), tt.userID, tt.lines)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.outbox.Events)
	assert.Empty(t, f.orders.Orders)
}

func TestOrderService_CancelOrder(t *testing.T) {
	// ARRANGE
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, f.userID, []LineRequest{{ProductID: f.product, Quantity: 1}})
	require.NoError(t, err)

	// ACT
	cancelled, err := f.svc.CancelOrder(ctx, order.ID, "sin pago")

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, []sharedEvents.EventType{sharedEvents.TypeOrderCreated, sharedEvents.TypeOrderCancelled}, f.outbox.Types())

	stored, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "sin pago", stored.Reason)

	// Segunda cancelación: error de dominio y ningún evento nuevo
	_, err = f.svc.CancelOrder(ctx, order.ID, "otra vez")
	assert.ErrorIs(t, err, domain.ErrOrderAlreadyCancelled)
	assert.Len(t, f.outbox.Events, 2)

	_, err = f.svc.CancelOrder(ctx, uuid.New(), "x")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderService_CreateOrder_OutboxFailure(t *testing.T) {
	f := newFixture(t)
	f.outbox.FailWith = errors.New("tx begin failed")

	_, err := f.svc.CreateOrder(context.Background(), f.userID, []LineRequest{{ProductID: f.product, Quantity: 1}})

	assert.Error(t, err)
	assert.Empty(t, f.orders.Orders)
}
