package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqlite"
)

type fixture struct {
	db     *sqldb.DB
	repo   *sqldb.OutboxRepo
	writer *Writer
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.SQL().Close() })
	require.NoError(t, sqlite.InitSchema(context.Background(), db.SQL()))
	_, err = db.SQL().Exec(`CREATE TABLE users (id TEXT PRIMARY KEY, email TEXT NOT NULL)`)
	require.NoError(t, err)

	topology := sharedBus.Topology{Producers: map[string]string{
		sharedEvents.ContextUsers:    "user-events",
		sharedEvents.ContextProducts: "product-events",
		sharedEvents.ContextOrders:   "order-events",
	}}
	repo := sqldb.NewOutboxRepo(db)
	codec := sharedEvents.NewCodec(sharedEvents.DefaultRegistry())
	return fixture{db: db, repo: repo, writer: NewWriter(db, repo, codec, topology, zap.NewNop())}
}

func userEvent() (uuid.UUID, sharedEvents.DomainEvent) {
	id := uuid.New()
	return id, sharedEvents.New(id.String(), sharedEvents.UserRegistered{UserID: id, Email: "ada@example.com", Name: "Ada"})
}

func (f fixture) insertUser(id uuid.UUID) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := f.db.Exec(ctx).ExecContext(ctx, `INSERT INTO users (id, email) VALUES (?, ?)`, id.String(), "ada@example.com")
		return err
	}
}

func (f fixture) countUsers(t *testing.T) int {
	var n int
	require.NoError(t, f.db.SQL().QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	return n
}

func TestWriter_Append_CommitsMutationAndRecord(t *testing.T) {
	// ARRANGE
	f := setup(t)
	id, evt := userEvent()

	// ACT
	err := f.writer.Append(context.Background(), f.insertUser(id), evt)

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, 1, f.countUsers(t))

	rec, err := f.repo.GetOutbox(context.Background(), evt.EventID)
	require.NoError(t, err)
	assert.Equal(t, "user-events", rec.Topic)
	assert.Equal(t, id.String(), rec.PartitionKey)
	assert.Equal(t, sharedDomain.OutboxPending, rec.Status)
	assert.Equal(t, string(sharedEvents.TypeUserRegistered), rec.EventType)
}

func TestWriter_Append_MutationFailureLeavesNoRecord(t *testing.T) {
	f := setup(t)
	_, evt := userEvent()
	boom := errors.New("constraint violated")

	err := f.writer.Append(context.Background(), func(ctx context.Context) error { return boom }, evt)

	assert.ErrorIs(t, err, boom)
	_, err = f.repo.GetOutbox(context.Background(), evt.EventID)
	assert.ErrorIs(t, err, sharedDomain.ErrOutboxRecordNotFound)
}

func TestWriter_Append_OutboxFailureRollsBackMutation(t *testing.T) {
	// ARRANGE: un evento repetido viola la unicidad de event_id.
	f := setup(t)
	id, evt := userEvent()
	require.NoError(t, f.writer.Append(context.Background(), f.insertUser(id), evt))

	// ACT
	otherID := uuid.New()
	err := f.writer.Append(context.Background(), f.insertUser(otherID), evt)

	// ASSERT
	var txErr *sharedDomain.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, 1, f.countUsers(t))
}

func TestWriter_Append_EncodingErrorTouchesNothing(t *testing.T) {
	f := setup(t)
	id, evt := userEvent()
	evt.AggregateID = ""
	called := false

	err := f.writer.Append(context.Background(), func(ctx context.Context) error {
		called = true
		return f.insertUser(id)(ctx)
	}, evt)

	var encErr *sharedEvents.EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.False(t, called)
	assert.Zero(t, f.countUsers(t))
}

func TestWriter_Stage_RequiresOpenTransaction(t *testing.T) {
	f := setup(t)
	_, evt := userEvent()

	err := f.writer.Stage(context.Background(), evt)

	var txErr *sharedDomain.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.ErrorIs(t, err, sharedDomain.ErrNoTransaction)
}

func TestWriter_Stage_JoinsCallerTransaction(t *testing.T) {
	f := setup(t)
	_, evt := userEvent()
	boom := errors.New("handler failed")

	err := f.db.WithinTransaction(context.Background(), func(ctx context.Context) error {
		require.NoError(t, f.writer.Stage(ctx, evt))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	_, err = f.repo.GetOutbox(context.Background(), evt.EventID)
	assert.ErrorIs(t, err, sharedDomain.ErrOutboxRecordNotFound)
}

type countingNotifier struct{ n int }

func (c *countingNotifier) Notify() { c.n++ }

func TestWriter_Append_NotifiesOnlyAfterCommit(t *testing.T) {
	f := setup(t)
	notifier := &countingNotifier{}
	f.writer.WithNotifier(notifier)

	id, evt := userEvent()
	require.NoError(t, f.writer.Append(context.Background(), f.insertUser(id), evt))
	_, evt2 := userEvent()
	require.Error(t, f.writer.Append(context.Background(), func(ctx context.Context) error { return errors.New("boom") }, evt2))

	assert.Equal(t, 1, notifier.n)
}
