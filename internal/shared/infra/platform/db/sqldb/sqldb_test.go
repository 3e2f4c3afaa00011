package sqldb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqlite"
)

func setupDB(t *testing.T) *sqldb.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.SQL().Close() })

	require.NoError(t, sqlite.InitSchema(context.Background(), db.SQL()))
	_, err = db.SQL().Exec(`CREATE TABLE things (id TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	return db
}

func record(key string) sharedDomain.OutboxRecord {
	return sharedDomain.OutboxRecord{
		EventID:      uuid.New(),
		EventType:    "UserRegistered",
		Topic:        "user-events",
		PartitionKey: key,
		Payload:      []byte(`{"k":"` + key + `"}`),
	}
}

func insert(t *testing.T, db *sqldb.DB, repo *sqldb.OutboxRepo, recs ...sharedDomain.OutboxRecord) {
	t.Helper()
	err := db.WithinTransaction(context.Background(), func(ctx context.Context) error {
		for _, rec := range recs {
			if err := repo.InsertOutbox(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestDB_QAdaptsPlaceholders(t *testing.T) {
	q := `SELECT a FROM t WHERE b = ? AND c = ?`

	assert.Equal(t, q, setupDB(t).Q(q))
	assert.Equal(t, `SELECT a FROM t WHERE b = $1 AND c = $2`, sqldb.New(nil, sqldb.Postgres).Q(q))
}

func TestOutboxRepo_InsertRequiresTransaction(t *testing.T) {
	db := setupDB(t)
	repo := sqldb.NewOutboxRepo(db)

	err := repo.InsertOutbox(context.Background(), record("a"))

	assert.ErrorIs(t, err, sharedDomain.ErrNoTransaction)
}

func TestWithinTransaction_RollbackLeavesNoOrphanRecord(t *testing.T) {
	// ARRANGE
	db := setupDB(t)
	repo := sqldb.NewOutboxRepo(db)
	rec := record("a")
	boom := errors.New("domain write failed")

	// ACT
	err := db.WithinTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := db.Exec(ctx).ExecContext(ctx, `INSERT INTO things (id) VALUES (?)`, "t1"); err != nil {
			return err
		}
		if err := repo.InsertOutbox(ctx, rec); err != nil {
			return err
		}
		return boom
	})

	// ASSERT
	assert.ErrorIs(t, err, boom)
	_, err = repo.GetOutbox(context.Background(), rec.EventID)
	assert.ErrorIs(t, err, sharedDomain.ErrOutboxRecordNotFound)

	var n int
	require.NoError(t, db.SQL().QueryRow(`SELECT COUNT(*) FROM things`).Scan(&n))
	assert.Zero(t, n)
}

func TestWithinTransaction_NestedJoinsOuter(t *testing.T) {
	db := setupDB(t)
	boom := errors.New("outer failed")

	err := db.WithinTransaction(context.Background(), func(ctx context.Context) error {
		inner := db.WithinTransaction(ctx, func(ctx context.Context) error {
			_, err := db.Exec(ctx).ExecContext(ctx, `INSERT INTO things (id) VALUES (?)`, "t1")
			return err
		})
		require.NoError(t, inner)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	var n int
	require.NoError(t, db.SQL().QueryRow(`SELECT COUNT(*) FROM things`).Scan(&n))
	assert.Zero(t, n, "inner work must roll back with the outer transaction")
}

func TestOutboxRepo_FetchPendingOrderedByKeyThenInsertion(t *testing.T) {
	// ARRANGE: inserciones intercaladas de dos claves.
	db := setupDB(t)
	repo := sqldb.NewOutboxRepo(db)
	b1, a1, b2, a2 := record("b"), record("a"), record("b"), record("a")
	insert(t, db, repo, b1, a1, b2, a2)

	// ACT
	recs, err := repo.FetchPendingOutbox(context.Background(), 10)

	// ASSERT
	require.NoError(t, err)
	require.Len(t, recs, 4)
	got := []uuid.UUID{recs[0].EventID, recs[1].EventID, recs[2].EventID, recs[3].EventID}
	assert.Equal(t, []uuid.UUID{a1.EventID, a2.EventID, b1.EventID, b2.EventID}, got)
	assert.Equal(t, sharedDomain.OutboxPending, recs[0].Status)
	assert.Equal(t, a1.Payload, recs[0].Payload)
}

func TestOutboxRepo_FetchPendingTakesOldestFirst(t *testing.T) {
	db := setupDB(t)
	repo := sqldb.NewOutboxRepo(db)
	old, mid, last := record("z"), record("a"), record("a")
	insert(t, db, repo, old, mid, last)

	recs, err := repo.FetchPendingOutbox(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, mid.EventID, recs[0].EventID)
	assert.Equal(t, old.EventID, recs[1].EventID)
}

func TestOutboxRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := sqldb.NewOutboxRepo(db)
	ok, bad := record("a"), record("b")
	insert(t, db, repo, ok, bad)

	require.NoError(t, repo.MarkOutboxPublished(ctx, ok.EventID))
	require.NoError(t, repo.RecordOutboxAttempt(ctx, bad.EventID, 1, "timeout"))
	require.NoError(t, repo.MarkOutboxFailed(ctx, bad.EventID, 3, "timeout"))

	pending, err := repo.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	failed, err := repo.ListFailedOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, bad.EventID, failed[0].EventID)
	assert.Equal(t, 3, failed[0].Attempts)
	assert.Equal(t, "timeout", failed[0].LastError)

	require.NoError(t, repo.RequeueFailedOutbox(ctx, bad.EventID))
	pending, err = repo.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Zero(t, pending[0].Attempts)

	assert.ErrorIs(t, repo.RequeueFailedOutbox(ctx, ok.EventID), sharedDomain.ErrOutboxRecordNotFound)
	assert.ErrorIs(t, repo.MarkOutboxPublished(ctx, uuid.New()), sharedDomain.ErrOutboxRecordNotFound)
}

func TestOutboxRepo_FailedRecordParksItsKey(t *testing.T) {
	// ARRANGE: a1 falla; a2 no puede adelantarlo, b1 sigue su curso.
	ctx := context.Background()
	db := setupDB(t)
	repo := sqldb.NewOutboxRepo(db)
	a1, a2, b1 := record("a"), record("a"), record("b")
	insert(t, db, repo, a1, a2, b1)
	require.NoError(t, repo.MarkOutboxFailed(ctx, a1.EventID, 1, "message too large"))

	// ACT
	parked, err := repo.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, repo.RequeueFailedOutbox(ctx, a1.EventID))
	resumed, err := repo.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)

	// ASSERT
	require.Len(t, parked, 1)
	assert.Equal(t, b1.EventID, parked[0].EventID)
	require.Len(t, resumed, 3)
	assert.Equal(t, []uuid.UUID{a1.EventID, a2.EventID, b1.EventID},
		[]uuid.UUID{resumed[0].EventID, resumed[1].EventID, resumed[2].EventID})
}

func TestLedgerRepo_MarkAndCheck(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	ledger := sqldb.NewLedgerRepo(db)
	eventID := uuid.New()

	applied, err := ledger.AlreadyApplied(ctx, eventID, "users-self")
	require.NoError(t, err)
	assert.False(t, applied)

	require.NoError(t, ledger.MarkApplied(ctx, eventID, "users-self"))
	assert.ErrorIs(t, ledger.MarkApplied(ctx, eventID, "users-self"), sharedDomain.ErrAlreadyApplied)

	applied, err = ledger.AlreadyApplied(ctx, eventID, "users-self")
	require.NoError(t, err)
	assert.True(t, applied)

	// El mismo evento es independiente para otro consumidor.
	applied, err = ledger.AlreadyApplied(ctx, eventID, "orders-replica")
	require.NoError(t, err)
	assert.False(t, applied)

	markers, err := ledger.Markers(ctx, "users-self", 10)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, eventID, markers[0].EventID)
}

func TestLedgerRepo_MarkRolledBackWithHandler(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	ledger := sqldb.NewLedgerRepo(db)
	eventID := uuid.New()

	err := ledger.WithinTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, ledger.MarkApplied(ctx, eventID, "c"))
		return errors.New("handler failed after marking")
	})
	require.Error(t, err)

	applied, err := ledger.AlreadyApplied(ctx, eventID, "c")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestLedgerRepo_Compact(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	ledger := sqldb.NewLedgerRepo(db)
	require.NoError(t, ledger.MarkApplied(ctx, uuid.New(), "c"))

	n, err := ledger.Compact(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = ledger.Compact(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDeadLetterRepo_SaveAndList(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := sqldb.NewDeadLetterRepo(db)

	dl := sharedDomain.DeadLetter{
		EventID:   uuid.NewString(),
		EventType: "OrderCreated",
		Consumer:  "products-orders",
		Topic:     "order-events",
		Partition: 2,
		Offset:    41,
		Key:       "order-1",
		Payload:   []byte(`{}`),
		Reason:    "insufficient stock",
		Attempts:  []sharedDomain.Attempt{{Number: 1, Error: "insufficient stock", At: time.Now().UTC()}},
	}
	require.NoError(t, repo.SaveDeadLetter(ctx, dl))

	list, err := repo.ListDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, dl.EventID, list[0].EventID)
	assert.Equal(t, int64(41), list[0].Offset)
	assert.Equal(t, "insufficient stock", list[0].Reason)
	require.Len(t, list[0].Attempts, 1)
	assert.Equal(t, 1, list[0].Attempts[0].Number)
}
