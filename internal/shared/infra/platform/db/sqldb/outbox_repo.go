package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	"github.com/google/uuid"
)

// OutboxRepo implementa sharedDomain.OutboxRepository sobre database/sql.
type OutboxRepo struct {
	db *DB
}

func NewOutboxRepo(db *DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

const outboxColumns = `event_id, event_type, topic, partition_key, payload, status, attempts, last_error, created_at, updated_at`

type outboxRow struct {
	EventID      uuid.UUID `db:"event_id"`
	EventType    string    `db:"event_type"`
	Topic        string    `db:"topic"`
	PartitionKey string    `db:"partition_key"`
	Payload      []byte    `db:"payload"`
	Status       string    `db:"status"`
	Attempts     int       `db:"attempts"`
	LastError    string    `db:"last_error"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (row outboxRow) record() sharedDomain.OutboxRecord {
	return sharedDomain.OutboxRecord{
		EventID:      row.EventID,
		EventType:    row.EventType,
		Topic:        row.Topic,
		PartitionKey: row.PartitionKey,
		Payload:      row.Payload,
		Status:       sharedDomain.OutboxStatus(row.Status),
		Attempts:     row.Attempts,
		LastError:    row.LastError,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func records(rows []outboxRow) []sharedDomain.OutboxRecord {
	out := make([]sharedDomain.OutboxRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out
}

// InsertOutbox exige una transacción abierta: el registro sólo existe si la mutación de dominio también.
func (r *OutboxRepo) InsertOutbox(ctx context.Context, rec sharedDomain.OutboxRecord) error {
	tx, err := r.db.RequireTx(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	_, err = tx.ExecContext(ctx, r.db.Q(
		`INSERT INTO outbox (`+outboxColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`),
		rec.EventID.String(), rec.EventType, rec.Topic, rec.PartitionKey, rec.Payload,
		string(sharedDomain.OutboxPending), 0, "", rec.CreatedAt.UTC(), now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox record: %w", err)
	}
	return nil
}

// FetchPendingOutbox toma los limit registros pendientes más antiguos y los
// devuelve agrupados por partition_key en orden de inserción. Una clave con
// algún registro Failed queda aparcada: sus pendientes no salen hasta que
// ese registro se reencole.
func (r *OutboxRepo) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxRecord, error) {
	var rows []outboxRow
	err := r.db.Exec(ctx).SelectContext(ctx, &rows, r.db.Q(
		`SELECT `+outboxColumns+` FROM (
			SELECT seq, `+outboxColumns+` FROM outbox
			WHERE status = ?
			  AND partition_key NOT IN (SELECT partition_key FROM outbox WHERE status = ?)
			ORDER BY seq
			LIMIT ?
		) AS batch
		ORDER BY partition_key, seq`),
		string(sharedDomain.OutboxPending), string(sharedDomain.OutboxFailed), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending outbox: %w", err)
	}
	return records(rows), nil
}

func (r *OutboxRepo) MarkOutboxPublished(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, id,
		`UPDATE outbox SET status = ?, updated_at = ? WHERE event_id = ?`,
		string(sharedDomain.OutboxPublished), time.Now().UTC(), id.String(),
	)
}

// RecordOutboxAttempt persiste el contador de intentos sin cambiar el estado.
func (r *OutboxRepo) RecordOutboxAttempt(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error {
	return r.update(ctx, id,
		`UPDATE outbox SET attempts = ?, last_error = ?, updated_at = ? WHERE event_id = ? AND status = ?`,
		attempts, lastErr, time.Now().UTC(), id.String(), string(sharedDomain.OutboxPending),
	)
}

func (r *OutboxRepo) MarkOutboxFailed(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error {
	return r.update(ctx, id,
		`UPDATE outbox SET status = ?, attempts = ?, last_error = ?, updated_at = ? WHERE event_id = ?`,
		string(sharedDomain.OutboxFailed), attempts, lastErr, time.Now().UTC(), id.String(),
	)
}

func (r *OutboxRepo) ListFailedOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxRecord, error) {
	var rows []outboxRow
	err := r.db.Exec(ctx).SelectContext(ctx, &rows, r.db.Q(
		`SELECT `+outboxColumns+` FROM outbox WHERE status = ? ORDER BY seq LIMIT ?`),
		string(sharedDomain.OutboxFailed), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed outbox: %w", err)
	}
	return records(rows), nil
}

// RequeueFailedOutbox devuelve un registro Failed a Pending con los intentos a cero.
func (r *OutboxRepo) RequeueFailedOutbox(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, id,
		`UPDATE outbox SET status = ?, attempts = 0, last_error = '', updated_at = ? WHERE event_id = ? AND status = ?`,
		string(sharedDomain.OutboxPending), time.Now().UTC(), id.String(), string(sharedDomain.OutboxFailed),
	)
}

// GetOutbox busca un registro por event id.
func (r *OutboxRepo) GetOutbox(ctx context.Context, id uuid.UUID) (sharedDomain.OutboxRecord, error) {
	var row outboxRow
	err := r.db.Exec(ctx).GetContext(ctx, &row, r.db.Q(
		`SELECT `+outboxColumns+` FROM outbox WHERE event_id = ?`), id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return sharedDomain.OutboxRecord{}, sharedDomain.ErrOutboxRecordNotFound
	}
	if err != nil {
		return sharedDomain.OutboxRecord{}, err
	}
	return row.record(), nil
}

func (r *OutboxRepo) update(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	res, err := r.db.Exec(ctx).ExecContext(ctx, r.db.Q(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update outbox record %s: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected for outbox record %s: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", sharedDomain.ErrOutboxRecordNotFound, id)
	}
	return nil
}

var _ sharedDomain.OutboxRepository = (*OutboxRepo)(nil)
