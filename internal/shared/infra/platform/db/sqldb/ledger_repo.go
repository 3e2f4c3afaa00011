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

// LedgerRepo guarda los marcadores de consumo en la misma base que el estado
// del servicio, de modo que handler y marcador comparten transacción.
// processed_at se guarda en milisegundos Unix para poder compactar por rango en ambos motores.
type LedgerRepo struct {
	db *DB
}

func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

func (r *LedgerRepo) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithinTransaction(ctx, fn)
}

func (r *LedgerRepo) AlreadyApplied(ctx context.Context, eventID uuid.UUID, consumer string) (bool, error) {
	var one int
	err := r.db.Exec(ctx).GetContext(ctx, &one, r.db.Q(
		`SELECT 1 FROM consumed_markers WHERE event_id = ? AND consumer_name = ?`),
		eventID.String(), consumer,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query ledger: %w", err)
	}
	return true, nil
}

// MarkApplied devuelve ErrAlreadyApplied si el marcador ya existía.
func (r *LedgerRepo) MarkApplied(ctx context.Context, eventID uuid.UUID, consumer string) error {
	res, err := r.db.Exec(ctx).ExecContext(ctx, r.db.Q(
		`INSERT INTO consumed_markers (event_id, consumer_name, processed_at) VALUES (?, ?, ?)
		 ON CONFLICT (event_id, consumer_name) DO NOTHING`),
		eventID.String(), consumer, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert consumed marker: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected for consumed marker: %w", err)
	}
	if rows == 0 {
		return sharedDomain.ErrAlreadyApplied
	}
	return nil
}

// Compact borra marcadores anteriores a olderThan. La ventana debe ser mayor
// que la de redelivery del broker.
func (r *LedgerRepo) Compact(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.Exec(ctx).ExecContext(ctx, r.db.Q(
		`DELETE FROM consumed_markers WHERE processed_at < ?`), olderThan.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to compact ledger: %w", err)
	}
	return res.RowsAffected()
}

type markerRow struct {
	EventID      uuid.UUID `db:"event_id"`
	ConsumerName string    `db:"consumer_name"`
	ProcessedAt  int64     `db:"processed_at"`
}

// Markers lista los marcadores de un consumidor, más recientes primero.
func (r *LedgerRepo) Markers(ctx context.Context, consumer string, limit int) ([]sharedDomain.ConsumedMarker, error) {
	var rows []markerRow
	err := r.db.Exec(ctx).SelectContext(ctx, &rows, r.db.Q(
		`SELECT event_id, consumer_name, processed_at FROM consumed_markers
		 WHERE consumer_name = ? ORDER BY processed_at DESC LIMIT ?`), consumer, limit)
	if err != nil {
		return nil, err
	}

	out := make([]sharedDomain.ConsumedMarker, 0, len(rows))
	for _, row := range rows {
		out = append(out, sharedDomain.ConsumedMarker{
			EventID:      row.EventID,
			ConsumerName: row.ConsumerName,
			ProcessedAt:  time.UnixMilli(row.ProcessedAt).UTC(),
		})
	}
	return out, nil
}

var (
	_ sharedDomain.Ledger          = (*LedgerRepo)(nil)
	_ sharedDomain.LedgerCompactor = (*LedgerRepo)(nil)
)
