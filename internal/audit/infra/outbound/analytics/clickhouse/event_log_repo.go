package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	auditDomain "github.com/davicafu/hexasync/internal/audit/domain"
)

// EventLogRepo implementa EventLogRepository sobre ClickHouse.
type EventLogRepo struct {
	db *sql.DB
}

// NewEventLogRepo abre la conexión y comprueba que responde.
func NewEventLogRepo(addr, dbName, user, password string) (*EventLogRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
			Username: user,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}
	return &EventLogRepo{db: conn}, nil
}

func (r *EventLogRepo) Close() error { return r.db.Close() }

// Append inserta las entradas en un solo bloque. ClickHouse funciona mejor con lotes.
func (r *EventLogRepo) Append(ctx context.Context, entries ...auditDomain.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO domain_event_log (event_id, event_type, context, aggregate_id, version, occurred_at, payload, recorded_at)")
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		recordedAt := e.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			e.EventID,
			e.EventType,
			e.Context,
			e.AggregateID,
			uint16(e.Version),
			e.OccurredAt.UTC(),
			e.Payload,
			recordedAt,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to exec statement for event %s: %w", e.EventID, err)
		}
	}
	return tx.Commit()
}

// DailyCounts usa FINAL para no contar duplicados aún sin fusionar.
func (r *EventLogRepo) DailyCounts(ctx context.Context, start, end time.Time) ([]auditDomain.DailyCount, error) {
	query := `
		SELECT
			toStartOfDay(occurred_at) AS day,
			event_type,
			count() AS total
		FROM domain_event_log FINAL
		WHERE occurred_at BETWEEN ? AND ?
		GROUP BY day, event_type
		ORDER BY day, event_type
	`
	rows, err := r.db.QueryContext(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auditDomain.DailyCount
	for rows.Next() {
		var c auditDomain.DailyCount
		if err := rows.Scan(&c.Day, &c.EventType, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InitSchema crea la tabla si no existe. ReplacingMergeTree ordenado por
// event_id colapsa las redeliveries.
func (r *EventLogRepo) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS domain_event_log (
			event_id     UUID,
			event_type   LowCardinality(String),
			context      LowCardinality(String),
			aggregate_id String,
			version      UInt16,
			occurred_at  DateTime64(3, 'UTC'),
			payload      String,
			recorded_at  DateTime64(3, 'UTC')
		) ENGINE = ReplacingMergeTree(recorded_at)
		PARTITION BY toYYYYMM(occurred_at)
		ORDER BY (event_type, event_id);
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

var _ auditDomain.EventLogRepository = (*EventLogRepo)(nil)
