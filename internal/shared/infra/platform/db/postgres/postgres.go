package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqldb"
)

// Open abre un pool Postgres mediante el driver pgx de database/sql.
func Open(ctx context.Context, dsn string, maxConns int) (*sqldb.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return sqldb.New(db, sqldb.Postgres), nil
}

// InitSchema crea las tablas de sincronización: outbox, ledger y dead letters.
func InitSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS outbox (
			seq BIGSERIAL PRIMARY KEY,
			event_id TEXT NOT NULL UNIQUE,
			event_type TEXT NOT NULL,
			topic TEXT NOT NULL,
			partition_key TEXT NOT NULL,
			payload BYTEA NOT NULL,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_status_seq ON outbox (status, seq)`,
		`CREATE TABLE IF NOT EXISTS consumed_markers (
			event_id TEXT NOT NULL,
			consumer_name TEXT NOT NULL,
			processed_at BIGINT NOT NULL,
			PRIMARY KEY (event_id, consumer_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_consumed_markers_processed ON consumed_markers (processed_at)`,
		`CREATE TABLE IF NOT EXISTS dead_letters (
			id BIGSERIAL PRIMARY KEY,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			consumer TEXT NOT NULL,
			topic TEXT NOT NULL,
			partition_no INTEGER NOT NULL,
			offset_no BIGINT NOT NULL,
			msg_key TEXT NOT NULL,
			payload BYTEA,
			reason TEXT NOT NULL,
			attempts TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init postgres schema: %w", err)
		}
	}
	return nil
}
