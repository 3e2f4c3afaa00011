package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"

	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqldb"
)

// Open abre una base SQLite. Se limita a una conexión: SQLite serializa las
// escrituras y ":memory:" crea una base distinta por conexión.
func Open(dsn string) (*sqldb.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqldb.New(db, sqldb.SQLite), nil
}

// InitSchema crea las tablas de sincronización: outbox, ledger y dead letters.
func InitSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS outbox (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL UNIQUE,
			event_type TEXT NOT NULL,
			topic TEXT NOT NULL,
			partition_key TEXT NOT NULL,
			payload BLOB NOT NULL,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_status_seq ON outbox (status, seq)`,
		`CREATE TABLE IF NOT EXISTS consumed_markers (
			event_id TEXT NOT NULL,
			consumer_name TEXT NOT NULL,
			processed_at INTEGER NOT NULL,
			PRIMARY KEY (event_id, consumer_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_consumed_markers_processed ON consumed_markers (processed_at)`,
		`CREATE TABLE IF NOT EXISTS dead_letters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			consumer TEXT NOT NULL,
			topic TEXT NOT NULL,
			partition_no INTEGER NOT NULL,
			offset_no INTEGER NOT NULL,
			msg_key TEXT NOT NULL,
			payload BLOB,
			reason TEXT NOT NULL,
			attempts TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return nil
}
