package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
)

// Dialect distingue los motores soportados.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// DriverName es el nombre del driver de database/sql; sqlx lo usa para
// elegir el estilo de placeholders.
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// TimestampType es el tipo de columna para instantes.
func (d Dialect) TimestampType() string {
	if d == Postgres {
		return "TIMESTAMPTZ"
	}
	return "DATETIME"
}

// DecimalType guarda importes sin pérdida: NUMERIC en Postgres, texto en SQLite.
func (d Dialect) DecimalType() string {
	if d == Postgres {
		return "NUMERIC(18,4)"
	}
	return "TEXT"
}

// Executor es lo común entre *sqlx.DB y *sqlx.Tx.
type Executor interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Executor = (*sqlx.DB)(nil)
	_ Executor = (*sqlx.Tx)(nil)
)

type txKey struct{ db *sqlx.DB }

// DB envuelve una conexión sqlx con su dialecto y propaga la transacción
// activa por el contexto.
type DB struct {
	db      *sqlx.DB
	dialect Dialect
}

var _ sharedDomain.Transactor = (*DB)(nil)

func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{db: sqlx.NewDb(db, dialect.DriverName()), dialect: dialect}
}

func (d *DB) SQL() *sql.DB { return d.db.DB }

func (d *DB) Dialect() Dialect { return d.dialect }

// Q adapta los placeholders '?' al motor.
func (d *DB) Q(query string) string { return d.db.Rebind(query) }

// TxFrom devuelve la transacción abierta para esta conexión, si existe.
func (d *DB) TxFrom(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey{d.db}).(*sqlx.Tx)
	return tx, ok
}

// Exec devuelve la transacción del contexto o, si no hay, la conexión.
// Todo acceso de los repositorios pasa por aquí.
func (d *DB) Exec(ctx context.Context) Executor {
	if tx, ok := d.TxFrom(ctx); ok {
		return tx
	}
	return d.db
}

// WithinTransaction ejecuta fn en una transacción. Si el contexto ya trae una,
// fn se une a ella y el commit queda en manos de quien la abrió.
// Los errores de fn se devuelven sin envolver; los de begin/commit como TransactionError.
func (d *DB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := d.TxFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return &sharedDomain.TransactionError{Op: "begin", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{d.db}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return &sharedDomain.TransactionError{Op: "commit", Err: err}
	}
	return nil
}

// RequireTx falla con ErrNoTransaction si no hay transacción abierta.
func (d *DB) RequireTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, ok := d.TxFrom(ctx)
	if !ok {
		return nil, sharedDomain.ErrNoTransaction
	}
	return tx, nil
}

// ApplySchema ejecuta sentencias DDL en orden.
func (d *DB) ApplySchema(ctx context.Context, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
