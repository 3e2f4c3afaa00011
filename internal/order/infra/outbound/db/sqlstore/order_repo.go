package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davicafu/hexasync/internal/order/domain"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqldb"
)

// OrderRepo guarda pedidos y sus líneas.
type OrderRepo struct {
	db *sqldb.DB
}

func NewOrderRepo(db *sqldb.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// Create inserta cabecera y líneas; sin transacción abierta se crea una.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	return r.db.WithinTransaction(ctx, func(ctx context.Context) error {
		exec := r.db.Exec(ctx)
		if _, err := exec.ExecContext(ctx,
			r.db.Q(`INSERT INTO orders (id, user_id, total, status, reason, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
			o.ID.String(), o.UserID.String(), o.Total, string(o.Status), o.Reason, o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
		); err != nil {
			return err
		}
		for i, it := range o.Items {
			if _, err := exec.ExecContext(ctx,
				r.db.Q(`INSERT INTO order_items (order_id, line_no, product_id, quantity, unit_price) VALUES (?, ?, ?, ?, ?)`),
				o.ID.String(), i, it.ProductID.String(), it.Quantity, it.UnitPrice,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

type orderRow struct {
	ID        uuid.UUID       `db:"id"`
	UserID    uuid.UUID       `db:"user_id"`
	Total     decimal.Decimal `db:"total"`
	Status    string          `db:"status"`
	Reason    string          `db:"reason"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

type itemRow struct {
	ProductID uuid.UUID       `db:"product_id"`
	Quantity  int             `db:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price"`
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	exec := r.db.Exec(ctx)
	var row orderRow
	err := exec.GetContext(ctx, &row,
		r.db.Q(`SELECT id, user_id, total, status, reason, created_at, updated_at FROM orders WHERE id = ?`), id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	var items []itemRow
	if err := exec.SelectContext(ctx, &items,
		r.db.Q(`SELECT product_id, quantity, unit_price FROM order_items WHERE order_id = ? ORDER BY line_no`), id.String()); err != nil {
		return nil, err
	}

	o := &domain.Order{
		ID:        row.ID,
		UserID:    row.UserID,
		Total:     row.Total,
		Status:    domain.OrderStatus(row.Status),
		Reason:    row.Reason,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	for _, it := range items {
		o.Items = append(o.Items, domain.OrderItem(it))
	}
	return o, nil
}

// Update sólo cambia estado, motivo y fecha: las líneas son inmutables.
func (r *OrderRepo) Update(ctx context.Context, o *domain.Order) error {
	res, err := r.db.Exec(ctx).ExecContext(ctx,
		r.db.Q(`UPDATE orders SET status = ?, reason = ?, updated_at = ? WHERE id = ?`),
		string(o.Status), o.Reason, o.UpdatedAt.UTC(), o.ID.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// InitSchema crea pedidos y réplicas. Las réplicas guardan la fecha del hecho
// en milisegundos para comparar igual en ambos motores.
func InitSchema(ctx context.Context, db *sqldb.DB) error {
	ts, dec := db.Dialect().TimestampType(), db.Dialect().DecimalType()
	return db.ApplySchema(ctx,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			total %[2]s NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at %[1]s NOT NULL,
			updated_at %[1]s NOT NULL
		)`, ts, dec),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS order_items (
			order_id TEXT NOT NULL REFERENCES orders (id),
			line_no INTEGER NOT NULL,
			product_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price %s NOT NULL,
			PRIMARY KEY (order_id, line_no)
		)`, dec),
		`CREATE TABLE IF NOT EXISTS known_users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			name TEXT NOT NULL,
			updated_ms BIGINT NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS product_catalog (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price %s NOT NULL,
			stock INTEGER NOT NULL,
			updated_ms BIGINT NOT NULL
		)`, dec),
	)
}

var _ domain.OrderRepository = (*OrderRepo)(nil)
