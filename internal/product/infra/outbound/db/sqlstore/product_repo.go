package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davicafu/hexasync/internal/product/domain"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqldb"
)

// ProductRepo guarda productos y reservas de stock.
type ProductRepo struct {
	db *sqldb.DB
}

func NewProductRepo(db *sqldb.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	_, err := r.db.Exec(ctx).ExecContext(ctx,
		r.db.Q(`INSERT INTO products (id, name, price, stock, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
		p.ID.String(), p.Name, p.Price, p.Stock, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	return err
}

func (r *ProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	err := r.db.Exec(ctx).GetContext(ctx, (*productRow)(&p),
		r.db.Q(`SELECT id, name, price, stock, created_at, updated_at FROM products WHERE id = ?`), id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepo) List(ctx context.Context, limit, offset int) ([]*domain.Product, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []productRow
	err := r.db.Exec(ctx).SelectContext(ctx, &rows,
		r.db.Q(`SELECT id, name, price, stock, created_at, updated_at FROM products ORDER BY created_at, id LIMIT ? OFFSET ?`),
		limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Product, 0, len(rows))
	for i := range rows {
		out = append(out, (*domain.Product)(&rows[i]))
	}
	return out, nil
}

// Reserve hace el descuento condicional en una sola sentencia, así dos
// reservas concurrentes no dejan el stock en negativo.
func (r *ProductRepo) Reserve(ctx context.Context, res domain.Reservation) (int, error) {
	exec := r.db.Exec(ctx)
	now := time.Now().UTC()

	out, err := exec.ExecContext(ctx,
		r.db.Q(`UPDATE products SET stock = stock - ?, updated_at = ? WHERE id = ? AND stock >= ?`),
		res.Quantity, now, res.ProductID.String(), res.Quantity)
	if err != nil {
		return 0, err
	}
	n, err := out.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, res.ProductID); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("%w: product %s, requested %d", domain.ErrInsufficientStock, res.ProductID, res.Quantity)
	}

	if _, err := exec.ExecContext(ctx,
		r.db.Q(`INSERT INTO stock_reservations (order_id, product_id, quantity, created_at) VALUES (?, ?, ?, ?)`),
		res.OrderID.String(), res.ProductID.String(), res.Quantity, now); err != nil {
		return 0, err
	}

	var remaining int
	if err := exec.GetContext(ctx, &remaining, r.db.Q(`SELECT stock FROM products WHERE id = ?`), res.ProductID.String()); err != nil {
		return 0, err
	}
	return remaining, nil
}

func (r *ProductRepo) Release(ctx context.Context, orderID uuid.UUID) ([]domain.Reservation, error) {
	exec := r.db.Exec(ctx)
	var rows []reservationRow
	if err := exec.SelectContext(ctx, &rows,
		r.db.Q(`SELECT order_id, product_id, quantity FROM stock_reservations WHERE order_id = ?`), orderID.String()); err != nil {
		return nil, err
	}
	released := make([]domain.Reservation, 0, len(rows))
	for _, row := range rows {
		released = append(released, domain.Reservation(row))
	}

	now := time.Now().UTC()
	for _, res := range released {
		if _, err := exec.ExecContext(ctx,
			r.db.Q(`UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ?`),
			res.Quantity, now, res.ProductID.String()); err != nil {
			return nil, err
		}
	}
	if _, err := exec.ExecContext(ctx, r.db.Q(`DELETE FROM stock_reservations WHERE order_id = ?`), orderID.String()); err != nil {
		return nil, err
	}
	return released, nil
}

type productRow struct {
	ID        uuid.UUID       `db:"id"`
	Name      string          `db:"name"`
	Price     decimal.Decimal `db:"price"`
	Stock     int             `db:"stock"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

type reservationRow struct {
	OrderID   uuid.UUID `db:"order_id"`
	ProductID uuid.UUID `db:"product_id"`
	Quantity  int       `db:"quantity"`
}

// InitSchema crea las tablas del servicio de productos.
func InitSchema(ctx context.Context, db *sqldb.DB) error {
	ts, dec := db.Dialect().TimestampType(), db.Dialect().DecimalType()
	return db.ApplySchema(ctx,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price %[2]s NOT NULL,
			stock INTEGER NOT NULL CHECK (stock >= 0),
			created_at %[1]s NOT NULL,
			updated_at %[1]s NOT NULL
		)`, ts, dec),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stock_reservations (
			order_id TEXT NOT NULL,
			product_id TEXT NOT NULL REFERENCES products (id),
			quantity INTEGER NOT NULL,
			created_at %s NOT NULL,
			PRIMARY KEY (order_id, product_id)
		)`, ts),
	)
}

var _ domain.ProductRepository = (*ProductRepo)(nil)
