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

// ReplicaRepo mantiene known_users y product_catalog. Cada upsert lleva la
// fecha del evento y sólo gana si no es anterior a la guardada.
type ReplicaRepo struct {
	db *sqldb.DB
}

func NewReplicaRepo(db *sqldb.DB) *ReplicaRepo {
	return &ReplicaRepo{db: db}
}

func (r *ReplicaRepo) UpsertUser(ctx context.Context, u domain.KnownUser) error {
	_, err := r.db.Exec(ctx).ExecContext(ctx, r.db.Q(`
		INSERT INTO known_users (id, email, name, updated_ms) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET email = excluded.email, name = excluded.name, updated_ms = excluded.updated_ms
		WHERE known_users.updated_ms <= excluded.updated_ms`),
		u.ID.String(), u.Email, u.Name, u.UpdatedAt.UTC().UnixMilli())
	return err
}

func (r *ReplicaRepo) GetUser(ctx context.Context, id uuid.UUID) (*domain.KnownUser, error) {
	var row struct {
		Email     string `db:"email"`
		Name      string `db:"name"`
		UpdatedMs int64  `db:"updated_ms"`
	}
	err := r.db.Exec(ctx).GetContext(ctx, &row,
		r.db.Q(`SELECT email, name, updated_ms FROM known_users WHERE id = ?`), id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownUser, id)
	}
	if err != nil {
		return nil, err
	}
	return &domain.KnownUser{ID: id, Email: row.Email, Name: row.Name, UpdatedAt: time.UnixMilli(row.UpdatedMs).UTC()}, nil
}

func (r *ReplicaRepo) UpsertProduct(ctx context.Context, p domain.CatalogProduct) error {
	_, err := r.db.Exec(ctx).ExecContext(ctx, r.db.Q(`
		INSERT INTO product_catalog (id, name, price, stock, updated_ms) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, price = excluded.price, stock = excluded.stock, updated_ms = excluded.updated_ms
		WHERE product_catalog.updated_ms <= excluded.updated_ms`),
		p.ID.String(), p.Name, p.Price, p.Stock, p.UpdatedAt.UTC().UnixMilli())
	return err
}

func (r *ReplicaRepo) GetProduct(ctx context.Context, id uuid.UUID) (*domain.CatalogProduct, error) {
	var row struct {
		Name      string          `db:"name"`
		Price     decimal.Decimal `db:"price"`
		Stock     int             `db:"stock"`
		UpdatedMs int64           `db:"updated_ms"`
	}
	err := r.db.Exec(ctx).GetContext(ctx, &row,
		r.db.Q(`SELECT name, price, stock, updated_ms FROM product_catalog WHERE id = ?`), id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProduct, id)
	}
	if err != nil {
		return nil, err
	}
	return &domain.CatalogProduct{
		ID:        id,
		Name:      row.Name,
		Price:     row.Price,
		Stock:     row.Stock,
		UpdatedAt: time.UnixMilli(row.UpdatedMs).UTC(),
	}, nil
}

func (r *ReplicaRepo) UpdateStock(ctx context.Context, productID uuid.UUID, remaining int, at time.Time) error {
	ms := at.UTC().UnixMilli()
	_, err := r.db.Exec(ctx).ExecContext(ctx,
		r.db.Q(`UPDATE product_catalog SET stock = ?, updated_ms = ? WHERE id = ? AND updated_ms <= ?`),
		remaining, ms, productID.String(), ms)
	return err
}

var _ domain.ReplicaRepository = (*ReplicaRepo)(nil)
