package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/hexasync/internal/user/domain"
)

// UserRepo guarda usuarios en SQLite o Postgres. Participa en la
// transacción que traiga el contexto.
type UserRepo struct {
	db *sqldb.DB
}

func NewUserRepo(db *sqldb.DB) *UserRepo {
	return &UserRepo{db: db}
}

var sortable = map[string]string{
	"created_at": "created_at",
	"nombre":     "nombre",
	"email":      "email",
}

// ------------------ Métodos ------------------

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	var exists int
	err := r.db.Exec(ctx).GetContext(ctx, &exists, r.db.Q(`SELECT 1 FROM users WHERE email = ? OR id = ?`), u.Email, u.ID.String())
	if err == nil {
		return domain.ErrUserAlreadyExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = r.db.Exec(ctx).ExecContext(ctx,
		r.db.Q(`INSERT INTO users (id, email, nombre, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		u.ID.String(), u.Email, u.Nombre, u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	return err
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	res, err := r.db.Exec(ctx).ExecContext(ctx,
		r.db.Q(`UPDATE users SET email = ?, nombre = ?, updated_at = ? WHERE id = ?`),
		u.Email, u.Nombre, u.UpdatedAt.UTC(), u.ID.String(),
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var row userRow
	err := r.db.Exec(ctx).GetContext(ctx, &row,
		r.db.Q(`SELECT id, email, nombre, created_at, updated_at FROM users WHERE id = ?`), id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.user(), nil
}

func (r *UserRepo) List(ctx context.Context, f domain.UserFilter) ([]*domain.User, error) {
	var args []any
	var conditions []string

	if f.Email != nil {
		conditions = append(conditions, "email = ?")
		args = append(args, *f.Email)
	}
	if f.Nombre != nil {
		conditions = append(conditions, "LOWER(nombre) LIKE ?")
		args = append(args, "%"+strings.ToLower(*f.Nombre)+"%")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy := "created_at DESC"
	if col, ok := sortable[f.Sort.Field]; ok {
		dir := "ASC"
		if f.Sort.Desc {
			dir = "DESC"
		}
		orderBy = col + " " + dir
	}

	limit := f.Pagination.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Pagination.Offset)

	query := fmt.Sprintf(`SELECT id, email, nombre, created_at, updated_at
		FROM users %s ORDER BY %s LIMIT ? OFFSET ?`, where, orderBy)

	var rows []userRow
	if err := r.db.Exec(ctx).SelectContext(ctx, &rows, r.db.Q(query), args...); err != nil {
		return nil, err
	}

	users := make([]*domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

type userRow struct {
	ID        uuid.UUID `db:"id"`
	Email     string    `db:"email"`
	Nombre    string    `db:"nombre"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row userRow) user() *domain.User {
	return &domain.User{
		ID:        row.ID,
		Email:     row.Email,
		Nombre:    row.Nombre,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

// ------------------ Inicialización de DB ------------------

// InitSchema crea las tablas del servicio de usuarios.
func InitSchema(ctx context.Context, db *sqldb.DB) error {
	ts := db.Dialect().TimestampType()
	return db.ApplySchema(ctx,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			nombre TEXT NOT NULL,
			created_at %[1]s NOT NULL,
			updated_at %[1]s NOT NULL
		)`, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_activity (
			event_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			email TEXT NOT NULL,
			occurred_at %s NOT NULL
		)`, ts),
		`CREATE INDEX IF NOT EXISTS idx_user_activity_user ON user_activity (user_id, occurred_at)`,
	)
}

var _ domain.UserRepository = (*UserRepo)(nil)
