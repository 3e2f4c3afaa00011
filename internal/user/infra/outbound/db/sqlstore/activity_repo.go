package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/hexasync/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/hexasync/internal/user/domain"
)

// ActivityRepo guarda el historial que alimenta el grupo users-self.
type ActivityRepo struct {
	db *sqldb.DB
}

func NewActivityRepo(db *sqldb.DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

// Record es idempotente: una segunda entrega del mismo evento no añade fila.
func (r *ActivityRepo) Record(ctx context.Context, a domain.Activity) error {
	_, err := r.db.Exec(ctx).ExecContext(ctx,
		r.db.Q(`INSERT INTO user_activity (event_id, user_id, event_type, email, occurred_at)
			VALUES (?, ?, ?, ?, ?) ON CONFLICT (event_id) DO NOTHING`),
		a.EventID.String(), a.UserID.String(), a.EventType, a.Email, a.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record activity %s: %w", a.EventID, err)
	}
	return nil
}

func (r *ActivityRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []activityRow
	err := r.db.Exec(ctx).SelectContext(ctx, &rows,
		r.db.Q(`SELECT event_id, user_id, event_type, email, occurred_at
			FROM user_activity WHERE user_id = ? ORDER BY occurred_at, event_id LIMIT ?`),
		userID.String(), limit,
	)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Activity, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Activity(row))
	}
	return out, nil
}

type activityRow struct {
	EventID    uuid.UUID `db:"event_id"`
	UserID     uuid.UUID `db:"user_id"`
	EventType  string    `db:"event_type"`
	Email      string    `db:"email"`
	OccurredAt time.Time `db:"occurred_at"`
}

var _ domain.ActivityRepository = (*ActivityRepo)(nil)
