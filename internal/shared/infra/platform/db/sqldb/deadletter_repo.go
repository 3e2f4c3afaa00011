package sqldb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
)

type DeadLetterRepo struct {
	db *DB
}

func NewDeadLetterRepo(db *DB) *DeadLetterRepo {
	return &DeadLetterRepo{db: db}
}

func (r *DeadLetterRepo) SaveDeadLetter(ctx context.Context, dl sharedDomain.DeadLetter) error {
	attempts, err := json.Marshal(dl.Attempts)
	if err != nil {
		return fmt.Errorf("failed to marshal attempts: %w", err)
	}
	if dl.CreatedAt.IsZero() {
		dl.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.Exec(ctx).ExecContext(ctx, r.db.Q(
		`INSERT INTO dead_letters
			(event_id, event_type, consumer, topic, partition_no, offset_no, msg_key, payload, reason, attempts, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`),
		dl.EventID, dl.EventType, dl.Consumer, dl.Topic, dl.Partition, dl.Offset, dl.Key,
		dl.Payload, dl.Reason, string(attempts), dl.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}
	return nil
}

type deadLetterRow struct {
	ID        int64     `db:"id"`
	EventID   string    `db:"event_id"`
	EventType string    `db:"event_type"`
	Consumer  string    `db:"consumer"`
	Topic     string    `db:"topic"`
	Partition int       `db:"partition_no"`
	Offset    int64     `db:"offset_no"`
	Key       string    `db:"msg_key"`
	Payload   []byte    `db:"payload"`
	Reason    string    `db:"reason"`
	Attempts  string    `db:"attempts"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *DeadLetterRepo) ListDeadLetters(ctx context.Context, limit int) ([]sharedDomain.DeadLetter, error) {
	var rows []deadLetterRow
	err := r.db.Exec(ctx).SelectContext(ctx, &rows, r.db.Q(
		`SELECT id, event_id, event_type, consumer, topic, partition_no, offset_no, msg_key, payload, reason, attempts, created_at
		 FROM dead_letters ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead letters: %w", err)
	}

	out := make([]sharedDomain.DeadLetter, 0, len(rows))
	for _, row := range rows {
		dl := sharedDomain.DeadLetter{
			ID:        row.ID,
			EventID:   row.EventID,
			EventType: row.EventType,
			Consumer:  row.Consumer,
			Topic:     row.Topic,
			Partition: row.Partition,
			Offset:    row.Offset,
			Key:       row.Key,
			Payload:   row.Payload,
			Reason:    row.Reason,
			CreatedAt: row.CreatedAt,
		}
		if err := json.Unmarshal([]byte(row.Attempts), &dl.Attempts); err != nil {
			return nil, fmt.Errorf("invalid attempts in dead letter %d: %w", dl.ID, err)
		}
		out = append(out, dl)
	}
	return out, nil
}

var _ sharedDomain.DeadLetterStore = (*DeadLetterRepo)(nil)
