package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aq2208/gorder-storefront/internal/usecase"
)

type OutboxRepo struct{ db *sql.DB }

func NewOutboxRepo(db *sql.DB) *OutboxRepo { return &OutboxRepo{db: db} }

var _ usecase.OutboxRepo = (*OutboxRepo)(nil)

func insertOutbox(ctx context.Context, tx *sql.Tx, m usecase.OutboxMessage) error {
	status := m.Status
	if status == "" {
		status = usecase.OutboxPending
	}
	_, err := tx.ExecContext(ctx, `
INSERT INTO outbox (id, channel, payload, status, retry_count, next_attempt_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Channel, m.Payload, status, m.RetryCount, m.NextAttemptAt.UTC(), m.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

// FetchDue returns pending messages whose next attempt is at or before now,
// oldest first.
func (r *OutboxRepo) FetchDue(ctx context.Context, now time.Time, limit int) ([]usecase.OutboxMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, channel, payload, status, retry_count, next_attempt_at, created_at
FROM outbox
WHERE status = ? AND next_attempt_at <= ?
ORDER BY created_at, id
LIMIT ?`, usecase.OutboxPending, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	defer rows.Close()

	var out []usecase.OutboxMessage
	for rows.Next() {
		var m usecase.OutboxMessage
		if err := rows.Scan(&m.ID, &m.Channel, &m.Payload, &m.Status, &m.RetryCount, &m.NextAttemptAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *OutboxRepo) MarkSent(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox SET status = ? WHERE id = ?`, usecase.OutboxSent, id)
	return err
}

// MarkRetry bumps the retry count and schedules the next attempt, or parks
// the message as FAILED when failed is set.
func (r *OutboxRepo) MarkRetry(ctx context.Context, id string, next time.Time, failed bool) error {
	status := usecase.OutboxPending
	if failed {
		status = usecase.OutboxFailed
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE outbox
SET status = ?, retry_count = retry_count + 1, next_attempt_at = ?
WHERE id = ?`, status, next.UTC(), id)
	return err
}
