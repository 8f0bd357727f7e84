// internal/infra/database/postgres_botlog_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresBotLogRepository stores job markers and reminder message ids in 'bot_logs'.
type PostgresBotLogRepository struct {
	db *sql.DB
}

func NewPostgresBotLogRepository(db *sql.DB) *PostgresBotLogRepository {
	return &PostgresBotLogRepository{db: db}
}

func (r *PostgresBotLogRepository) MarkRun(ctx context.Context, groupID int64, tag, key string) (bool, error) {
	query := `INSERT INTO bot_logs (group_id, action, log_key)
              VALUES ($1, $2, $3)
              ON CONFLICT ON CONSTRAINT bot_logs_unique DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, groupID, tag, key)
	if err != nil {
		return false, fmt.Errorf("error claiming %s marker: %w", tag, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error checking %s marker claim: %w", tag, err)
	}
	return n == 1, nil
}

func (r *PostgresBotLogRepository) Unmark(ctx context.Context, groupID int64, tag, key string) error {
	query := `DELETE FROM bot_logs WHERE group_id = $1 AND action = $2 AND log_key = $3`
	if _, err := r.db.ExecContext(ctx, query, groupID, tag, key); err != nil {
		return fmt.Errorf("error releasing %s marker: %w", tag, err)
	}
	return nil
}

func (r *PostgresBotLogRepository) Messages(ctx context.Context, groupID int64, tag, key string) ([]int, error) {
	query := `SELECT message_ids FROM bot_logs WHERE group_id = $1 AND action = $2 AND log_key = $3`
	var ids pq.Int64Array
	err := r.db.QueryRowContext(ctx, query, groupID, tag, key).Scan(&ids)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error loading %s message ids: %w", tag, err)
	}
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out, nil
}

func (r *PostgresBotLogRepository) ReplaceMessages(ctx context.Context, groupID int64, tag, key string, messageIDs []int) error {
	query := `INSERT INTO bot_logs (group_id, action, log_key, message_ids)
              VALUES ($1, $2, $3, $4)
              ON CONFLICT ON CONSTRAINT bot_logs_unique DO UPDATE SET
                  message_ids = EXCLUDED.message_ids,
                  updated_at = NOW()`
	ids := make(pq.Int64Array, len(messageIDs))
	for i, id := range messageIDs {
		ids[i] = int64(id)
	}
	if _, err := r.db.ExecContext(ctx, query, groupID, tag, key, ids); err != nil {
		return fmt.Errorf("error storing %s message ids: %w", tag, err)
	}
	return nil
}

func (r *PostgresBotLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bot_logs WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error deleting old bot logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting deleted bot logs: %w", err)
	}
	return n, nil
}
