// internal/infra/database/postgres_collection_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clan_helper_bot/internal/domain/collection"
)

type PostgresCollectionRepository struct {
	db *sql.DB
}

func NewPostgresCollectionRepository(db *sql.DB) *PostgresCollectionRepository {
	return &PostgresCollectionRepository{db: db}
}

const callColumns = `id, group_id, topic_id, battle_type, message_id, status, scheduled_time, postponed_until, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (*collection.Call, error) {
	c := &collection.Call{}
	err := row.Scan(
		&c.ID, &c.GroupID, &c.TopicID, &c.BattleType, &c.MessageID, &c.Status,
		&c.ScheduledTime, &c.PostponedUntil, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresCollectionRepository) RecordCall(ctx context.Context, call *collection.Call) error {
	query := `INSERT INTO group_collection_calls (group_id, topic_id, battle_type, message_id, status, scheduled_time)
              VALUES ($1, $2, $3, $4, $5, $6)
              RETURNING id, created_at, updated_at`
	if call.Status == "" {
		call.Status = collection.StatusPending
	}
	err := r.db.QueryRowContext(ctx, query,
		call.GroupID, call.TopicID, call.BattleType, call.MessageID, call.Status, call.ScheduledTime,
	).Scan(&call.ID, &call.CreatedAt, &call.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return collection.ErrDuplicateCall
		}
		return fmt.Errorf("error recording collection call: %w", err)
	}
	return nil
}

func (r *PostgresCollectionRepository) HasActiveCallNear(ctx context.Context, groupID int64, topicID int, battle collection.BattleType, expected time.Time, tolerance time.Duration) (bool, error) {
	query := `SELECT EXISTS (
                SELECT 1 FROM group_collection_calls
                WHERE group_id = $1 AND topic_id = $2 AND battle_type = $3
                  AND status <> 'cancelled'
                  AND scheduled_time BETWEEN $4 AND $5)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, groupID, topicID, battle, expected.Add(-tolerance), expected.Add(tolerance)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking active collection call: %w", err)
	}
	return exists, nil
}

func (r *PostgresCollectionRepository) LatestCall(ctx context.Context, groupID int64, topicID int, battle collection.BattleType) (*collection.Call, error) {
	query := `SELECT ` + callColumns + ` FROM group_collection_calls
              WHERE group_id = $1 AND topic_id = $2 AND battle_type = $3
              ORDER BY updated_at DESC, id DESC LIMIT 1`
	c, err := scanCall(r.db.QueryRowContext(ctx, query, groupID, topicID, battle))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, collection.ErrCallNotFound
		}
		return nil, fmt.Errorf("error getting latest collection call: %w", err)
	}
	return c, nil
}

func (r *PostgresCollectionRepository) UpdateStatus(ctx context.Context, groupID int64, topicID int, battle collection.BattleType, status collection.Status, postponedUntil *time.Time) (*collection.Call, error) {
	query := `UPDATE group_collection_calls
              SET status = $4, postponed_until = $5, updated_at = NOW()
              WHERE id = (
                  SELECT id FROM group_collection_calls
                  WHERE group_id = $1 AND topic_id = $2 AND battle_type = $3 AND status = 'pending'
                  ORDER BY created_at DESC, id DESC
                  LIMIT 1
                  FOR UPDATE SKIP LOCKED)
              RETURNING ` + callColumns
	var until sql.NullTime
	if postponedUntil != nil {
		until = sql.NullTime{Time: *postponedUntil, Valid: true}
	}
	c, err := scanCall(r.db.QueryRowContext(ctx, query, groupID, topicID, battle, status, until))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, collection.ErrCallNotFound
		}
		return nil, fmt.Errorf("error updating collection call status: %w", err)
	}
	return c, nil
}

func (r *PostgresCollectionRepository) FindDuePostponed(ctx context.Context, now time.Time) ([]*collection.Call, error) {
	query := `SELECT ` + callColumns + ` FROM group_collection_calls
              WHERE status = 'postponed' AND postponed_until <= $1
              ORDER BY postponed_until ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("error finding due postponed calls: %w", err)
	}
	defer rows.Close()

	var calls []*collection.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning postponed call: %w", err)
		}
		calls = append(calls, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating postponed calls: %w", err)
	}
	return calls, nil
}

func (r *PostgresCollectionRepository) ClaimPostponed(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE group_collection_calls
              SET status = 'pending', postponed_until = NULL, updated_at = NOW()
              WHERE id = $1 AND status = 'postponed'`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("error claiming postponed call %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading claim result: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresCollectionRepository) Repostpone(ctx context.Context, id int64, until time.Time) error {
	query := `UPDATE group_collection_calls
              SET status = 'postponed', postponed_until = $2, updated_at = NOW()
              WHERE id = $1`
	return r.execOne(ctx, query, id, until)
}

func (r *PostgresCollectionRepository) SetMessageID(ctx context.Context, id int64, messageID int) error {
	query := `UPDATE group_collection_calls SET message_id = $2 WHERE id = $1`
	return r.execOne(ctx, query, id, messageID)
}

func (r *PostgresCollectionRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating collection call: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading update result: %w", err)
	}
	if n == 0 {
		return collection.ErrCallNotFound
	}
	return nil
}

func (r *PostgresCollectionRepository) ListByMessage(ctx context.Context, groupID int64, messageID int) ([]*collection.Call, error) {
	query := `SELECT ` + callColumns + ` FROM group_collection_calls
              WHERE group_id = $1 AND message_id = $2
              ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, groupID, messageID)
	if err != nil {
		return nil, fmt.Errorf("error listing calls by message: %w", err)
	}
	defer rows.Close()

	var calls []*collection.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning call: %w", err)
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}
