// internal/infra/database/postgres_callout_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clan_helper_bot/internal/domain/callout"

	"github.com/lib/pq"
)

// PostgresCalloutRepository stores going rosters in 'callouts'.
type PostgresCalloutRepository struct {
	db *sql.DB
}

func NewPostgresCalloutRepository(db *sql.DB) *PostgresCalloutRepository {
	return &PostgresCalloutRepository{db: db}
}

func (r *PostgresCalloutRepository) Create(ctx context.Context, c *callout.Callout) error {
	query := `INSERT INTO callouts (group_id, topic_id, battle_type, message_id, invited_users, going_users)
              VALUES ($1, $2, $3, $4, $5, $6)
              RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		c.GroupID, c.TopicID, c.BattleType, c.MessageID, pq.Int64Array(c.Invited), pq.Int64Array(c.Going),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating callout: %w", err)
	}
	return nil
}

func (r *PostgresCalloutRepository) Get(ctx context.Context, id int64) (*callout.Callout, error) {
	query := `SELECT id, group_id, topic_id, battle_type, message_id, invited_users, going_users, created_at, updated_at
              FROM callouts WHERE id = $1`
	c := &callout.Callout{}
	var invited, going pq.Int64Array
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.GroupID, &c.TopicID, &c.BattleType, &c.MessageID, &invited, &going, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, callout.ErrCalloutNotFound
		}
		return nil, fmt.Errorf("error loading callout %d: %w", id, err)
	}
	c.Invited, c.Going = invited, going
	return c, nil
}

func (r *PostgresCalloutRepository) SetMessageID(ctx context.Context, id int64, messageID int) error {
	query := `UPDATE callouts SET message_id = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, messageID); err != nil {
		return fmt.Errorf("error storing callout message id: %w", err)
	}
	return nil
}

func (r *PostgresCalloutRepository) AddGoing(ctx context.Context, id, userID int64) (bool, error) {
	query := `UPDATE callouts
              SET going_users = array_append(going_users, $2), updated_at = NOW()
              WHERE id = $1 AND NOT ($2 = ANY(going_users))`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("error adding user to callout: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error checking callout update: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresCalloutRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM callouts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error deleting old callouts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting deleted callouts: %w", err)
	}
	return n, nil
}
