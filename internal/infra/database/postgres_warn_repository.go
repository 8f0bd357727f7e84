// internal/infra/database/postgres_warn_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"clan_helper_bot/internal/domain/warn"

	"github.com/lib/pq"
)

type PostgresWarnRepository struct {
	db *sql.DB
}

func NewPostgresWarnRepository(db *sql.DB) *PostgresWarnRepository {
	return &PostgresWarnRepository{db: db}
}

func (r *PostgresWarnRepository) Issue(ctx context.Context, groupID, userID int64, reason warn.Reason, key string, count int) (int, error) {
	query := `INSERT INTO user_warns (group_id, user_id, warn_reason, warn_key, seq)
              SELECT $1, $2, $3, $4, s FROM generate_series(1, $5::int) AS s
              ON CONFLICT ON CONSTRAINT user_warns_unique DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, groupID, userID, reason, key, count)
	if err != nil {
		return 0, fmt.Errorf("error issuing %s warns: %w", reason, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error checking issued warns: %w", err)
	}
	return int(n), nil
}

func (r *PostgresWarnRepository) Exists(ctx context.Context, groupID, userID int64, reason warn.Reason, keys []string) (bool, error) {
	query := `SELECT EXISTS (
                SELECT 1 FROM user_warns
                WHERE group_id = $1 AND user_id = $2 AND warn_reason = $3 AND warn_key = ANY($4))`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, groupID, userID, reason, pq.Array(keys)).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking warns: %w", err)
	}
	return exists, nil
}

func (r *PostgresWarnRepository) CountForUser(ctx context.Context, groupID, userID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_warns WHERE group_id = $1 AND user_id = $2`, groupID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting warns: %w", err)
	}
	return n, nil
}

func (r *PostgresWarnRepository) Offenders(ctx context.Context, groupID int64, minTotal int) ([]warn.Offender, error) {
	query := `SELECT user_id, COUNT(*) AS total, ARRAY_AGG(DISTINCT warn_reason ORDER BY warn_reason)
              FROM user_warns
              WHERE group_id = $1
              GROUP BY user_id
              HAVING COUNT(*) >= $2
              ORDER BY total DESC, user_id ASC`
	rows, err := r.db.QueryContext(ctx, query, groupID, minTotal)
	if err != nil {
		return nil, fmt.Errorf("error listing offenders: %w", err)
	}
	defer rows.Close()

	var out []warn.Offender
	for rows.Next() {
		var o warn.Offender
		var reasons pq.StringArray
		if err := rows.Scan(&o.UserID, &o.Total, &reasons); err != nil {
			return nil, fmt.Errorf("error scanning offender: %w", err)
		}
		for _, r := range reasons {
			o.Reasons = append(o.Reasons, warn.Reason(r))
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
