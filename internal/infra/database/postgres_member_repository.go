// internal/infra/database/postgres_member_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"clan_helper_bot/internal/domain/member"

	"github.com/lib/pq"
)

type PostgresMemberRepository struct {
	db *sql.DB
}

func NewPostgresMemberRepository(db *sql.DB) *PostgresMemberRepository {
	return &PostgresMemberRepository{db: db}
}

const memberColumns = `gm.group_id, gm.user_id, gm.first_name, gm.last_name, gm.username, gm.status, gm.joined_at, gm.updated_at`

func scanMember(row rowScanner) (member.Member, error) {
	var m member.Member
	err := row.Scan(&m.GroupID, &m.UserID, &m.FirstName, &m.LastName, &m.Username, &m.Status, &m.JoinedAt, &m.UpdatedAt)
	return m, err
}

func collectMembers(rows *sql.Rows) ([]member.Member, error) {
	defer rows.Close()
	var members []member.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning member row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}
	return members, nil
}

func (r *PostgresMemberRepository) ActiveMembers(ctx context.Context, groupID int64) ([]member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM group_members gm
              WHERE gm.group_id = $1 AND gm.status IN ('member', 'off')
              ORDER BY gm.first_name, gm.username, gm.user_id`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("error listing active members: %w", err)
	}
	return collectMembers(rows)
}

func (r *PostgresMemberRepository) Upsert(ctx context.Context, m *member.Member) error {
	query := `INSERT INTO group_members (group_id, user_id, first_name, last_name, username, status)
              VALUES ($1, $2, $3, $4, $5, $6)
              ON CONFLICT (group_id, user_id) DO UPDATE SET
                  first_name = EXCLUDED.first_name,
                  last_name = EXCLUDED.last_name,
                  username = EXCLUDED.username,
                  status = EXCLUDED.status,
                  updated_at = NOW()
              RETURNING joined_at, updated_at`
	if m.Status == "" {
		m.Status = member.StatusMember
	}
	err := r.db.QueryRowContext(ctx, query, m.GroupID, m.UserID, m.FirstName, m.LastName, m.Username, m.Status).
		Scan(&m.JoinedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting member: %w", err)
	}
	return nil
}

func (r *PostgresMemberRepository) SetStatus(ctx context.Context, groupID, userID int64, status member.Status) error {
	query := `UPDATE group_members SET status = $3, updated_at = NOW() WHERE group_id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, groupID, userID, status)
	if err != nil {
		return fmt.Errorf("error setting member status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking rows affected for member status: %w", err)
	}
	if n == 0 {
		return member.ErrMemberNotFound
	}
	return nil
}

func (r *PostgresMemberRepository) Get(ctx context.Context, groupID, userID int64) (*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM group_members gm WHERE gm.group_id = $1 AND gm.user_id = $2`
	m, err := scanMember(r.db.QueryRowContext(ctx, query, groupID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, member.ErrMemberNotFound
		}
		return nil, fmt.Errorf("error getting member: %w", err)
	}
	return &m, nil
}

func (r *PostgresMemberRepository) GetMany(ctx context.Context, groupID int64, userIDs []int64) ([]member.Member, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + memberColumns + ` FROM group_members gm
              WHERE gm.group_id = $1 AND gm.user_id = ANY($2)`
	rows, err := r.db.QueryContext(ctx, query, groupID, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("error getting members by ids: %w", err)
	}
	return collectMembers(rows)
}
