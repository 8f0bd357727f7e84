// internal/infra/database/postgres_attendance_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clan_helper_bot/internal/domain/attendance"
	"clan_helper_bot/internal/domain/collection"
	"clan_helper_bot/internal/domain/member"
	"clan_helper_bot/internal/domain/schedule"

	"github.com/lib/pq"
)

type PostgresAttendanceRepository struct {
	db *sql.DB
}

func NewPostgresAttendanceRepository(db *sql.DB) *PostgresAttendanceRepository {
	return &PostgresAttendanceRepository{db: db}
}

func (r *PostgresAttendanceRepository) PollExists(ctx context.Context, groupID int64, pollType collection.BattleType, date string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM polls WHERE group_id = $1 AND poll_type = $2 AND poll_date = $3::date)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, groupID, pollType, date).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking poll existence: %w", err)
	}
	return exists, nil
}

func (r *PostgresAttendanceRepository) CreatePoll(ctx context.Context, poll *attendance.Poll) error {
	query := `INSERT INTO polls (group_id, topic_id, poll_type, poll_date, telegram_poll_id, message_id)
              VALUES ($1, $2, $3, $4::date, $5, $6)
              RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		poll.GroupID, poll.TopicID, poll.PollType, poll.PollDate, poll.TelegramPollID, poll.MessageID,
	).Scan(&poll.ID, &poll.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.ErrPollExists
		}
		return fmt.Errorf("error creating poll: %w", err)
	}
	return nil
}

func (r *PostgresAttendanceRepository) GetPollByTelegramID(ctx context.Context, telegramPollID string) (*attendance.Poll, error) {
	query := `SELECT id, group_id, topic_id, poll_type, poll_date::text, telegram_poll_id, message_id, created_at
              FROM polls WHERE telegram_poll_id = $1`
	p := &attendance.Poll{}
	err := r.db.QueryRowContext(ctx, query, telegramPollID).Scan(
		&p.ID, &p.GroupID, &p.TopicID, &p.PollType, &p.PollDate, &p.TelegramPollID, &p.MessageID, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, attendance.ErrPollNotFound
		}
		return nil, fmt.Errorf("error getting poll by telegram id: %w", err)
	}
	return p, nil
}

func (r *PostgresAttendanceRepository) SaveAnswer(ctx context.Context, pollID, userID int64, optionIDs []int) error {
	query := `INSERT INTO poll_answers (poll_id, user_id, option_ids)
              VALUES ($1, $2, $3)
              ON CONFLICT (poll_id, user_id)
              DO UPDATE SET option_ids = EXCLUDED.option_ids, updated_at = NOW()`
	opts := make(pq.Int64Array, len(optionIDs))
	for i, id := range optionIDs {
		opts[i] = int64(id)
	}
	if _, err := r.db.ExecContext(ctx, query, pollID, userID, opts); err != nil {
		return fmt.Errorf("error saving poll answer: %w", err)
	}
	return nil
}

func (r *PostgresAttendanceRepository) DeleteAnswer(ctx context.Context, pollID, userID int64) error {
	query := `DELETE FROM poll_answers WHERE poll_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, pollID, userID); err != nil {
		return fmt.Errorf("error deleting poll answer: %w", err)
	}
	return nil
}

func (r *PostgresAttendanceRepository) NonResponders(ctx context.Context, groupID int64, pollType collection.BattleType, date string) ([]member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM group_members gm
              WHERE gm.group_id = $1 AND gm.status IN ('member', 'off')
                AND NOT EXISTS (
                    SELECT 1 FROM poll_answers pa
                    JOIN polls p ON p.id = pa.poll_id
                    WHERE p.group_id = gm.group_id AND p.poll_type = $2 AND p.poll_date = $3::date
                      AND pa.user_id = gm.user_id)
              ORDER BY gm.first_name, gm.username, gm.user_id`
	rows, err := r.db.QueryContext(ctx, query, groupID, pollType, date)
	if err != nil {
		return nil, fmt.Errorf("error listing non-responders: %w", err)
	}
	return collectMembers(rows)
}

func (r *PostgresAttendanceRepository) UserAnswers(ctx context.Context, userID, groupID int64, date string) ([]attendance.Answer, error) {
	query := `SELECT pa.poll_id, pa.user_id, p.poll_type, p.poll_date::text, pa.option_ids, pa.updated_at
              FROM poll_answers pa
              JOIN polls p ON p.id = pa.poll_id
              WHERE pa.user_id = $1 AND p.group_id = $2 AND p.poll_date = $3::date`
	rows, err := r.db.QueryContext(ctx, query, userID, groupID, date)
	if err != nil {
		return nil, fmt.Errorf("error getting user answers: %w", err)
	}
	defer rows.Close()

	var answers []attendance.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func (r *PostgresAttendanceRepository) AnswersInRange(ctx context.Context, groupID int64, from, to string) ([]attendance.Respondent, error) {
	query := `SELECT pa.poll_id, pa.user_id, p.poll_type, p.poll_date::text, pa.option_ids, pa.updated_at
              FROM poll_answers pa
              JOIN polls p ON p.id = pa.poll_id
              WHERE p.group_id = $1 AND p.poll_date BETWEEN $2::date AND $3::date
              ORDER BY pa.user_id, p.poll_date, p.poll_type`
	rows, err := r.db.QueryContext(ctx, query, groupID, from, to)
	if err != nil {
		return nil, fmt.Errorf("error getting answers in range: %w", err)
	}
	defer rows.Close()

	var respondents []attendance.Respondent
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		if n := len(respondents); n == 0 || respondents[n-1].UserID != a.UserID {
			respondents = append(respondents, attendance.Respondent{UserID: a.UserID})
		}
		last := &respondents[len(respondents)-1]
		last.Answers = append(last.Answers, a)
	}
	return respondents, rows.Err()
}

func scanAnswer(rows *sql.Rows) (attendance.Answer, error) {
	var a attendance.Answer
	var opts pq.Int64Array
	if err := rows.Scan(&a.PollID, &a.UserID, &a.PollType, &a.PollDate, &opts, &a.UpdatedAt); err != nil {
		return a, fmt.Errorf("error scanning poll answer: %w", err)
	}
	a.OptionIDs = make([]int, len(opts))
	for i, o := range opts {
		a.OptionIDs[i] = int(o)
	}
	return a, nil
}

// DeleteOlderThan removes polls dated before cutoff; answers go with them.
func (r *PostgresAttendanceRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM polls WHERE poll_date < $1::date`
	res, err := r.db.ExecContext(ctx, query, cutoff.UTC().Format(schedule.DateLayout))
	if err != nil {
		return 0, fmt.Errorf("error deleting old polls: %w", err)
	}
	return res.RowsAffected()
}
