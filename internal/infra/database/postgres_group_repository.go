// internal/infra/database/postgres_group_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"clan_helper_bot/internal/domain/group"
)

type PostgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) *PostgresGroupRepository {
	return &PostgresGroupRepository{db: db}
}

func (r *PostgresGroupRepository) GetConfig(ctx context.Context, groupID int64) (*group.Config, error) {
	cfg := &group.Config{
		GroupID:                 groupID,
		CollectionIntervalHours: group.DefaultIntervalHours,
		CollectionIntervalMins:  group.DefaultIntervalMinutes,
		NormPoints:              group.DefaultNormPoints,
	}
	known := false

	var tz sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT timezone, collection_interval_hours, collection_interval_mins FROM group_settings WHERE group_id = $1`,
		groupID,
	).Scan(&tz, &cfg.CollectionIntervalHours, &cfg.CollectionIntervalMins)
	switch {
	case err == nil:
		known = true
		cfg.Timezone = tz.String
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("error loading group settings: %w", err)
	}

	var reportGroup sql.NullInt64
	var reportTopic sql.NullInt32
	err = r.db.QueryRowContext(ctx,
		`SELECT warns_enabled, norm_points, report_group_id, report_topic_id FROM group_warn_settings WHERE group_id = $1`,
		groupID,
	).Scan(&cfg.WarnsEnabled, &cfg.NormPoints, &reportGroup, &reportTopic)
	switch {
	case err == nil:
		known = true
		cfg.WarnReportGroupID = reportGroup.Int64
		cfg.WarnReportTopicID = int(reportTopic.Int32)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("error loading warn settings: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
        SELECT tf.topic_id, COALESCE(gt.topic_name, ''), tf.polls_enabled, tf.top_enabled, tf.collection_enabled
        FROM topic_features tf
        LEFT JOIN group_topics gt ON gt.group_id = tf.group_id AND gt.topic_id = tf.topic_id
        WHERE tf.group_id = $1
        ORDER BY tf.topic_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("error loading topic features: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t group.TopicFeatures
		if err := rows.Scan(&t.TopicID, &t.TopicName, &t.PollsEnabled, &t.TopEnabled, &t.CollectionEnabled); err != nil {
			return nil, fmt.Errorf("error scanning topic features: %w", err)
		}
		cfg.Topics = append(cfg.Topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topic features: %w", err)
	}

	if !known && len(cfg.Topics) == 0 {
		return nil, group.ErrGroupNotFound
	}
	return cfg, nil
}

func (r *PostgresGroupRepository) ListGroupIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT group_id FROM topic_features
              WHERE polls_enabled OR top_enabled OR collection_enabled
              UNION
              SELECT group_id FROM group_warn_settings WHERE warns_enabled
              ORDER BY group_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing groups: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PostgresGroupRepository) SetInterval(ctx context.Context, groupID int64, hours, minutes int) error {
	query := `INSERT INTO group_settings (group_id, collection_interval_hours, collection_interval_mins)
              VALUES ($1, $2, $3)
              ON CONFLICT (group_id) DO UPDATE SET
                  collection_interval_hours = EXCLUDED.collection_interval_hours,
                  collection_interval_mins = EXCLUDED.collection_interval_mins,
                  updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, groupID, hours, minutes); err != nil {
		return fmt.Errorf("error saving collection interval: %w", err)
	}
	return nil
}

func (r *PostgresGroupRepository) SetTimezone(ctx context.Context, groupID int64, timezone string) error {
	query := `INSERT INTO group_settings (group_id, timezone)
              VALUES ($1, $2)
              ON CONFLICT (group_id) DO UPDATE SET timezone = EXCLUDED.timezone, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, groupID, timezone); err != nil {
		return fmt.Errorf("error saving timezone: %w", err)
	}
	return nil
}

func featureColumn(f group.Feature) (string, error) {
	switch f {
	case group.FeaturePolls:
		return "polls_enabled", nil
	case group.FeatureTop:
		return "top_enabled", nil
	case group.FeatureCollection:
		return "collection_enabled", nil
	}
	return "", fmt.Errorf("unknown feature %q", f)
}

func (r *PostgresGroupRepository) SetTopicFeature(ctx context.Context, groupID int64, topicID int, feature group.Feature, enabled bool) error {
	column, err := featureColumn(feature)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO topic_features (group_id, topic_id, %[1]s)
              VALUES ($1, $2, $3)
              ON CONFLICT (group_id, topic_id) DO UPDATE SET %[1]s = EXCLUDED.%[1]s, updated_at = NOW()`, column)
	if _, err := r.db.ExecContext(ctx, query, groupID, topicID, enabled); err != nil {
		return fmt.Errorf("error saving topic feature: %w", err)
	}
	return nil
}

func (r *PostgresGroupRepository) UpsertTopic(ctx context.Context, groupID int64, topicID int, name string) error {
	query := `INSERT INTO group_topics (group_id, topic_id, topic_name)
              VALUES ($1, $2, $3)
              ON CONFLICT (group_id, topic_id) DO UPDATE SET topic_name = EXCLUDED.topic_name, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, groupID, topicID, name); err != nil {
		return fmt.Errorf("error saving topic: %w", err)
	}
	return nil
}

func (r *PostgresGroupRepository) SetNormPoints(ctx context.Context, groupID int64, points int) error {
	query := `INSERT INTO group_warn_settings (group_id, norm_points)
              VALUES ($1, $2)
              ON CONFLICT (group_id) DO UPDATE SET norm_points = EXCLUDED.norm_points, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, groupID, points); err != nil {
		return fmt.Errorf("error saving norm: %w", err)
	}
	return nil
}

func (r *PostgresGroupRepository) SetWarnsEnabled(ctx context.Context, groupID int64, enabled bool) error {
	query := `INSERT INTO group_warn_settings (group_id, warns_enabled)
              VALUES ($1, $2)
              ON CONFLICT (group_id) DO UPDATE SET warns_enabled = EXCLUDED.warns_enabled, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, groupID, enabled); err != nil {
		return fmt.Errorf("error saving warns switch: %w", err)
	}
	return nil
}

func (r *PostgresGroupRepository) SetWarnReportDestination(ctx context.Context, groupID, reportGroupID int64, reportTopicID int) error {
	query := `INSERT INTO group_warn_settings (group_id, report_group_id, report_topic_id)
              VALUES ($1, $2, $3)
              ON CONFLICT (group_id) DO UPDATE SET
                  report_group_id = EXCLUDED.report_group_id,
                  report_topic_id = EXCLUDED.report_topic_id,
                  updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, groupID, reportGroupID, reportTopicID); err != nil {
		return fmt.Errorf("error saving warn report destination: %w", err)
	}
	return nil
}
