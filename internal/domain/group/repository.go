package group

import (
	"context"
	"errors"
)

var ErrGroupNotFound = errors.New("group settings not found")

// Repository reads and mutates group settings.
type Repository interface {
	// GetConfig assembles settings, warn settings and topic features.
	// Groups without a settings row get defaults; ErrGroupNotFound is returned
	// only when the group is entirely unknown.
	GetConfig(ctx context.Context, groupID int64) (*Config, error)
	// ListGroupIDs returns every group with at least one topic feature enabled,
	// in ascending id order.
	ListGroupIDs(ctx context.Context) ([]int64, error)

	SetInterval(ctx context.Context, groupID int64, hours, minutes int) error
	SetTimezone(ctx context.Context, groupID int64, timezone string) error
	SetTopicFeature(ctx context.Context, groupID int64, topicID int, feature Feature, enabled bool) error
	UpsertTopic(ctx context.Context, groupID int64, topicID int, name string) error

	SetNormPoints(ctx context.Context, groupID int64, points int) error
	SetWarnsEnabled(ctx context.Context, groupID int64, enabled bool) error
	SetWarnReportDestination(ctx context.Context, groupID, reportGroupID int64, reportTopicID int) error
}
