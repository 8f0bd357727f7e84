// internal/domain/botlog/marker.go
package botlog

import (
	"context"
	"time"
)

// Tags of recurring jobs guarded by a sent marker.
const (
	TagDailyTop       = "daily_top_sent"
	TagWeeklyTop      = "weekly_top_sent"
	TagWarnReport     = "warn_report_sent"
	TagCollectionSlot = "collection_slot"
	TagReminder       = "reminder_messages"
	TagCalloutReady   = "callout_ready"
)

// Repository records which recurring jobs already ran; backed by 'bot_logs'.
type Repository interface {
	// MarkRun inserts the marker if absent and reports whether this call created it.
	MarkRun(ctx context.Context, groupID int64, tag, key string) (bool, error)
	// Unmark removes a marker so a failed job can be retried on the next tick.
	Unmark(ctx context.Context, groupID int64, tag, key string) error

	// Messages and ReplaceMessages keep the ids of the last reminder batch.
	Messages(ctx context.Context, groupID int64, tag, key string) ([]int, error)
	ReplaceMessages(ctx context.Context, groupID int64, tag, key string, messageIDs []int) error

	// DeleteOlderThan drops markers not touched since cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
