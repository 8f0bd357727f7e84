package collection

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCallNotFound  = errors.New("collection call not found")
	ErrDuplicateCall = errors.New("active collection call already exists for this slot")
)

// Repository persists collection calls.
type Repository interface {
	// RecordCall inserts a pending call. It returns ErrDuplicateCall when a
	// non-cancelled call already holds the same (group, topic, battle, slot).
	RecordCall(ctx context.Context, call *Call) error
	// HasActiveCallNear reports whether a non-cancelled call exists whose
	// scheduled time lies within tolerance of expected.
	HasActiveCallNear(ctx context.Context, groupID int64, topicID int, battle BattleType, expected time.Time, tolerance time.Duration) (bool, error)
	// LatestCall returns the most recently updated call for (group, topic, battle type).
	LatestCall(ctx context.Context, groupID int64, topicID int, battle BattleType) (*Call, error)
	// UpdateStatus transitions the latest pending call for the key. Only that one
	// row is touched; ErrCallNotFound means nothing was pending.
	UpdateStatus(ctx context.Context, groupID int64, topicID int, battle BattleType, status Status, postponedUntil *time.Time) (*Call, error)
	// FindDuePostponed lists postponed calls with postponed_until <= now, earliest first.
	FindDuePostponed(ctx context.Context, now time.Time) ([]*Call, error)
	// ClaimPostponed flips a postponed call back to pending; false if another tick got it first.
	ClaimPostponed(ctx context.Context, id int64) (bool, error)
	// Repostpone puts a claimed call back into postponed state due at until.
	Repostpone(ctx context.Context, id int64, until time.Time) error
	SetMessageID(ctx context.Context, id int64, messageID int) error
	ListByMessage(ctx context.Context, groupID int64, messageID int) ([]*Call, error)
}
