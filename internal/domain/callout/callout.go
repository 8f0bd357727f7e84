package callout

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"time"

	"clan_helper_bot/internal/domain/collection"
)

var ErrCalloutNotFound = errors.New("callout not found")

// Callout is a roster of summoned members and who of them confirmed they are going.
// Corresponds to the 'callouts' table.
type Callout struct {
	ID         int64
	GroupID    int64
	TopicID    int
	BattleType collection.BattleType
	MessageID  sql.NullInt64 // roster message carrying the buttons
	Invited    []int64
	Going      []int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (c *Callout) IsInvited(userID int64) bool { return slices.Contains(c.Invited, userID) }

func (c *Callout) IsGoing(userID int64) bool { return slices.Contains(c.Going, userID) }

type Repository interface {
	// Create inserts the callout and fills in its ID.
	Create(ctx context.Context, c *Callout) error
	Get(ctx context.Context, id int64) (*Callout, error)
	SetMessageID(ctx context.Context, id int64, messageID int) error
	// AddGoing appends userID to the going list once; false means it was already there.
	AddGoing(ctx context.Context, id, userID int64) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
