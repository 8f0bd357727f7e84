package collection

import (
	"database/sql"
	"time"
)

// Call is one firing attempt for (group, topic, battle type).
// Corresponds to the 'group_collection_calls' table.
type Call struct {
	ID             int64
	GroupID        int64
	TopicID        int
	BattleType     BattleType
	MessageID      sql.NullInt64 // Telegram message carrying the buttons
	Status         Status
	ScheduledTime  time.Time // slot boundary the call belongs to, not the send instant
	PostponedUntil sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
