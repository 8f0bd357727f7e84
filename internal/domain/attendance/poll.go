// internal/domain/attendance/poll.go
package attendance

import (
	"time"

	"clan_helper_bot/internal/domain/collection"
)

// Poll is one daily attendance poll. One per (group, battle type, local date).
// Corresponds to the 'polls' table.
type Poll struct {
	ID             int64
	GroupID        int64
	TopicID        int
	PollType       collection.BattleType
	PollDate       string // local calendar date, schedule.DateLayout
	TelegramPollID string
	MessageID      int
	CreatedAt      time.Time
}

// Answer is a single user's vote on one poll.
type Answer struct {
	PollID    int64
	UserID    int64
	PollType  collection.BattleType
	PollDate  string
	OptionIDs []int
	UpdatedAt time.Time
}

// Respondent is a user's answers over a date range, used for leaderboards.
type Respondent struct {
	UserID  int64
	Answers []Answer
}
