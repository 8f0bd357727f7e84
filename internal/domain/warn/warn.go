// internal/domain/warn/warn.go
package warn

import (
	"context"
	"time"
)

// Reason is the closed set of warn causes.
type Reason string

const (
	ReasonNoKV        Reason = "no_kv"
	ReasonNoPlay2Days Reason = "no_play_2days"
	ReasonNoNorm      Reason = "no_norm"
)

// Count is how many warns one violation of the reason issues.
func (r Reason) Count() int {
	switch r {
	case ReasonNoKV, ReasonNoNorm:
		return 2
	case ReasonNoPlay2Days:
		return 3
	}
	return 0
}

// Label is the human-readable reason used in reports.
func (r Reason) Label() string {
	switch r {
	case ReasonNoKV:
		return "Не сыграл КВ"
	case ReasonNoPlay2Days:
		return "Не играл 2 дня"
	case ReasonNoNorm:
		return "Не набрал норму"
	}
	return string(r)
}

// Warn is one penalty row. Key is the date, or "<from>_<to>" for weekly quota.
// Corresponds to the 'user_warns' table.
type Warn struct {
	ID        int64
	GroupID   int64
	UserID    int64
	Reason    Reason
	Key       string
	Seq       int
	CreatedAt time.Time
}

// Offender is a user whose lifetime warn total reached the report threshold.
type Offender struct {
	UserID  int64
	Total   int
	Reasons []Reason
}

// Repository persists warns.
type Repository interface {
	// Issue inserts rows seq=1..count for (group, user, reason, key) if absent and
	// returns how many were newly inserted.
	Issue(ctx context.Context, groupID, userID int64, reason Reason, key string, count int) (int, error)
	// Exists reports whether any warn with the reason is stored under one of keys.
	Exists(ctx context.Context, groupID, userID int64, reason Reason, keys []string) (bool, error)
	CountForUser(ctx context.Context, groupID, userID int64) (int, error)
	// Offenders lists users with at least minTotal lifetime warns, highest first.
	Offenders(ctx context.Context, groupID int64, minTotal int) ([]Offender, error)
}
