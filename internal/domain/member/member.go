// internal/domain/member/member.go
package member

import (
	"context"
	"database/sql"
	"time"
)

// Status is a member's participation state inside a group.
type Status string

const (
	StatusMember Status = "member"
	StatusOff    Status = "off" // on leave: still reminded, not warned
	StatusLeft   Status = "left"

	// StatusUnregistered is set by the member; chat activity does not undo it.
	StatusUnregistered Status = "unregistered"
)

// Active reports whether the member is still expected to vote.
func (s Status) Active() bool {
	return s == StatusMember || s == StatusOff
}

// Member corresponds to the 'group_members' table.
type Member struct {
	GroupID   int64
	UserID    int64
	FirstName string
	LastName  sql.NullString
	Username  sql.NullString
	Status    Status
	JoinedAt  time.Time
	UpdatedAt time.Time
}

// Repository is the member directory.
type Repository interface {
	// ActiveMembers returns members with status member or off.
	ActiveMembers(ctx context.Context, groupID int64) ([]Member, error)
	// Upsert registers or refreshes a member, setting status to member.
	Upsert(ctx context.Context, m *Member) error
	SetStatus(ctx context.Context, groupID, userID int64, status Status) error
	Get(ctx context.Context, groupID, userID int64) (*Member, error)
	// GetMany returns the known members among userIDs; unknown ids are skipped.
	GetMany(ctx context.Context, groupID int64, userIDs []int64) ([]Member, error)
}
