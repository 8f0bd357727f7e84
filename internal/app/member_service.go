package app

import (
	"context"
	"errors"
	"fmt"

	"clan_helper_bot/internal/domain/member"

	"github.com/sirupsen/logrus"
)

// MemberService keeps the member directory in sync with chat activity.
type MemberService struct {
	members member.Repository
	logger  *logrus.Entry
}

func NewMemberService(members member.Repository, logger *logrus.Entry) *MemberService {
	return &MemberService{members: members, logger: logger.WithField("component", "members")}
}

// Seen registers unknown senders and brings back members who were off or had left.
// Members who unregistered themselves stay out until they register again.
func (s *MemberService) Seen(ctx context.Context, m member.Member) error {
	existing, err := s.members.Get(ctx, m.GroupID, m.UserID)
	if err != nil && !errors.Is(err, member.ErrMemberNotFound) {
		return fmt.Errorf("lookup member: %w", err)
	}
	if err == nil && (existing.Status == member.StatusMember || existing.Status == member.StatusUnregistered) {
		return nil
	}
	m.Status = member.StatusMember
	if err := s.members.Upsert(ctx, &m); err != nil {
		return fmt.Errorf("register member: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"group_id": m.GroupID, "user_id": m.UserID}).Info("Member marked active")
	return nil
}

func (s *MemberService) Left(ctx context.Context, groupID, userID int64) error {
	if err := s.members.SetStatus(ctx, groupID, userID, member.StatusLeft); err != nil && !errors.Is(err, member.ErrMemberNotFound) {
		return fmt.Errorf("mark left: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"group_id": groupID, "user_id": userID}).Info("Member left")
	return nil
}

// GoOff puts a member on leave: reminded, never warned, until they post again.
func (s *MemberService) GoOff(ctx context.Context, groupID, userID int64) error {
	return s.members.SetStatus(ctx, groupID, userID, member.StatusOff)
}
