package attendance

import (
	"context"
	"errors"
	"time"

	"clan_helper_bot/internal/domain/collection"
	"clan_helper_bot/internal/domain/member"
)

var (
	ErrPollNotFound = errors.New("poll not found")
	ErrPollExists   = errors.New("poll for this date already exists")
)

// Repository is the attendance ground truth shared by leaderboards,
// reminders, collection call-outs and warn evaluation.
type Repository interface {
	PollExists(ctx context.Context, groupID int64, pollType collection.BattleType, date string) (bool, error)
	// CreatePoll stores a sent poll; ErrPollExists when the date is already taken.
	CreatePoll(ctx context.Context, poll *Poll) error
	GetPollByTelegramID(ctx context.Context, telegramPollID string) (*Poll, error)

	SaveAnswer(ctx context.Context, pollID, userID int64, optionIDs []int) error
	DeleteAnswer(ctx context.Context, pollID, userID int64) error

	// NonResponders lists active members without an answer on the date's poll of
	// that type. When no poll exists for the date every active member is returned.
	NonResponders(ctx context.Context, groupID int64, pollType collection.BattleType, date string) ([]member.Member, error)
	UserAnswers(ctx context.Context, userID, groupID int64, date string) ([]Answer, error)
	// AnswersInRange returns every answer in [from, to] grouped by user.
	AnswersInRange(ctx context.Context, groupID int64, from, to string) ([]Respondent, error)

	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
