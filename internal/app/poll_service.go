package app

import (
	"context"
	"errors"
	"fmt"

	"clan_helper_bot/internal/domain/attendance"
	"clan_helper_bot/internal/domain/collection"
	"clan_helper_bot/internal/domain/member"
	domainTelegram "clan_helper_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// PollService posts the daily attendance polls and ingests the votes.
type PollService interface {
	// CreateDailyPolls posts any missing poll of the date for the group.
	// It returns how many polls were created.
	CreateDailyPolls(ctx context.Context, groupID int64, topicID int, date string) (int, error)
	// RecordAnswer stores a vote; an empty option list retracts it.
	RecordAnswer(ctx context.Context, telegramPollID string, voter member.Member, optionIDs []int) error
}

type PollServiceImpl struct {
	attendance attendance.Repository
	members    member.Repository
	client     domainTelegram.Client
	logger     *logrus.Entry
}

func NewPollService(att attendance.Repository, members member.Repository, client domainTelegram.Client, logger *logrus.Entry) *PollServiceImpl {
	return &PollServiceImpl{
		attendance: att,
		members:    members,
		client:     client,
		logger:     logger.WithField("component", "polls"),
	}
}

func (s *PollServiceImpl) CreateDailyPolls(ctx context.Context, groupID int64, topicID int, date string) (int, error) {
	created := 0
	for _, bt := range collection.BattleTypes {
		log := s.logger.WithFields(logrus.Fields{"group_id": groupID, "topic_id": topicID, "poll_type": bt, "date": date})

		exists, err := s.attendance.PollExists(ctx, groupID, bt, date)
		if err != nil {
			return created, fmt.Errorf("check %s poll: %w", bt, err)
		}
		if exists {
			log.Debug("Poll already exists for date")
			continue
		}

		pollID, messageID, err := s.client.SendPoll(ctx, groupID, topicID, attendance.PollQuestion(bt), attendance.PollOptions(bt))
		if err != nil {
			return created, fmt.Errorf("send %s poll: %w", bt, err)
		}

		poll := &attendance.Poll{
			GroupID:        groupID,
			TopicID:        topicID,
			PollType:       bt,
			PollDate:       date,
			TelegramPollID: pollID,
			MessageID:      messageID,
		}
		if err := s.attendance.CreatePoll(ctx, poll); err != nil {
			if errors.Is(err, attendance.ErrPollExists) {
				log.Warn("Poll was created concurrently, removing duplicate message")
				if derr := s.client.DeleteMessage(ctx, groupID, messageID); derr != nil {
					log.WithError(derr).Warn("Failed to delete duplicate poll message")
				}
				continue
			}
			return created, fmt.Errorf("store %s poll: %w", bt, err)
		}
		created++
		log.WithField("telegram_poll_id", pollID).Info("Daily poll created")
	}
	return created, nil
}

func (s *PollServiceImpl) RecordAnswer(ctx context.Context, telegramPollID string, voter member.Member, optionIDs []int) error {
	log := s.logger.WithFields(logrus.Fields{"telegram_poll_id": telegramPollID, "user_id": voter.UserID})

	poll, err := s.attendance.GetPollByTelegramID(ctx, telegramPollID)
	if err != nil {
		if errors.Is(err, attendance.ErrPollNotFound) {
			log.Debug("Answer for unknown poll ignored")
			return nil
		}
		return fmt.Errorf("lookup poll: %w", err)
	}

	voter.GroupID = poll.GroupID
	existing, err := s.members.Get(ctx, poll.GroupID, voter.UserID)
	switch {
	case errors.Is(err, member.ErrMemberNotFound) || (err == nil && existing.Status == member.StatusLeft):
		voter.Status = member.StatusMember
		if err := s.members.Upsert(ctx, &voter); err != nil {
			return fmt.Errorf("register voter: %w", err)
		}
		log.Info("Voter auto-registered")
	case err != nil:
		return fmt.Errorf("lookup voter: %w", err)
	}

	if len(optionIDs) == 0 {
		if err := s.attendance.DeleteAnswer(ctx, poll.ID, voter.UserID); err != nil {
			return fmt.Errorf("retract answer: %w", err)
		}
		log.Debug("Answer retracted")
		return nil
	}
	if err := s.attendance.SaveAnswer(ctx, poll.ID, voter.UserID, optionIDs); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	log.WithField("options", optionIDs).Debug("Answer saved")
	return nil
}
