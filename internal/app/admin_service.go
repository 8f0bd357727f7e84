package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clan_helper_bot/internal/domain/group"
	"clan_helper_bot/internal/domain/schedule"
	domainTelegram "clan_helper_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// Application-level errors for group settings commands
var (
	ErrAdminNotAuthorized = errors.New("performing user is not a chat administrator")
	ErrInvalidInterval    = errors.New("interval must be between 0h0m and 24h0m")
	ErrInvalidTimezone    = errors.New("unknown IANA timezone")
	ErrInvalidFeature     = errors.New("unknown feature")
	ErrInvalidNorm        = errors.New("norm must be a positive number of points")
)

// AdminService applies group settings changes requested through chat commands.
// Every mutation requires the performing user to administer the target chat.
type AdminService struct {
	groups      group.Repository
	polls       PollService
	leaderboard LeaderboardService
	client      domainTelegram.Client
	logger      *logrus.Entry
	now         func() time.Time
}

func NewAdminService(
	groups group.Repository,
	polls PollService,
	leaderboard LeaderboardService,
	client domainTelegram.Client,
	logger *logrus.Entry,
	now func() time.Time,
) *AdminService {
	if now == nil {
		now = time.Now
	}
	return &AdminService{
		groups:      groups,
		polls:       polls,
		leaderboard: leaderboard,
		client:      client,
		logger:      logger.WithField("component", "admin"),
		now:         now,
	}
}

func (s *AdminService) authorize(ctx context.Context, chatID, userID int64) error {
	ok, err := s.client.IsChatAdmin(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to check admin rights: %w", err)
	}
	if !ok {
		return ErrAdminNotAuthorized
	}
	return nil
}

// SetInterval changes the collection interval; 0h0m switches collection off.
func (s *AdminService) SetInterval(ctx context.Context, groupID, adminID int64, hours, minutes int) error {
	if err := s.authorize(ctx, groupID, adminID); err != nil {
		return err
	}
	if hours < 0 || minutes < 0 || minutes > 59 || hours*60+minutes > 24*60 {
		return ErrInvalidInterval
	}
	if err := s.groups.SetInterval(ctx, groupID, hours, minutes); err != nil {
		return fmt.Errorf("failed to save interval: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"group_id": groupID, "hours": hours, "minutes": minutes}).Info("Collection interval changed")
	return nil
}

func (s *AdminService) SetTimezone(ctx context.Context, groupID, adminID int64, name string) error {
	if err := s.authorize(ctx, groupID, adminID); err != nil {
		return err
	}
	if name == "" {
		return ErrInvalidTimezone
	}
	if _, err := schedule.LoadLocation(name); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTimezone, name)
	}
	if err := s.groups.SetTimezone(ctx, groupID, name); err != nil {
		return fmt.Errorf("failed to save timezone: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"group_id": groupID, "timezone": name}).Info("Timezone changed")
	return nil
}

func (s *AdminService) SetFeature(ctx context.Context, groupID int64, topicID int, adminID int64, feature group.Feature, enabled bool) error {
	if err := s.authorize(ctx, groupID, adminID); err != nil {
		return err
	}
	if !feature.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidFeature, feature)
	}
	if err := s.groups.SetTopicFeature(ctx, groupID, topicID, feature, enabled); err != nil {
		return fmt.Errorf("failed to save feature: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"group_id": groupID,
		"topic_id": topicID,
		"feature":  feature,
		"enabled":  enabled,
	}).Info("Topic feature changed")
	return nil
}

// SetWarnReportDestination makes (reportChatID, reportTopicID) receive the warn
// reports of groupID. The admin must administer both chats.
func (s *AdminService) SetWarnReportDestination(ctx context.Context, groupID, adminID, reportChatID int64, reportTopicID int) error {
	if err := s.authorize(ctx, groupID, adminID); err != nil {
		return err
	}
	if reportChatID != groupID {
		if err := s.authorize(ctx, reportChatID, adminID); err != nil {
			return err
		}
	}
	if err := s.groups.SetWarnReportDestination(ctx, groupID, reportChatID, reportTopicID); err != nil {
		return fmt.Errorf("failed to save report destination: %w", err)
	}
	return nil
}

func (s *AdminService) SetNorm(ctx context.Context, groupID, adminID int64, points int) error {
	if err := s.authorize(ctx, groupID, adminID); err != nil {
		return err
	}
	if points <= 0 {
		return ErrInvalidNorm
	}
	return s.groups.SetNormPoints(ctx, groupID, points)
}

func (s *AdminService) SetWarnsEnabled(ctx context.Context, groupID, adminID int64, enabled bool) error {
	if err := s.authorize(ctx, groupID, adminID); err != nil {
		return err
	}
	return s.groups.SetWarnsEnabled(ctx, groupID, enabled)
}

// CreatePollsNow posts today's polls without waiting for midnight.
func (s *AdminService) CreatePollsNow(ctx context.Context, groupID int64, topicID int, adminID int64) (int, error) {
	if err := s.authorize(ctx, groupID, adminID); err != nil {
		return 0, err
	}
	loc, err := s.location(ctx, groupID)
	if err != nil {
		return 0, err
	}
	return s.polls.CreateDailyPolls(ctx, groupID, topicID, schedule.LocalDateString(loc, s.now()))
}

// TopText renders yesterday's daily top, or last week's when weekly is set.
func (s *AdminService) TopText(ctx context.Context, groupID int64, weekly bool) (string, error) {
	loc, err := s.location(ctx, groupID)
	if err != nil {
		return "", err
	}
	now := s.now()
	yesterday := schedule.LocalDateOffset(loc, now, -1)
	if weekly {
		return s.leaderboard.WeeklyTopText(ctx, groupID, schedule.LocalDateOffset(loc, now, -7), yesterday)
	}
	return s.leaderboard.DailyTopText(ctx, groupID, yesterday)
}

// RegisterTopic remembers a forum topic's name.
func (s *AdminService) RegisterTopic(ctx context.Context, groupID int64, topicID int, name string) error {
	return s.groups.UpsertTopic(ctx, groupID, topicID, name)
}

func (s *AdminService) location(ctx context.Context, groupID int64) (*time.Location, error) {
	cfg, err := s.groups.GetConfig(ctx, groupID)
	if err != nil {
		if errors.Is(err, group.ErrGroupNotFound) {
			return schedule.LoadLocation("")
		}
		return nil, err
	}
	return cfg.Location()
}
