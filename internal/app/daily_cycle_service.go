// internal/app/daily_cycle_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clan_helper_bot/internal/domain/botlog"
	"clan_helper_bot/internal/domain/group"
	"clan_helper_bot/internal/domain/schedule"

	"github.com/sirupsen/logrus"
)

// DailyCycleService is the per-minute check of the recurring daily jobs of every
// group against that group's local clock.
type DailyCycleService interface {
	Tick(ctx context.Context) error
}

type DailyCycleServiceImpl struct {
	groups      group.Repository
	markers     botlog.Repository
	polls       PollService
	leaderboard LeaderboardService
	reminders   ReminderService
	warns       WarnService
	logger      *logrus.Entry
	now         func() time.Time
}

func NewDailyCycleService(
	groups group.Repository,
	markers botlog.Repository,
	polls PollService,
	leaderboard LeaderboardService,
	reminders ReminderService,
	warns WarnService,
	logger *logrus.Entry,
	now func() time.Time,
) *DailyCycleServiceImpl {
	if now == nil {
		now = time.Now
	}
	return &DailyCycleServiceImpl{
		groups:      groups,
		markers:     markers,
		polls:       polls,
		leaderboard: leaderboard,
		reminders:   reminders,
		warns:       warns,
		logger:      logger.WithField("component", "daily_cycle"),
		now:         now,
	}
}

func (s *DailyCycleServiceImpl) Tick(ctx context.Context) error {
	now := s.now()
	groupIDs, err := s.groups.ListGroupIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	var errs []error
	for _, groupID := range groupIDs {
		if err := s.tickGroup(ctx, groupID, now); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *DailyCycleServiceImpl) tickGroup(ctx context.Context, groupID int64, now time.Time) error {
	log := s.logger.WithField("group_id", groupID)

	cfg, err := s.groups.GetConfig(ctx, groupID)
	if err != nil {
		if errors.Is(err, group.ErrGroupNotFound) {
			return nil
		}
		log.WithError(err).Error("Failed to load group config")
		return fmt.Errorf("group %d: %w", groupID, err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.WithError(err).Warn("Invalid group timezone, skipping daily jobs")
		return nil
	}
	clock := schedule.ClockAt(loc, now)

	var errs []error
	run := func(job string, fn func() error) {
		if err := fn(); err != nil {
			log.WithError(err).WithField("job", job).Error("Daily job failed")
			errs = append(errs, fmt.Errorf("group %d %s: %w", groupID, job, err))
		}
	}

	if clock.InMidnightWindow() {
		run("polls", func() error { return s.createPolls(ctx, cfg, clock) })
	}
	if clock.IsMidnight() {
		run("top", func() error { return s.sendTops(ctx, cfg, loc, now, clock) })
	}
	if IsReminderMinute(clock) {
		run("reminders", func() error { return s.sendReminders(ctx, cfg, loc, now) })
	}
	if clock.InMidnightWindow() && cfg.WarnsEnabled {
		run("warns", func() error {
			if _, err := s.warns.Evaluate(ctx, cfg, loc, now); err != nil {
				return err
			}
			return s.warns.SendReport(ctx, cfg, loc, now)
		})
	}
	return errors.Join(errs...)
}

// IsReminderMinute matches 22:00, 23:00 and 23:10..23:50 in ten minute steps.
func IsReminderMinute(c schedule.LocalClock) bool {
	switch c.Hour {
	case 22:
		return c.Minute == 0
	case 23:
		return c.Minute%10 == 0
	}
	return false
}

func (s *DailyCycleServiceImpl) createPolls(ctx context.Context, cfg *group.Config, clock schedule.LocalClock) error {
	for _, topic := range cfg.TopicsWith(group.FeaturePolls) {
		// One pair of polls per group and day; later topics find them existing.
		if _, err := s.polls.CreateDailyPolls(ctx, cfg.GroupID, topic.TopicID, clock.Date); err != nil {
			return fmt.Errorf("topic %d: %w", topic.TopicID, err)
		}
	}
	return nil
}

func (s *DailyCycleServiceImpl) sendTops(ctx context.Context, cfg *group.Config, loc *time.Location, now time.Time, clock schedule.LocalClock) error {
	topics := cfg.TopicsWith(group.FeatureTop)
	if len(topics) == 0 {
		return nil
	}
	yesterday := schedule.LocalDateOffset(loc, now, -1)

	claimed, err := s.markers.MarkRun(ctx, cfg.GroupID, botlog.TagDailyTop, yesterday)
	if err != nil {
		return fmt.Errorf("claim daily top: %w", err)
	}
	if !claimed {
		return nil
	}
	if err := s.eachTopic(topics, func(topicID int) error {
		return s.leaderboard.SendDailyTop(ctx, cfg.GroupID, topicID, yesterday)
	}); err != nil {
		s.unmark(ctx, cfg.GroupID, botlog.TagDailyTop, yesterday)
		return err
	}

	if clock.Weekday != time.Monday {
		return nil
	}
	from := schedule.LocalDateOffset(loc, now, -7)
	period := from + "_" + yesterday
	claimed, err = s.markers.MarkRun(ctx, cfg.GroupID, botlog.TagWeeklyTop, period)
	if err != nil {
		return fmt.Errorf("claim weekly top: %w", err)
	}
	if !claimed {
		return nil
	}
	if err := s.eachTopic(topics, func(topicID int) error {
		return s.leaderboard.SendWeeklyTop(ctx, cfg.GroupID, topicID, from, yesterday)
	}); err != nil {
		s.unmark(ctx, cfg.GroupID, botlog.TagWeeklyTop, period)
		return err
	}
	return nil
}

// eachTopic runs fn for every topic; it fails only when no topic succeeded.
func (s *DailyCycleServiceImpl) eachTopic(topics []group.TopicFeatures, fn func(topicID int) error) error {
	var errs []error
	for _, t := range topics {
		if err := fn(t.TopicID); err != nil {
			errs = append(errs, fmt.Errorf("topic %d: %w", t.TopicID, err))
		}
	}
	if len(errs) == len(topics) {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		s.logger.WithError(err).Warn("Leaderboard not delivered to topic")
	}
	return nil
}

func (s *DailyCycleServiceImpl) sendReminders(ctx context.Context, cfg *group.Config, loc *time.Location, now time.Time) error {
	var errs []error
	for _, topic := range cfg.TopicsWith(group.FeaturePolls) {
		if err := s.reminders.SendReminders(ctx, cfg.GroupID, topic.TopicID, loc, now); err != nil {
			errs = append(errs, fmt.Errorf("topic %d: %w", topic.TopicID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *DailyCycleServiceImpl) unmark(ctx context.Context, groupID int64, tag, key string) {
	if err := s.markers.Unmark(ctx, groupID, tag, key); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"group_id": groupID, "tag": tag}).Warn("Failed to release marker")
	}
}
