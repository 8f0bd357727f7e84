package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"clan_helper_bot/internal/domain/attendance"
	"clan_helper_bot/internal/domain/botlog"
	"clan_helper_bot/internal/domain/collection"
	"clan_helper_bot/internal/domain/member"
	"clan_helper_bot/internal/domain/schedule"
	domainTelegram "clan_helper_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// ReminderService nags members who have not voted today. Every send replaces
// the previous reminder batch of the same topic.
type ReminderService interface {
	SendReminders(ctx context.Context, groupID int64, topicID int, loc *time.Location, now time.Time) error
}

type ReminderServiceImpl struct {
	attendance attendance.Repository
	members    member.Repository
	markers    botlog.Repository
	client     domainTelegram.Client
	logger     *logrus.Entry
}

func NewReminderService(att attendance.Repository, members member.Repository, markers botlog.Repository, client domainTelegram.Client, logger *logrus.Entry) *ReminderServiceImpl {
	return &ReminderServiceImpl{
		attendance: att,
		members:    members,
		markers:    markers,
		client:     client,
		logger:     logger.WithField("component", "reminders"),
	}
}

type missingVote struct {
	member member.Member
	clan   bool
	demon  bool
}

func (s *ReminderServiceImpl) SendReminders(ctx context.Context, groupID int64, topicID int, loc *time.Location, now time.Time) error {
	log := s.logger.WithFields(logrus.Fields{"group_id": groupID, "topic_id": topicID})
	clock := schedule.ClockAt(loc, now)

	missing, err := s.collectMissing(ctx, groupID, clock.Date)
	if err != nil {
		return err
	}

	key := strconv.Itoa(topicID)
	s.deleteOld(ctx, groupID, key, log)

	if len(missing) == 0 {
		log.Debug("Everyone voted, no reminder needed")
		return s.markers.ReplaceMessages(ctx, groupID, botlog.TagReminder, key, nil)
	}

	chunks := chunkMissing(missing, mentionBatchSize)
	sent := make([]int, 0, len(chunks))
	for i, chunk := range chunks {
		text := ""
		if i == 0 {
			text = fmt.Sprintf("⏳ До конца дня осталось: %s\n\n", timeLeftText(clock.MinutesUntilMidnight()))
		}
		text += formatMissing(chunk, i*mentionBatchSize)
		if i == len(chunks)-1 {
			text += "\n\nПожалуйста, отыграйте свои бои 💪"
		}

		id, err := s.client.SendPlain(ctx, groupID, topicID, text)
		if err != nil {
			// Keep what was sent so the next run can clean it up.
			if serr := s.markers.ReplaceMessages(ctx, groupID, botlog.TagReminder, key, sent); serr != nil {
				log.WithError(serr).Error("Failed to store partial reminder ids")
			}
			return fmt.Errorf("send reminder batch %d: %w", i, err)
		}
		sent = append(sent, id)
	}

	if err := s.markers.ReplaceMessages(ctx, groupID, botlog.TagReminder, key, sent); err != nil {
		return fmt.Errorf("store reminder ids: %w", err)
	}
	log.WithFields(logrus.Fields{"users": len(missing), "messages": len(sent)}).Info("Reminder sent")
	return nil
}

func (s *ReminderServiceImpl) collectMissing(ctx context.Context, groupID int64, date string) ([]missingVote, error) {
	missing := make(map[collection.BattleType]map[int64]bool, len(collection.BattleTypes))
	for _, bt := range collection.BattleTypes {
		users, err := s.attendance.NonResponders(ctx, groupID, bt, date)
		if err != nil {
			return nil, fmt.Errorf("non-responders for %s: %w", bt, err)
		}
		missing[bt] = make(map[int64]bool, len(users))
		for _, u := range users {
			missing[bt][u.UserID] = true
		}
	}

	active, err := s.members.ActiveMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("active members: %w", err)
	}
	return mergeMissing(active, missing[collection.BattleClan], missing[collection.BattleDemon]), nil
}

// mergeMissing lists the members missing a vote in directory order.
func mergeMissing(directory []member.Member, clan, demon map[int64]bool) []missingVote {
	var out []missingVote
	for _, m := range directory {
		mv := missingVote{member: m, clan: clan[m.UserID], demon: demon[m.UserID]}
		if mv.clan || mv.demon {
			out = append(out, mv)
		}
	}
	return out
}

func (s *ReminderServiceImpl) deleteOld(ctx context.Context, groupID int64, key string, log *logrus.Entry) {
	old, err := s.markers.Messages(ctx, groupID, botlog.TagReminder, key)
	if err != nil {
		log.WithError(err).Warn("Failed to load previous reminder ids")
		return
	}
	for _, id := range old {
		if err := s.client.DeleteMessage(ctx, groupID, id); err != nil {
			log.WithError(err).WithField("message_id", id).Debug("Old reminder already gone")
		}
	}
}

func chunkMissing(missing []missingVote, size int) [][]missingVote {
	var out [][]missingVote
	for start := 0; start < len(missing); start += size {
		end := min(start+size, len(missing))
		out = append(out, missing[start:end])
	}
	return out
}

func formatMissing(chunk []missingVote, offset int) string {
	text := ""
	for i, mv := range chunk {
		if i > 0 {
			text += "\n"
		}
		status := "— не отыгран клановый бой"
		switch {
		case mv.clan && mv.demon:
			status = "— не отыграны клановый и демонический бои"
		case mv.demon:
			status = "— не отыгран демонический бой"
		}
		text += fmt.Sprintf("%d. %s %s", offset+i+1, Mention(mv.member), status)
	}
	return text
}
