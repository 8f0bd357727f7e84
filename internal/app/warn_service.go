// internal/app/warn_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clan_helper_bot/internal/domain/attendance"
	"clan_helper_bot/internal/domain/botlog"
	"clan_helper_bot/internal/domain/collection"
	"clan_helper_bot/internal/domain/group"
	"clan_helper_bot/internal/domain/member"
	"clan_helper_bot/internal/domain/schedule"
	domainTelegram "clan_helper_bot/internal/domain/telegram"
	"clan_helper_bot/internal/domain/warn"

	"github.com/sirupsen/logrus"
)

// ReportThreshold is the lifetime warn total that puts a user into the report.
const ReportThreshold = 3

// WarnSummary counts warns newly issued by one evaluation, per reason.
type WarnSummary map[warn.Reason]int

type WarnService interface {
	// Evaluate applies the end-of-day rules for the day before now's local date.
	// Re-running it for the same local date issues nothing new.
	Evaluate(ctx context.Context, cfg *group.Config, loc *time.Location, now time.Time) (WarnSummary, error)
	// SendReport posts the offenders list once per local date.
	SendReport(ctx context.Context, cfg *group.Config, loc *time.Location, now time.Time) error
	ReportText(ctx context.Context, groupID int64) (string, error)
	UserWarns(ctx context.Context, groupID, userID int64) (int, error)
}

type WarnServiceImpl struct {
	attendance attendance.Repository
	members    member.Repository
	warns      warn.Repository
	markers    botlog.Repository
	client     domainTelegram.Client
	logger     *logrus.Entry
}

func NewWarnService(
	att attendance.Repository,
	members member.Repository,
	warns warn.Repository,
	markers botlog.Repository,
	client domainTelegram.Client,
	logger *logrus.Entry,
) *WarnServiceImpl {
	return &WarnServiceImpl{
		attendance: att,
		members:    members,
		warns:      warns,
		markers:    markers,
		client:     client,
		logger:     logger.WithField("component", "warns"),
	}
}

func (s *WarnServiceImpl) Evaluate(ctx context.Context, cfg *group.Config, loc *time.Location, now time.Time) (WarnSummary, error) {
	summary := WarnSummary{}
	log := s.logger.WithField("group_id", cfg.GroupID)

	yesterday := schedule.LocalDateOffset(loc, now, -1)
	dayBefore := schedule.LocalDateOffset(loc, now, -2)

	active, err := s.members.ActiveMembers(ctx, cfg.GroupID)
	if err != nil {
		return summary, fmt.Errorf("load members: %w", err)
	}

	// Weekly quota covers last Monday..Sunday and is judged on Mondays only.
	var weekly map[int64]int
	var period string
	normPoints := cfg.NormPoints
	if normPoints <= 0 {
		normPoints = group.DefaultNormPoints
	}
	if now.In(loc).Weekday() == time.Monday {
		from := schedule.LocalDateOffset(loc, now, -7)
		period = from + "_" + yesterday
		respondents, err := s.attendance.AnswersInRange(ctx, cfg.GroupID, from, yesterday)
		if err != nil {
			return summary, fmt.Errorf("weekly answers: %w", err)
		}
		weekly = make(map[int64]int, len(respondents))
		for _, r := range respondents {
			weekly[r.UserID] = attendance.TotalPoints(r.Answers)
		}
	}

	var errs []error
	for _, m := range active {
		// Members on leave are reminded but never warned.
		if m.Status != member.StatusMember {
			continue
		}
		if err := s.evaluateMember(ctx, cfg.GroupID, m.UserID, yesterday, dayBefore, weekly, period, normPoints, summary); err != nil {
			log.WithError(err).WithField("user_id", m.UserID).Error("Warn evaluation failed for member")
			errs = append(errs, err)
		}
	}

	if len(summary) > 0 {
		log.WithField("issued", summary).Info("Warns issued")
	}
	return summary, errors.Join(errs...)
}

func (s *WarnServiceImpl) evaluateMember(
	ctx context.Context,
	groupID, userID int64,
	yesterday, dayBefore string,
	weekly map[int64]int,
	period string,
	normPoints int,
	summary WarnSummary,
) error {
	yAnswers, err := s.attendance.UserAnswers(ctx, userID, groupID, yesterday)
	if err != nil {
		return fmt.Errorf("answers for %s: %w", yesterday, err)
	}

	playedClan := false
	for _, a := range yAnswers {
		if a.PollType == collection.BattleClan {
			playedClan = true
			break
		}
	}
	if !playedClan {
		if err := s.issue(ctx, groupID, userID, warn.ReasonNoKV, yesterday, summary); err != nil {
			return err
		}
	}

	if len(yAnswers) == 0 {
		bAnswers, err := s.attendance.UserAnswers(ctx, userID, groupID, dayBefore)
		if err != nil {
			return fmt.Errorf("answers for %s: %w", dayBefore, err)
		}
		if len(bAnswers) == 0 {
			already, err := s.warns.Exists(ctx, groupID, userID, warn.ReasonNoPlay2Days, []string{yesterday, dayBefore})
			if err != nil {
				return fmt.Errorf("check %s: %w", warn.ReasonNoPlay2Days, err)
			}
			if !already {
				if err := s.issue(ctx, groupID, userID, warn.ReasonNoPlay2Days, yesterday, summary); err != nil {
					return err
				}
			}
		}
	}

	if weekly != nil && weekly[userID] < normPoints {
		if err := s.issue(ctx, groupID, userID, warn.ReasonNoNorm, period, summary); err != nil {
			return err
		}
	}
	return nil
}

func (s *WarnServiceImpl) issue(ctx context.Context, groupID, userID int64, reason warn.Reason, key string, summary WarnSummary) error {
	n, err := s.warns.Issue(ctx, groupID, userID, reason, key, reason.Count())
	if err != nil {
		return fmt.Errorf("issue %s: %w", reason, err)
	}
	if n > 0 {
		summary[reason] += n
	}
	return nil
}

func (s *WarnServiceImpl) SendReport(ctx context.Context, cfg *group.Config, loc *time.Location, now time.Time) error {
	log := s.logger.WithField("group_id", cfg.GroupID)
	chatID, topicID, ok := cfg.ReportDestination()
	if !ok {
		log.Debug("No warn report destination configured")
		return nil
	}

	today := schedule.LocalDateString(loc, now)
	claimed, err := s.markers.MarkRun(ctx, cfg.GroupID, botlog.TagWarnReport, today)
	if err != nil {
		return fmt.Errorf("claim report marker: %w", err)
	}
	if !claimed {
		return nil
	}

	offenders, err := s.warns.Offenders(ctx, cfg.GroupID, ReportThreshold)
	if err != nil {
		s.unmark(ctx, cfg.GroupID, today)
		return fmt.Errorf("load offenders: %w", err)
	}
	if len(offenders) == 0 {
		log.Info("No users reached the warn threshold")
		return nil
	}

	text, err := s.formatReport(ctx, cfg.GroupID, offenders)
	if err != nil {
		s.unmark(ctx, cfg.GroupID, today)
		return err
	}
	if _, err := s.client.SendPlain(ctx, chatID, topicID, text); err != nil {
		s.unmark(ctx, cfg.GroupID, today)
		return fmt.Errorf("send warn report: %w", err)
	}
	log.WithFields(logrus.Fields{"report_chat_id": chatID, "offenders": len(offenders)}).Info("Warn report sent")
	return nil
}

func (s *WarnServiceImpl) unmark(ctx context.Context, groupID int64, date string) {
	if err := s.markers.Unmark(ctx, groupID, botlog.TagWarnReport, date); err != nil {
		s.logger.WithError(err).WithField("group_id", groupID).Warn("Failed to release warn report marker")
	}
}

func (s *WarnServiceImpl) ReportText(ctx context.Context, groupID int64) (string, error) {
	offenders, err := s.warns.Offenders(ctx, groupID, ReportThreshold)
	if err != nil {
		return "", fmt.Errorf("load offenders: %w", err)
	}
	if len(offenders) == 0 {
		return "✅ Нет пользователей с 3 и более варнами.", nil
	}
	return s.formatReport(ctx, groupID, offenders)
}

func (s *WarnServiceImpl) UserWarns(ctx context.Context, groupID, userID int64) (int, error) {
	return s.warns.CountForUser(ctx, groupID, userID)
}

func (s *WarnServiceImpl) formatReport(ctx context.Context, groupID int64, offenders []warn.Offender) (string, error) {
	ids := make([]int64, len(offenders))
	for i, o := range offenders {
		ids[i] = o.UserID
	}
	known, err := s.members.GetMany(ctx, groupID, ids)
	if err != nil {
		return "", fmt.Errorf("load offender names: %w", err)
	}
	byID := make(map[int64]member.Member, len(known))
	for _, m := range known {
		byID[m.UserID] = m
	}

	var b strings.Builder
	b.WriteString("⚠️ <b>Отчет о варнах</b>\n\n")
	fmt.Fprintf(&b, "📊 <b>Пользователей с 3+ варнами:</b> %d\n\n", len(offenders))
	for _, o := range offenders {
		m, ok := byID[o.UserID]
		if !ok {
			m = member.Member{UserID: o.UserID}
		}
		labels := make([]string, len(o.Reasons))
		for i, r := range o.Reasons {
			labels[i] = r.Label()
		}
		fmt.Fprintf(&b, "🔴 <b>%s</b>\n", plainName(m))
		fmt.Fprintf(&b, "   • Варнов: %d\n", o.Total)
		fmt.Fprintf(&b, "   • Причины: %s\n\n", strings.Join(labels, ", "))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
