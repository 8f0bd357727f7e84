package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"clan_helper_bot/internal/domain/attendance"
	"clan_helper_bot/internal/domain/member"
	"clan_helper_bot/internal/domain/schedule"
	domainTelegram "clan_helper_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// Standing is one leaderboard line.
type Standing struct {
	Member member.Member
	Points int
}

type LeaderboardService interface {
	// Standings ranks every respondent of [from, to] by total points.
	Standings(ctx context.Context, groupID int64, from, to string) ([]Standing, error)
	DailyTopText(ctx context.Context, groupID int64, date string) (string, error)
	WeeklyTopText(ctx context.Context, groupID int64, from, to string) (string, error)
	SendDailyTop(ctx context.Context, groupID int64, topicID int, date string) error
	SendWeeklyTop(ctx context.Context, groupID int64, topicID int, from, to string) error
}

type LeaderboardServiceImpl struct {
	attendance attendance.Repository
	members    member.Repository
	client     domainTelegram.Client
	logger     *logrus.Entry
}

func NewLeaderboardService(att attendance.Repository, members member.Repository, client domainTelegram.Client, logger *logrus.Entry) *LeaderboardServiceImpl {
	return &LeaderboardServiceImpl{
		attendance: att,
		members:    members,
		client:     client,
		logger:     logger.WithField("component", "leaderboard"),
	}
}

func (s *LeaderboardServiceImpl) Standings(ctx context.Context, groupID int64, from, to string) ([]Standing, error) {
	respondents, err := s.attendance.AnswersInRange(ctx, groupID, from, to)
	if err != nil {
		return nil, fmt.Errorf("answers %s..%s: %w", from, to, err)
	}
	if len(respondents) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(respondents))
	for i, r := range respondents {
		ids[i] = r.UserID
	}
	known, err := s.members.GetMany(ctx, groupID, ids)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	byID := make(map[int64]member.Member, len(known))
	for _, m := range known {
		byID[m.UserID] = m
	}

	standings := make([]Standing, 0, len(respondents))
	for _, r := range respondents {
		m, ok := byID[r.UserID]
		if !ok {
			m = member.Member{GroupID: groupID, UserID: r.UserID}
		}
		standings = append(standings, Standing{Member: m, Points: attendance.TotalPoints(r.Answers)})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].Points != standings[j].Points {
			return standings[i].Points > standings[j].Points
		}
		return standings[i].Member.UserID < standings[j].Member.UserID
	})
	return standings, nil
}

func (s *LeaderboardServiceImpl) DailyTopText(ctx context.Context, groupID int64, date string) (string, error) {
	standings, err := s.Standings(ctx, groupID, date, date)
	if err != nil {
		return "", err
	}
	header := fmt.Sprintf("🏆 <b>Топ за день %s</b>", humanDate(date))
	return formatStandings(header, standings, "Нет данных за этот день."), nil
}

func (s *LeaderboardServiceImpl) WeeklyTopText(ctx context.Context, groupID int64, from, to string) (string, error) {
	standings, err := s.Standings(ctx, groupID, from, to)
	if err != nil {
		return "", err
	}
	header := fmt.Sprintf("🏆 <b>Топ за неделю (%s - %s)</b>", humanDate(from), humanDate(to))
	return formatStandings(header, standings, "Нет данных за этот период."), nil
}

func (s *LeaderboardServiceImpl) SendDailyTop(ctx context.Context, groupID int64, topicID int, date string) error {
	text, err := s.DailyTopText(ctx, groupID, date)
	if err != nil {
		return err
	}
	if _, err := s.client.SendPlain(ctx, groupID, topicID, text); err != nil {
		return fmt.Errorf("send daily top: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"group_id": groupID, "topic_id": topicID, "date": date}).Info("Daily top sent")
	return nil
}

func (s *LeaderboardServiceImpl) SendWeeklyTop(ctx context.Context, groupID int64, topicID int, from, to string) error {
	text, err := s.WeeklyTopText(ctx, groupID, from, to)
	if err != nil {
		return err
	}
	if _, err := s.client.SendPlain(ctx, groupID, topicID, text); err != nil {
		return fmt.Errorf("send weekly top: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"group_id": groupID, "topic_id": topicID, "from": from, "to": to}).Info("Weekly top sent")
	return nil
}

func formatStandings(header string, standings []Standing, empty string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	if len(standings) == 0 {
		b.WriteString(empty)
		return b.String()
	}
	medals := []string{"🥇", "🥈", "🥉"}
	for i, st := range standings {
		place := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			place = medals[i]
		}
		fmt.Fprintf(&b, "%s %s — %d очков\n", place, plainName(st.Member), st.Points)
	}
	return b.String()
}

// humanDate renders a DateLayout date as dd.mm.yyyy.
func humanDate(date string) string {
	t, err := time.Parse(schedule.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("02.01.2006")
}
