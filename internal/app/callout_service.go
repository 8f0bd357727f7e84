// internal/app/callout_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"clan_helper_bot/internal/domain/botlog"
	"clan_helper_bot/internal/domain/callout"
	"clan_helper_bot/internal/domain/collection"
	"clan_helper_bot/internal/domain/member"
	domainTelegram "clan_helper_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// readySeconds is the length of the countdown posted after "call ready".
const readySeconds = 10

var encouragements = []string{
	"💪 Удачи в битве!",
	"⚔️ Победы!",
	"🔥 Покажите свою мощь!",
	"🏆 Пусть победит сильнейший!",
	"💥 В бой!",
	"🚀 К победе!",
	"⭐ Сражайтесь достойно!",
}

// MentionRef is one mention in an admin message: a text mention carries the
// user id, a plain @mention only the username.
type MentionRef struct {
	UserID   int64
	Username string
}

// CalloutOpener posts a going roster for members that were just summoned.
type CalloutOpener interface {
	Open(ctx context.Context, groupID int64, topicID int, bt collection.BattleType, invited []member.Member) (*callout.Callout, error)
}

// CalloutService runs going rosters: who was summoned, who confirmed, and the
// readiness countdown for those who did.
type CalloutService interface {
	CalloutOpener
	// Summon resolves an admin's mentions to registered members, posts the
	// summons and opens a roster. It returns how many members were summoned.
	Summon(ctx context.Context, groupID int64, topicID int, adminID int64, bt collection.BattleType, mentions []MentionRef) (int, error)
	// HandleAction applies a roster button press and returns the callback answer.
	HandleAction(ctx context.Context, groupID, userID int64, action callout.Action) (string, error)
}

type CalloutServiceImpl struct {
	callouts callout.Repository
	members  member.Repository
	markers  botlog.Repository
	client   domainTelegram.Client
	logger   *logrus.Entry

	sleep func(ctx context.Context, d time.Duration) error
	spawn func(fn func())
}

func NewCalloutService(
	callouts callout.Repository,
	members member.Repository,
	markers botlog.Repository,
	client domainTelegram.Client,
	logger *logrus.Entry,
) *CalloutServiceImpl {
	return &CalloutServiceImpl{
		callouts: callouts,
		members:  members,
		markers:  markers,
		client:   client,
		logger:   logger.WithField("component", "callouts"),
		sleep:    sleepContext,
		spawn:    func(fn func()) { go fn() },
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *CalloutServiceImpl) Open(ctx context.Context, groupID int64, topicID int, bt collection.BattleType, invited []member.Member) (*callout.Callout, error) {
	if len(invited) == 0 {
		return nil, nil
	}
	c := &callout.Callout{GroupID: groupID, TopicID: topicID, BattleType: bt}
	for _, m := range invited {
		c.Invited = append(c.Invited, m.UserID)
	}
	if err := s.callouts.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create callout: %w", err)
	}

	msgID, err := s.client.SendCallOut(ctx, groupID, topicID, rosterText(bt, nil), rosterButtons(c.ID))
	if err != nil {
		return nil, fmt.Errorf("send roster: %w", err)
	}
	if err := s.callouts.SetMessageID(ctx, c.ID, msgID); err != nil {
		return nil, fmt.Errorf("store roster message id: %w", err)
	}
	c.MessageID.Int64, c.MessageID.Valid = int64(msgID), true

	s.logger.WithFields(logrus.Fields{
		"group_id":    groupID,
		"callout_id":  c.ID,
		"battle_type": bt,
		"invited":     len(invited),
	}).Info("Callout opened")
	return c, nil
}

func (s *CalloutServiceImpl) Summon(ctx context.Context, groupID int64, topicID int, adminID int64, bt collection.BattleType, mentions []MentionRef) (int, error) {
	ok, err := s.client.IsChatAdmin(ctx, groupID, adminID)
	if err != nil {
		return 0, fmt.Errorf("failed to check admin rights: %w", err)
	}
	if !ok {
		return 0, ErrAdminNotAuthorized
	}

	active, err := s.members.ActiveMembers(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("active members: %w", err)
	}
	invited := resolveMentions(active, mentions)
	if len(invited) == 0 {
		return 0, nil
	}

	if err := sendSummons(ctx, s.client, groupID, topicID, bt, invited); err != nil {
		return 0, err
	}
	if _, err := s.Open(ctx, groupID, topicID, bt, invited); err != nil {
		return 0, err
	}
	return len(invited), nil
}

// resolveMentions keeps registered members in mention order, once each.
func resolveMentions(active []member.Member, mentions []MentionRef) []member.Member {
	var out []member.Member
	seen := make(map[int64]bool)
	for _, ref := range mentions {
		username := strings.TrimPrefix(ref.Username, "@")
		for _, m := range active {
			if m.Status != member.StatusMember || seen[m.UserID] {
				continue
			}
			byID := ref.UserID != 0 && m.UserID == ref.UserID
			byName := ref.UserID == 0 && username != "" && m.Username.Valid && strings.EqualFold(m.Username.String, username)
			if byID || byName {
				seen[m.UserID] = true
				out = append(out, m)
				break
			}
		}
	}
	return out
}

func (s *CalloutServiceImpl) HandleAction(ctx context.Context, groupID, userID int64, action callout.Action) (string, error) {
	log := s.logger.WithFields(logrus.Fields{
		"group_id":   groupID,
		"user_id":    userID,
		"callout_id": action.CalloutID,
		"action":     action.Kind,
	})

	c, err := s.callouts.Get(ctx, action.CalloutID)
	if err != nil {
		if errors.Is(err, callout.ErrCalloutNotFound) {
			return "❌ Созыв не найден", nil
		}
		return "", err
	}
	if c.GroupID != groupID {
		log.Warn("Callout button pressed in a foreign chat")
		return "❌ Ошибка", nil
	}

	switch action.Kind {
	case callout.ActionGoing:
		return s.going(ctx, c, userID, log)
	case callout.ActionCallReady:
		return s.callReady(ctx, c, log)
	}
	return "", fmt.Errorf("unsupported callout action %q", action.Kind)
}

func (s *CalloutServiceImpl) going(ctx context.Context, c *callout.Callout, userID int64, log *logrus.Entry) (string, error) {
	if !c.IsInvited(userID) {
		return "❌ Вы не были призваны или уже отыграли это сражение", nil
	}
	if c.IsGoing(userID) {
		return "✅ Вы уже в списке!", nil
	}
	m, err := s.members.Get(ctx, c.GroupID, userID)
	if err != nil && !errors.Is(err, member.ErrMemberNotFound) {
		return "", fmt.Errorf("lookup member: %w", err)
	}
	if err != nil || m.Status != member.StatusMember {
		return "❌ Вы не зарегистрированы в группе", nil
	}

	added, err := s.callouts.AddGoing(ctx, c.ID, userID)
	if err != nil {
		return "", err
	}
	if !added {
		return "✅ Вы уже в списке!", nil
	}
	c.Going = append(c.Going, userID)
	log.Info("Member joined callout")

	if err := s.editRoster(ctx, c, rosterButtons(c.ID)); err != nil {
		log.WithError(err).Warn("Failed to refresh roster")
	}
	return "✅ Вы добавлены в список!", nil
}

func (s *CalloutServiceImpl) callReady(ctx context.Context, c *callout.Callout, log *logrus.Entry) (string, error) {
	if len(c.Going) == 0 {
		return "❌ Нет готовых участников", nil
	}
	claimed, err := s.markers.MarkRun(ctx, c.GroupID, botlog.TagCalloutReady, strconv.FormatInt(c.ID, 10))
	if err != nil {
		return "", err
	}
	if !claimed {
		return "📢 Готовые уже созваны", nil
	}

	if err := s.editRoster(ctx, c, nil); err != nil {
		log.WithError(err).Warn("Failed to close roster")
	}

	going, err := s.goingMembers(ctx, c)
	if err != nil {
		return "", err
	}
	for i, batch := range batches(going, mentionBatchSize) {
		text := fmt.Sprintf("⏳ Готовность %d секунд на %s!\n\n%s", readySeconds, battlePrepositional(c.BattleType), numberedList(batch, i*mentionBatchSize, Mention))
		if _, err := s.client.SendPlain(ctx, c.GroupID, c.TopicID, text); err != nil {
			return "", fmt.Errorf("send readiness batch %d: %w", i, err)
		}
	}
	log.WithField("going", len(going)).Info("Ready members called")

	s.spawn(func() { s.countdown(ctx, c.GroupID, c.TopicID, log) })
	return "📢 Созываю готовых...", nil
}

// countdown ticks one message from readySeconds down and ends on an encouragement.
func (s *CalloutServiceImpl) countdown(ctx context.Context, groupID int64, topicID int, log *logrus.Entry) {
	msgID, err := s.client.SendPlain(ctx, groupID, topicID, strconv.Itoa(readySeconds))
	if err != nil {
		log.WithError(err).Warn("Failed to start countdown")
		return
	}
	for left := readySeconds - 1; left >= 0; left-- {
		if err := s.sleep(ctx, time.Second); err != nil {
			return
		}
		text := strconv.Itoa(left)
		if left == 0 {
			text = encouragements[rand.Intn(len(encouragements))]
		}
		if err := s.client.EditMessage(ctx, groupID, msgID, text, nil); err != nil {
			log.WithError(err).Warn("Failed to update countdown")
		}
	}
}

func (s *CalloutServiceImpl) editRoster(ctx context.Context, c *callout.Callout, kb domainTelegram.Keyboard) error {
	if !c.MessageID.Valid {
		return nil
	}
	going, err := s.goingMembers(ctx, c)
	if err != nil {
		return err
	}
	return s.client.EditMessage(ctx, c.GroupID, int(c.MessageID.Int64), rosterText(c.BattleType, going), kb)
}

// goingMembers loads the going list in the order members confirmed.
func (s *CalloutServiceImpl) goingMembers(ctx context.Context, c *callout.Callout) ([]member.Member, error) {
	found, err := s.members.GetMany(ctx, c.GroupID, c.Going)
	if err != nil {
		return nil, fmt.Errorf("load going members: %w", err)
	}
	byID := make(map[int64]member.Member, len(found))
	for _, m := range found {
		byID[m.UserID] = m
	}
	out := make([]member.Member, 0, len(c.Going))
	for _, id := range c.Going {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func rosterText(bt collection.BattleType, going []member.Member) string {
	list := "(пусто)"
	if len(going) > 0 {
		list = numberedList(going, 0, plainName)
	}
	return fmt.Sprintf("✅ Если вы идёте на %s сражение — нажмите кнопку ниже\n\n👥 Участники:\n%s", battleShort(bt), list)
}

func rosterButtons(id int64) domainTelegram.Keyboard {
	return domainTelegram.Keyboard{
		{{Text: "Я иду!", Unique: callout.CallbackUnique, Data: callout.Action{Kind: callout.ActionGoing, CalloutID: id}.Payload()}},
		{{Text: "Созыв готовых", Unique: callout.CallbackUnique, Data: callout.Action{Kind: callout.ActionCallReady, CalloutID: id}.Payload()}},
	}
}

// sendSummons posts the announcement followed by mention batches.
func sendSummons(ctx context.Context, client domainTelegram.Client, groupID int64, topicID int, bt collection.BattleType, users []member.Member) error {
	if _, err := client.SendPlain(ctx, groupID, topicID, "📢 Созыв "+battleGenitive(bt)); err != nil {
		return fmt.Errorf("send announcement: %w", err)
	}
	for i, batch := range batches(users, mentionBatchSize) {
		text := fmt.Sprintf("📋 Сбор на %s сражение!\n\n%s", battleShort(bt), numberedList(batch, i*mentionBatchSize, Mention))
		if _, err := client.SendPlain(ctx, groupID, topicID, text); err != nil {
			return fmt.Errorf("send mention batch %d: %w", i, err)
		}
	}
	return nil
}
