// internal/app/collection_service.go
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

	"github.com/sirupsen/logrus"
)

const (
	// fireTolerance is how far from a slot boundary a tick may land and still fire.
	fireTolerance = 30 * time.Second
	// dedupTolerance bounds the scheduled_time match of an already recorded call.
	dedupTolerance = 60 * time.Second
	postponeDelay  = 10 * time.Minute

	staleCallReply = "❌ Созыв не найден или уже обработан"
)

// CollectionService decides when to post collection call-outs and drives the
// collect/postpone/cancel transitions of the resulting calls.
type CollectionService interface {
	// Tick runs the fire decision for every collection-enabled topic and re-fires
	// due postponed calls. Per-group failures are logged and joined into the result.
	Tick(ctx context.Context) error
	// HandleAction applies a button press and returns the text for the callback answer.
	HandleAction(ctx context.Context, groupID int64, messageID int, action collection.Action) (string, error)
}

type CollectionServiceImpl struct {
	groups     group.Repository
	calls      collection.Repository
	attendance attendance.Repository
	markers    botlog.Repository
	callouts   CalloutOpener
	client     domainTelegram.Client
	logger     *logrus.Entry
	now        func() time.Time
}

func NewCollectionService(
	groups group.Repository,
	calls collection.Repository,
	att attendance.Repository,
	markers botlog.Repository,
	callouts CalloutOpener,
	client domainTelegram.Client,
	logger *logrus.Entry,
	now func() time.Time,
) *CollectionServiceImpl {
	if now == nil {
		now = time.Now
	}
	return &CollectionServiceImpl{
		groups:     groups,
		calls:      calls,
		attendance: att,
		markers:    markers,
		callouts:   callouts,
		client:     client,
		logger:     logger.WithField("component", "collection"),
		now:        now,
	}
}

func (s *CollectionServiceImpl) Tick(ctx context.Context) error {
	now := s.now()
	var errs []error

	groupIDs, err := s.groups.ListGroupIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	for _, groupID := range groupIDs {
		if err := s.tickGroup(ctx, groupID, now); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.refirePostponed(ctx, now); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *CollectionServiceImpl) tickGroup(ctx context.Context, groupID int64, now time.Time) error {
	log := s.logger.WithField("group_id", groupID)

	cfg, err := s.groups.GetConfig(ctx, groupID)
	if err != nil {
		if errors.Is(err, group.ErrGroupNotFound) {
			return nil
		}
		log.WithError(err).Error("Failed to load group config")
		return fmt.Errorf("group %d: %w", groupID, err)
	}
	if cfg.IntervalMinutes() <= 0 {
		return nil
	}
	loc, err := cfg.Location()
	if err != nil {
		log.WithError(err).Warn("Invalid group timezone, skipping collection")
		return nil
	}

	var errs []error
	for _, topic := range cfg.TopicsWith(group.FeatureCollection) {
		if err := s.fireTopic(ctx, cfg, loc, topic.TopicID, now); err != nil {
			log.WithError(err).WithField("topic_id", topic.TopicID).Error("Collection fire failed")
			errs = append(errs, fmt.Errorf("group %d topic %d: %w", groupID, topic.TopicID, err))
		}
	}
	return errors.Join(errs...)
}

// fireTopic posts the unified call-out for (group, topic) when the tick falls
// inside the fire window of the current slot and nothing has handled it yet.
func (s *CollectionServiceImpl) fireTopic(ctx context.Context, cfg *group.Config, loc *time.Location, topicID int, now time.Time) error {
	interval := cfg.Interval()
	log := s.logger.WithFields(logrus.Fields{"group_id": cfg.GroupID, "topic_id": topicID})

	// A tick up to fireTolerance before a boundary belongs to that boundary's slot.
	slot, err := schedule.NextExpectedTrigger(interval, loc, now.Add(fireTolerance))
	if err != nil {
		return err
	}
	if !schedule.IsWithinFireWindow(slot, now, fireTolerance) {
		if now.Sub(slot) > fireTolerance && now.Sub(slot) < fireTolerance+time.Minute {
			log.WithField("slot", slot).Debug("Missed fire window, waiting for next slot")
		}
		return nil
	}

	handled := 0
	for _, bt := range collection.BattleTypes {
		ok, err := s.calls.HasActiveCallNear(ctx, cfg.GroupID, topicID, bt, slot, dedupTolerance)
		if err != nil {
			return fmt.Errorf("dedup check for %s: %w", bt, err)
		}
		if ok {
			handled++
		}
	}
	if handled == len(collection.BattleTypes) {
		log.WithField("slot", slot).Debug("Slot already handled")
		return nil
	}

	// A cancellation of either battle type holds the whole topic until its interval ends.
	for _, bt := range collection.BattleTypes {
		latest, err := s.calls.LatestCall(ctx, cfg.GroupID, topicID, bt)
		if err != nil && !errors.Is(err, collection.ErrCallNotFound) {
			return fmt.Errorf("latest %s call lookup: %w", bt, err)
		}
		if latest != nil && latest.Status == collection.StatusCancelled && now.Before(latest.UpdatedAt.Add(interval)) {
			log.WithFields(logrus.Fields{"battle_type": bt, "cancelled_at": latest.UpdatedAt}).
				Debug("Collection cancelled within the interval, skipping")
			return nil
		}
	}

	slotKey := fmt.Sprintf("%d|%s", topicID, slot.UTC().Format(time.RFC3339))
	claimed, err := s.markers.MarkRun(ctx, cfg.GroupID, botlog.TagCollectionSlot, slotKey)
	if err != nil {
		return fmt.Errorf("claim slot: %w", err)
	}
	if !claimed {
		log.WithField("slot", slot).Debug("Slot claimed by another tick")
		return nil
	}

	today := schedule.LocalDateString(loc, now)
	missing := make(map[collection.BattleType][]member.Member, len(collection.BattleTypes))
	for _, bt := range collection.BattleTypes {
		users, err := s.attendance.NonResponders(ctx, cfg.GroupID, bt, today)
		if err != nil {
			s.releaseSlot(ctx, cfg.GroupID, slotKey)
			return fmt.Errorf("non-responders for %s: %w", bt, err)
		}
		missing[bt] = users
	}

	var sections []string
	var kb domainTelegram.Keyboard
	var toRecord []collection.BattleType
	for _, bt := range collection.BattleTypes {
		sections = append(sections, pendingSection(bt, missing[bt]))
		if len(missing[bt]) > 0 {
			kb = append(kb, callButtons(topicID, bt)...)
			toRecord = append(toRecord, bt)
		}
	}

	messageID, err := s.client.SendCallOut(ctx, cfg.GroupID, topicID, strings.Join(sections, "\n\n"), kb)
	if err != nil {
		s.releaseSlot(ctx, cfg.GroupID, slotKey)
		return fmt.Errorf("send call-out: %w", err)
	}

	for _, bt := range toRecord {
		call := &collection.Call{
			GroupID:       cfg.GroupID,
			TopicID:       topicID,
			BattleType:    bt,
			Status:        collection.StatusPending,
			ScheduledTime: slot,
		}
		call.MessageID.Int64, call.MessageID.Valid = int64(messageID), true
		if err := s.calls.RecordCall(ctx, call); err != nil {
			if errors.Is(err, collection.ErrDuplicateCall) {
				log.WithField("battle_type", bt).Warn("Call for this slot already recorded")
				continue
			}
			return fmt.Errorf("record %s call: %w", bt, err)
		}
	}

	log.WithFields(logrus.Fields{
		"slot":       slot,
		"message_id": messageID,
		"recorded":   len(toRecord),
	}).Info("Collection call-out sent")
	return nil
}

func (s *CollectionServiceImpl) releaseSlot(ctx context.Context, groupID int64, slotKey string) {
	if err := s.markers.Unmark(ctx, groupID, botlog.TagCollectionSlot, slotKey); err != nil {
		s.logger.WithError(err).WithField("group_id", groupID).Warn("Failed to release slot claim")
	}
}

// refirePostponed re-sends each due postponed call exactly once and returns it
// to pending. A failed send puts the call back, due immediately.
func (s *CollectionServiceImpl) refirePostponed(ctx context.Context, now time.Time) error {
	due, err := s.calls.FindDuePostponed(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list postponed calls: %w", err)
	}

	var errs []error
	for _, call := range due {
		log := s.logger.WithFields(logrus.Fields{
			"group_id":    call.GroupID,
			"topic_id":    call.TopicID,
			"battle_type": call.BattleType,
			"call_id":     call.ID,
		})

		claimed, err := s.calls.ClaimPostponed(ctx, call.ID)
		if err != nil {
			log.WithError(err).Error("Failed to claim postponed call")
			errs = append(errs, err)
			continue
		}
		if !claimed {
			continue
		}

		if err := s.resendCall(ctx, call, now); err != nil {
			log.WithError(err).Error("Postponed call re-fire failed")
			if rerr := s.calls.Repostpone(ctx, call.ID, now); rerr != nil {
				log.WithError(rerr).Error("Failed to restore postponed state")
			}
			errs = append(errs, fmt.Errorf("call %d: %w", call.ID, err))
			continue
		}
		log.Info("Postponed call re-fired")
	}
	return errors.Join(errs...)
}

func (s *CollectionServiceImpl) resendCall(ctx context.Context, call *collection.Call, now time.Time) error {
	loc := s.groupLocation(ctx, call.GroupID)
	users, err := s.attendance.NonResponders(ctx, call.GroupID, call.BattleType, schedule.LocalDateString(loc, now))
	if err != nil {
		return fmt.Errorf("non-responders: %w", err)
	}

	messageID, err := s.client.SendCallOut(ctx, call.GroupID, call.TopicID,
		pendingSection(call.BattleType, users), callButtons(call.TopicID, call.BattleType))
	if err != nil {
		return fmt.Errorf("send call-out: %w", err)
	}
	if err := s.calls.SetMessageID(ctx, call.ID, messageID); err != nil {
		return fmt.Errorf("store message id: %w", err)
	}
	return nil
}

func (s *CollectionServiceImpl) HandleAction(ctx context.Context, groupID int64, messageID int, action collection.Action) (string, error) {
	now := s.now()
	log := s.logger.WithFields(logrus.Fields{
		"group_id":    groupID,
		"topic_id":    action.TopicID,
		"battle_type": action.BattleType,
		"action":      action.Kind,
	})

	var (
		status collection.Status
		until  *time.Time
		reply  string
	)
	switch action.Kind {
	case collection.ActionCollect:
		status, reply = collection.StatusCollected, "✅ Группа собрана!"
	case collection.ActionPostpone:
		t := now.Add(postponeDelay)
		status, until, reply = collection.StatusPostponed, &t, "⏰ Перенесено на 10 минут"
	case collection.ActionCancel:
		status, reply = collection.StatusCancelled, "❌ Созыв отменен"
	default:
		return "", fmt.Errorf("unsupported collection action %q", action.Kind)
	}

	// A button on a finished call must not reach a newer pending call of the same key.
	attached, err := s.calls.ListByMessage(ctx, groupID, messageID)
	if err != nil {
		return "", fmt.Errorf("load calls of message: %w", err)
	}
	for _, c := range attached {
		if c.BattleType == action.BattleType && c.Status.Terminal() {
			log.WithFields(logrus.Fields{"call_id": c.ID, "status": c.Status}).Info("Button pressed on a finished call")
			return staleCallReply, nil
		}
	}

	call, err := s.calls.UpdateStatus(ctx, groupID, action.TopicID, action.BattleType, status, until)
	if err != nil {
		if errors.Is(err, collection.ErrCallNotFound) {
			log.Warn("No pending call for button press")
			return staleCallReply, nil
		}
		return "", fmt.Errorf("update call status: %w", err)
	}
	log.WithField("call_id", call.ID).Info("Collection call updated")

	loc := s.groupLocation(ctx, groupID)
	if action.Kind == collection.ActionCollect {
		if err := s.summon(ctx, groupID, action.TopicID, action.BattleType, schedule.LocalDateString(loc, now)); err != nil {
			log.WithError(err).Error("Failed to send collect mentions")
		}
	}

	target := messageID
	if call.MessageID.Valid {
		target = int(call.MessageID.Int64)
	}
	if err := s.refreshMessage(ctx, groupID, target, loc, now); err != nil {
		log.WithError(err).WithField("message_id", target).Warn("Failed to refresh call-out message")
	}
	return reply, nil
}

// summon mentions the non-responders of a collected call and opens a going
// roster for them.
func (s *CollectionServiceImpl) summon(ctx context.Context, groupID int64, topicID int, bt collection.BattleType, date string) error {
	users, err := s.attendance.NonResponders(ctx, groupID, bt, date)
	if err != nil {
		return fmt.Errorf("non-responders: %w", err)
	}
	if len(users) == 0 {
		return nil
	}
	if err := sendSummons(ctx, s.client, groupID, topicID, bt, users); err != nil {
		return err
	}
	if _, err := s.callouts.Open(ctx, groupID, topicID, bt, users); err != nil {
		return fmt.Errorf("open roster: %w", err)
	}
	return nil
}

// refreshMessage re-renders a call-out from the calls attached to it. Buttons
// stay only for calls that are still pending.
func (s *CollectionServiceImpl) refreshMessage(ctx context.Context, groupID int64, messageID int, loc *time.Location, now time.Time) error {
	calls, err := s.calls.ListByMessage(ctx, groupID, messageID)
	if err != nil {
		return err
	}
	if len(calls) == 0 {
		return nil
	}

	byType := make(map[collection.BattleType]*collection.Call, len(calls))
	for _, c := range calls {
		byType[c.BattleType] = c
	}

	var sections []string
	var kb domainTelegram.Keyboard
	for _, bt := range collection.BattleTypes {
		c, ok := byType[bt]
		if !ok {
			continue
		}
		switch c.Status {
		case collection.StatusPending:
			users, err := s.attendance.NonResponders(ctx, groupID, bt, schedule.LocalDateString(loc, now))
			if err != nil {
				return err
			}
			sections = append(sections, pendingSection(bt, users))
			kb = append(kb, callButtons(c.TopicID, bt)...)
		case collection.StatusCollected:
			sections = append(sections, fmt.Sprintf("✅ <b>Группа на %s собрана</b>", battleAccusative(bt)))
		case collection.StatusPostponed:
			at := now.Add(postponeDelay)
			if c.PostponedUntil.Valid {
				at = c.PostponedUntil.Time
			}
			sections = append(sections, fmt.Sprintf("⏰ <b>Созыв на %s перенесен на 10 минут</b>\n\nНовое время: %s",
				battleAccusative(bt), at.In(loc).Format("15:04")))
		case collection.StatusCancelled:
			sections = append(sections, fmt.Sprintf("❌ <b>Созыв на %s отменен</b>\n\nСледующий созыв будет через установленный интервал.",
				battleAccusative(bt)))
		}
	}
	return s.client.EditMessage(ctx, groupID, messageID, strings.Join(sections, "\n\n"), kb)
}

func (s *CollectionServiceImpl) groupLocation(ctx context.Context, groupID int64) *time.Location {
	cfg, err := s.groups.GetConfig(ctx, groupID)
	if err == nil {
		if loc, lerr := cfg.Location(); lerr == nil {
			return loc
		}
	}
	loc, _ := schedule.LoadLocation("")
	return loc
}

func pendingSection(bt collection.BattleType, users []member.Member) string {
	if len(users) == 0 {
		return battleHeader(bt) + "\n\n✅ Все отметились!"
	}
	return fmt.Sprintf("%s\n\n📋 <b>Не отметились (%d):</b>\n\n%s",
		battleHeader(bt), len(users), numberedList(users, 0, plainName))
}

func callButtons(topicID int, bt collection.BattleType) domainTelegram.Keyboard {
	icon := "⚔️"
	if bt == collection.BattleDemon {
		icon = "🔥"
	}
	button := func(kind collection.ActionKind, text string) domainTelegram.Button {
		a := collection.Action{Kind: kind, TopicID: topicID, BattleType: bt}
		return domainTelegram.Button{Text: text, Unique: collection.CallbackUnique, Data: a.Payload()}
	}
	return domainTelegram.Keyboard{
		{button(collection.ActionCollect, icon+" ✅ Собрать")},
		{button(collection.ActionPostpone, icon+" ⏰ Перенос на 10 минут"), button(collection.ActionCancel, icon+" ❌ Отменить")},
	}
}
