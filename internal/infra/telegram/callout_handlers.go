// internal/infra/telegram/callout_handlers.go
package telegram

import (
	"context"
	"errors"
	"strings"

	"clan_helper_bot/internal/app"
	"clan_helper_bot/internal/domain/callout"
	"clan_helper_bot/internal/domain/collection"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterCalloutHandlers wires roster buttons and the manual /callout command.
func RegisterCalloutHandlers(ctx context.Context, b *telebot.Bot, calloutService app.CalloutService, baseLogger *logrus.Entry) {
	logger := baseLogger.WithField("handler_group", "callouts")

	b.Handle("\f"+callout.CallbackUnique, func(c telebot.Context) error {
		cb := c.Callback()
		log := logger.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "data": cb.Data})

		if cb.Message == nil || !isGroupChat(cb.Message.Chat) {
			return c.Respond(&telebot.CallbackResponse{Text: "❌ Эта функция доступна только в группах."})
		}
		action, err := callout.ParseAction(cb.Data)
		if err != nil {
			log.WithError(err).Warn("Malformed callout payload")
			return c.Respond(&telebot.CallbackResponse{Text: "❌ Ошибка: некорректный ID созыва"})
		}

		reply, err := calloutService.HandleAction(ctx, cb.Message.Chat.ID, c.Sender().ID, action)
		if err != nil {
			log.WithError(err).Error("Failed to apply callout action")
			return c.Respond(&telebot.CallbackResponse{Text: "❌ Произошла ошибка"})
		}
		return c.Respond(&telebot.CallbackResponse{Text: reply})
	})

	b.Handle("/callout", func(c telebot.Context) error {
		if !isGroupChat(c.Chat()) {
			return c.Send(replyForError(errNotInGroup))
		}
		log := logger.WithFields(logrus.Fields{"command": "/callout", "sender_id": c.Sender().ID, "chat_id": c.Chat().ID})

		bt, mentions := parseCalloutMessage(c.Message())
		if len(mentions) == 0 {
			return c.Send(replyForError(errUsage))
		}
		n, err := calloutService.Summon(ctx, c.Chat().ID, TopicOf(c.Message()), c.Sender().ID, bt, mentions)
		if err != nil {
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				log.Warn("Unauthorized access attempt")
			} else {
				log.WithError(err).Error("Failed to summon members")
			}
			return c.Send(replyForError(err))
		}
		if n == 0 {
			return c.Send("Никто из упомянутых не зарегистрирован в группе.")
		}
		log.WithField("summoned", n).Info("Manual callout posted")
		return nil
	})
}

// parseCalloutMessage reads "/callout [demon] @user ..." and text mentions.
// The battle type defaults to clan battles.
func parseCalloutMessage(m *telebot.Message) (collection.BattleType, []app.MentionRef) {
	bt := collection.BattleClan
	if fields := strings.Fields(m.Text); len(fields) > 1 {
		switch strings.ToLower(fields[1]) {
		case "demon", "демон", string(collection.BattleDemon):
			bt = collection.BattleDemon
		}
	}

	var refs []app.MentionRef
	for _, e := range m.Entities {
		switch e.Type {
		case telebot.EntityMention:
			refs = append(refs, app.MentionRef{Username: strings.TrimPrefix(m.EntityText(e), "@")})
		case telebot.EntityTMention:
			if e.User != nil {
				refs = append(refs, app.MentionRef{UserID: e.User.ID})
			}
		}
	}
	return bt, refs
}
