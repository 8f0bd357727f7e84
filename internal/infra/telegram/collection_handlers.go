// internal/infra/telegram/collection_handlers.go
package telegram

import (
	"context"

	"clan_helper_bot/internal/app"
	"clan_helper_bot/internal/domain/collection"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterCollectionHandlers wires call-out buttons and poll answers.
func RegisterCollectionHandlers(
	ctx context.Context,
	b *telebot.Bot,
	collectionService app.CollectionService,
	pollService app.PollService,
	baseLogger *logrus.Entry,
) {
	logger := baseLogger.WithField("handler_group", "collection")

	b.Handle("\f"+collection.CallbackUnique, func(c telebot.Context) error {
		cb := c.Callback()
		log := logger.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "data": cb.Data})

		if cb.Message == nil || cb.Message.Chat == nil {
			return c.Respond(&telebot.CallbackResponse{Text: "Сообщение устарело."})
		}
		action, err := collection.ParseAction(cb.Data)
		if err != nil {
			log.WithError(err).Warn("Malformed collection payload")
			return c.Respond(&telebot.CallbackResponse{Text: "Ошибка обработки кнопки."})
		}

		reply, err := collectionService.HandleAction(ctx, cb.Message.Chat.ID, cb.Message.ID, action)
		if err != nil {
			log.WithError(err).Error("Failed to apply collection action")
			return c.Respond(&telebot.CallbackResponse{Text: "Произошла ошибка."})
		}
		return c.Respond(&telebot.CallbackResponse{Text: reply})
	})

	b.Handle(telebot.OnPollAnswer, func(c telebot.Context) error {
		pa := c.PollAnswer()
		if pa == nil || pa.Sender == nil {
			return nil
		}
		voter := memberFromUser(0, pa.Sender)
		if err := pollService.RecordAnswer(ctx, pa.PollID, voter, pa.Options); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"poll_id": pa.PollID,
				"user_id": pa.Sender.ID,
			}).Error("Failed to record poll answer")
		}
		return nil
	})
}
