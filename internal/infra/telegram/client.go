// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"clan_helper_bot/internal/domain/group"
	domainTelegram "clan_helper_bot/internal/domain/telegram"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the domain Client interface using the gopkg.in/telebot.v3 library.
// Every outbound call waits on a shared limiter to stay under the Bot API flood limits.
type TelebotAdapter struct {
	bot     *telebot.Bot
	limiter *rate.Limiter
}

func NewTelebotAdapter(b *telebot.Bot, perSecond float64) *TelebotAdapter {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &TelebotAdapter{bot: b, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

var _ domainTelegram.Client = (*TelebotAdapter)(nil)

// threadID maps a topic id to the message_thread_id Telegram expects.
// The general topic is addressed without a thread.
func threadID(topicID int) int {
	if topicID == group.GeneralTopicID {
		return 0
	}
	return topicID
}

// TopicOf is the inverse of threadID for an incoming message.
func TopicOf(m *telebot.Message) int {
	if m == nil || !m.TopicMessage || m.ThreadID == 0 {
		return group.GeneralTopicID
	}
	return m.ThreadID
}

func toMarkup(kb domainTelegram.Keyboard) *telebot.ReplyMarkup {
	if len(kb) == 0 {
		return nil
	}
	rm := &telebot.ReplyMarkup{}
	rows := make([]telebot.Row, 0, len(kb))
	for _, row := range kb {
		btns := make([]telebot.Btn, 0, len(row))
		for _, b := range row {
			btns = append(btns, rm.Data(b.Text, b.Unique, b.Data))
		}
		rows = append(rows, rm.Row(btns...))
	}
	rm.Inline(rows...)
	return rm
}

func (tba *TelebotAdapter) wait(ctx context.Context) error {
	if err := tba.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limiter: %w", err)
	}
	return nil
}

func (tba *TelebotAdapter) send(ctx context.Context, chatID int64, topicID int, what interface{}, kb domainTelegram.Keyboard) (*telebot.Message, error) {
	if err := tba.wait(ctx); err != nil {
		return nil, err
	}
	opts := &telebot.SendOptions{
		ParseMode:             telebot.ModeHTML,
		ThreadID:              threadID(topicID),
		DisableWebPagePreview: true,
	}
	if rm := toMarkup(kb); rm != nil {
		opts.ReplyMarkup = rm
	}
	return tba.bot.Send(&telebot.Chat{ID: chatID}, what, opts)
}

func (tba *TelebotAdapter) SendCallOut(ctx context.Context, chatID int64, topicID int, text string, kb domainTelegram.Keyboard) (int, error) {
	msg, err := tba.send(ctx, chatID, topicID, text, kb)
	if err != nil {
		return 0, fmt.Errorf("send call-out to %d/%d: %w", chatID, topicID, err)
	}
	return msg.ID, nil
}

func (tba *TelebotAdapter) SendPlain(ctx context.Context, chatID int64, topicID int, text string) (int, error) {
	msg, err := tba.send(ctx, chatID, topicID, text, nil)
	if err != nil {
		return 0, fmt.Errorf("send message to %d/%d: %w", chatID, topicID, err)
	}
	return msg.ID, nil
}

func (tba *TelebotAdapter) EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb domainTelegram.Keyboard) error {
	if err := tba.wait(ctx); err != nil {
		return err
	}
	stored := telebot.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	opts := &telebot.SendOptions{ParseMode: telebot.ModeHTML, DisableWebPagePreview: true}
	if rm := toMarkup(kb); rm != nil {
		opts.ReplyMarkup = rm
	}
	_, err := tba.bot.Edit(stored, text, opts)
	if err != nil && !errors.Is(err, telebot.ErrSameMessageContent) {
		return fmt.Errorf("edit message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

func (tba *TelebotAdapter) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := tba.wait(ctx); err != nil {
		return err
	}
	stored := telebot.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	if err := tba.bot.Delete(stored); err != nil {
		return fmt.Errorf("delete message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

func (tba *TelebotAdapter) PinMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := tba.wait(ctx); err != nil {
		return err
	}
	stored := telebot.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	if err := tba.bot.Pin(stored, telebot.Silent); err != nil {
		return fmt.Errorf("pin message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

func (tba *TelebotAdapter) SendPoll(ctx context.Context, chatID int64, topicID int, question string, options []string) (string, int, error) {
	poll := &telebot.Poll{
		Type:      telebot.PollRegular,
		Question:  question,
		Anonymous: false,
	}
	poll.AddOptions(options...)

	if err := tba.wait(ctx); err != nil {
		return "", 0, err
	}
	msg, err := tba.bot.Send(&telebot.Chat{ID: chatID}, poll, &telebot.SendOptions{ThreadID: threadID(topicID)})
	if err != nil {
		return "", 0, fmt.Errorf("send poll to %d/%d: %w", chatID, topicID, err)
	}
	if msg.Poll == nil {
		return "", 0, fmt.Errorf("send poll to %d/%d: response carries no poll", chatID, topicID)
	}
	return msg.Poll.ID, msg.ID, nil
}

func (tba *TelebotAdapter) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	if err := tba.wait(ctx); err != nil {
		return false, err
	}
	member, err := tba.bot.ChatMemberOf(&telebot.Chat{ID: chatID}, &telebot.User{ID: userID})
	if err != nil {
		return false, fmt.Errorf("get chat member %d in %d: %w", userID, chatID, err)
	}
	return member.Role == telebot.Creator || member.Role == telebot.Administrator, nil
}
