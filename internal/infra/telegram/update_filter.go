// internal/infra/telegram/update_filter.go
package telegram

import (
	"context"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// TopicRegistrar remembers forum topic names.
type TopicRegistrar interface {
	RegisterTopic(ctx context.Context, groupID int64, topicID int, name string) error
}

// UpdateFilter sits in front of the poller. It drops updates from chats outside
// the whitelist and records forum topic names, which carry no handler event of
// their own.
type UpdateFilter struct {
	allowed map[int64]bool
	topics  TopicRegistrar
	logger  *logrus.Entry
}

func NewUpdateFilter(allowedGroupIDs []int64, topics TopicRegistrar, logger *logrus.Entry) *UpdateFilter {
	f := &UpdateFilter{topics: topics, logger: logger.WithField("component", "update_filter")}
	if len(allowedGroupIDs) > 0 {
		f.allowed = make(map[int64]bool, len(allowedGroupIDs))
		for _, id := range allowedGroupIDs {
			f.allowed[id] = true
		}
	}
	return f
}

// Wrap returns a poller that applies Allow to every update.
func (f *UpdateFilter) Wrap(p telebot.Poller) telebot.Poller {
	return telebot.NewMiddlewarePoller(p, f.Allow)
}

// Allow reports whether the update should reach the handlers.
func (f *UpdateFilter) Allow(u *telebot.Update) bool {
	chat := updateChat(u)
	if chat != nil && chat.Type != telebot.ChatPrivate && !f.Allowed(chat.ID) {
		f.logger.WithField("chat_id", chat.ID).Debug("Update from non-whitelisted chat dropped")
		return false
	}

	if m := u.Message; m != nil && m.Chat != nil {
		if t := m.TopicCreated; t != nil {
			f.registerTopic(m.Chat.ID, m.ThreadID, t.Name)
		} else if t := m.TopicEdited; t != nil && t.Name != "" {
			f.registerTopic(m.Chat.ID, m.ThreadID, t.Name)
		}
	}
	return true
}

// Allowed reports whether the group may use the bot. An empty whitelist allows all.
func (f *UpdateFilter) Allowed(chatID int64) bool {
	return f.allowed == nil || f.allowed[chatID]
}

func (f *UpdateFilter) registerTopic(chatID int64, topicID int, name string) {
	if topicID == 0 {
		return
	}
	if err := f.topics.RegisterTopic(context.Background(), chatID, topicID, name); err != nil {
		f.logger.WithError(err).WithFields(logrus.Fields{"chat_id": chatID, "topic_id": topicID}).Warn("Failed to store topic name")
	}
}

func updateChat(u *telebot.Update) *telebot.Chat {
	switch {
	case u.Message != nil:
		return u.Message.Chat
	case u.Callback != nil && u.Callback.Message != nil:
		return u.Callback.Message.Chat
	case u.ChatMember != nil:
		return u.ChatMember.Chat
	}
	return nil
}
