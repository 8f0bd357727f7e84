// internal/infra/telegram/member_handlers.go
package telegram

import (
	"context"
	"database/sql"
	"errors"
	"html"
	"strings"

	"clan_helper_bot/internal/app"
	"clan_helper_bot/internal/domain/member"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterMemberHandlers keeps the member directory in sync with chat activity
// and wires self-service registration.
func RegisterMemberHandlers(
	ctx context.Context,
	b *telebot.Bot,
	memberService *app.MemberService,
	registration *app.RegistrationService,
	baseLogger *logrus.Entry,
) {
	logger := baseLogger.WithField("handler_group", "members")

	seen := func(c telebot.Context) error {
		if !isGroupChat(c.Chat()) || c.Sender() == nil || c.Sender().IsBot {
			return nil
		}
		if isInactiveRequest(c.Text()) {
			return goInactive(ctx, c, registration, logger)
		}
		if err := memberService.Seen(ctx, memberFromUser(c.Chat().ID, c.Sender())); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{"chat_id": c.Chat().ID, "user_id": c.Sender().ID}).Error("Failed to track member")
		}
		return nil
	}
	for _, event := range []string{telebot.OnText, telebot.OnPhoto, telebot.OnSticker, telebot.OnVoice, telebot.OnVideo, telebot.OnAnimation} {
		b.Handle(event, seen)
	}

	b.Handle(telebot.OnUserJoined, func(c telebot.Context) error {
		m := c.Message()
		users := m.UsersJoined
		if len(users) == 0 && m.UserJoined != nil {
			users = []telebot.User{*m.UserJoined}
		}
		for i := range users {
			if users[i].IsBot {
				continue
			}
			if err := memberService.Seen(ctx, memberFromUser(c.Chat().ID, &users[i])); err != nil {
				logger.WithError(err).WithField("user_id", users[i].ID).Error("Failed to register joined member")
			}
		}
		return nil
	})

	b.Handle(telebot.OnUserLeft, func(c telebot.Context) error {
		left := c.Message().UserLeft
		if left == nil {
			return nil
		}
		if err := memberService.Left(ctx, c.Chat().ID, left.ID); err != nil {
			logger.WithError(err).WithField("user_id", left.ID).Error("Failed to mark member as left")
		}
		return nil
	})

	b.Handle(telebot.OnChatMember, func(c telebot.Context) error {
		upd := c.ChatMember()
		if upd == nil || upd.NewChatMember == nil || upd.NewChatMember.User == nil {
			return nil
		}
		u := upd.NewChatMember.User
		log := logger.WithFields(logrus.Fields{"chat_id": upd.Chat.ID, "user_id": u.ID})
		var err error
		switch upd.NewChatMember.Role {
		case telebot.Left, telebot.Kicked:
			err = memberService.Left(ctx, upd.Chat.ID, u.ID)
		case telebot.Member, telebot.Administrator, telebot.Creator:
			if u.IsBot {
				break
			}
			m := memberFromUser(upd.Chat.ID, u)
			if err = memberService.Seen(ctx, m); err == nil && joinedNow(upd) {
				if werr := registration.Welcome(ctx, m); werr != nil {
					log.WithError(werr).Warn("Failed to welcome member")
				}
			}
		}
		if err != nil {
			log.WithError(err).Error("Failed to apply membership change")
		}
		return nil
	})

	b.Handle("\f"+member.CallbackRegister, func(c telebot.Context) error {
		cb := c.Callback()
		log := logger.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "data": cb.Data})
		if cb.Message == nil || !isGroupChat(cb.Message.Chat) {
			return c.Respond(&telebot.CallbackResponse{Text: "❌ Ошибка: не удалось определить группу или пользователя"})
		}
		button, err := member.ParseRegistrationButton(cb.Data)
		if err != nil {
			log.WithError(err).Warn("Malformed registration payload")
			return c.Respond(&telebot.CallbackResponse{Text: "❌ Произошла ошибка при регистрации"})
		}
		reply, err := registration.Register(ctx, cb.Message.Chat.ID, cb.Message.ID, button, memberFromUser(cb.Message.Chat.ID, c.Sender()))
		if err != nil {
			log.WithError(err).Error("Failed to register member")
			return c.Respond(&telebot.CallbackResponse{Text: "❌ Произошла ошибка при регистрации"})
		}
		return c.Respond(&telebot.CallbackResponse{Text: reply, ShowAlert: true})
	})

	command := func(name string, fn func(c telebot.Context) (string, error)) {
		b.Handle(name, func(c telebot.Context) error {
			if !isGroupChat(c.Chat()) {
				return c.Send(replyForError(errNotInGroup))
			}
			reply, err := fn(c)
			if err != nil {
				logger.WithError(err).WithFields(logrus.Fields{"command": name, "sender_id": c.Sender().ID, "chat_id": c.Chat().ID}).Error("Command failed")
				return c.Send(replyForError(err))
			}
			if reply == "" {
				return nil
			}
			return c.Send(reply, &telebot.SendOptions{ParseMode: telebot.ModeHTML})
		})
	}

	command("/register", func(c telebot.Context) (string, error) {
		return "", registration.Prompt(ctx, TopicOf(c.Message()), memberFromUser(c.Chat().ID, c.Sender()))
	})
	command("/unregister", func(c telebot.Context) (string, error) {
		return registration.Unregister(ctx, c.Chat().ID, c.Sender().ID)
	})
	command("/unreg", func(c telebot.Context) (string, error) {
		return registration.GoInactive(ctx, c.Chat().ID, c.Sender().ID)
	})

	b.Handle("/registration", func(c telebot.Context) error {
		if !isGroupChat(c.Chat()) {
			return c.Send(replyForError(errNotInGroup))
		}
		log := logger.WithFields(logrus.Fields{"command": "/registration", "sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
		if _, err := registration.PostRegistration(ctx, c.Chat().ID, TopicOf(c.Message()), c.Sender().ID); err != nil {
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				log.Warn("Unauthorized access attempt")
			} else {
				log.WithError(err).Error("Failed to post registration message")
			}
			return c.Send(replyForError(err))
		}
		return nil
	})
}

// isInactiveRequest matches the bare-word "анрег" / "unreg" command.
func isInactiveRequest(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "анрег", "unreg":
		return true
	}
	return false
}

func goInactive(ctx context.Context, c telebot.Context, registration *app.RegistrationService, logger *logrus.Entry) error {
	reply, err := registration.GoInactive(ctx, c.Chat().ID, c.Sender().ID)
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{"chat_id": c.Chat().ID, "user_id": c.Sender().ID}).Error("Failed to put member on leave")
		return c.Send(replyForError(err))
	}
	return c.Reply(reply, &telebot.SendOptions{ParseMode: telebot.ModeHTML})
}

// joinedNow reports a transition from outside the chat into it.
func joinedNow(upd *telebot.ChatMemberUpdate) bool {
	if upd.OldChatMember == nil {
		return true
	}
	return upd.OldChatMember.Role == telebot.Left || upd.OldChatMember.Role == telebot.Kicked
}

func memberFromUser(groupID int64, u *telebot.User) member.Member {
	return member.Member{
		GroupID:   groupID,
		UserID:    u.ID,
		FirstName: u.FirstName,
		LastName:  sql.NullString{String: u.LastName, Valid: u.LastName != ""},
		Username:  sql.NullString{String: u.Username, Valid: u.Username != ""},
	}
}

func escape(s string) string {
	return html.EscapeString(s)
}
