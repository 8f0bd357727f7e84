package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"clan_helper_bot/internal/app"
	"clan_helper_bot/internal/domain/group"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

var (
	errUsage       = errors.New("invalid command usage")
	errNotInGroup  = errors.New("command is available in groups only")
	errSwitchValue = errors.New("expected on or off")
)

// RegisterAdminHandlers registers the group settings commands. Authorization is
// enforced by AdminService against the chat's administrator list.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, baseLogger *logrus.Entry) {
	handle := func(command string, fn func(c telebot.Context, log *logrus.Entry) error) {
		b.Handle(command, func(c telebot.Context) error {
			log := baseLogger.WithFields(logrus.Fields{
				"handler":   command,
				"sender_id": c.Sender().ID,
				"chat_id":   c.Chat().ID,
			})
			log.Info("Command received")
			if !isGroupChat(c.Chat()) {
				return c.Send(replyForError(errNotInGroup))
			}
			if err := fn(c, log); err != nil {
				if errors.Is(err, app.ErrAdminNotAuthorized) {
					log.Warn("Unauthorized access attempt")
				} else if !isUserError(err) {
					log.WithError(err).Error("Command failed")
				}
				return c.Send(replyForError(err))
			}
			return nil
		})
	}

	handle("/interval", func(c telebot.Context, log *logrus.Entry) error {
		hours, minutes, err := parseInterval(c.Args())
		if err != nil {
			return err
		}
		if err := adminService.SetInterval(ctx, c.Chat().ID, c.Sender().ID, hours, minutes); err != nil {
			return err
		}
		if hours == 0 && minutes == 0 {
			return c.Send("✅ Автоматический созыв выключен.")
		}
		return c.Send(fmt.Sprintf("✅ Интервал созыва: %d ч %d мин.", hours, minutes))
	})

	handle("/timezone", func(c telebot.Context, log *logrus.Entry) error {
		args := c.Args()
		if len(args) != 1 {
			return errUsage
		}
		if err := adminService.SetTimezone(ctx, c.Chat().ID, c.Sender().ID, args[0]); err != nil {
			return err
		}
		return c.Send(fmt.Sprintf("✅ Часовой пояс группы: %s", args[0]))
	})

	handle("/feature", func(c telebot.Context, log *logrus.Entry) error {
		args := c.Args()
		if len(args) != 2 {
			return errUsage
		}
		enabled, err := parseSwitch(args[1])
		if err != nil {
			return err
		}
		feature := group.Feature(strings.ToLower(args[0]))
		topicID := TopicOf(c.Message())
		if err := adminService.SetFeature(ctx, c.Chat().ID, topicID, c.Sender().ID, feature, enabled); err != nil {
			return err
		}
		return c.Send(fmt.Sprintf("✅ %s: %s в этом топике.", feature, onOffText(enabled)))
	})

	handle("/warn_report", func(c telebot.Context, log *logrus.Entry) error {
		// Without an argument the current chat reports on itself.
		sourceGroup := c.Chat().ID
		switch args := c.Args(); len(args) {
		case 0:
		case 1:
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errUsage
			}
			sourceGroup = id
		default:
			return errUsage
		}
		topicID := TopicOf(c.Message())
		if err := adminService.SetWarnReportDestination(ctx, sourceGroup, c.Sender().ID, c.Chat().ID, topicID); err != nil {
			return err
		}
		return c.Send(fmt.Sprintf("✅ Отчеты о варнах группы %d будут приходить сюда.", sourceGroup))
	})

	handle("/norm", func(c telebot.Context, log *logrus.Entry) error {
		args := c.Args()
		if len(args) != 1 {
			return errUsage
		}
		points, err := strconv.Atoi(args[0])
		if err != nil {
			return app.ErrInvalidNorm
		}
		if err := adminService.SetNorm(ctx, c.Chat().ID, c.Sender().ID, points); err != nil {
			return err
		}
		return c.Send(fmt.Sprintf("✅ Недельная норма: %d очков.", points))
	})

	handle("/warns_toggle", func(c telebot.Context, log *logrus.Entry) error {
		args := c.Args()
		if len(args) != 1 {
			return errUsage
		}
		enabled, err := parseSwitch(args[0])
		if err != nil {
			return err
		}
		if err := adminService.SetWarnsEnabled(ctx, c.Chat().ID, c.Sender().ID, enabled); err != nil {
			return err
		}
		return c.Send(fmt.Sprintf("✅ Варны: %s.", onOffText(enabled)))
	})

	handle("/polls", func(c telebot.Context, log *logrus.Entry) error {
		n, err := adminService.CreatePollsNow(ctx, c.Chat().ID, TopicOf(c.Message()), c.Sender().ID)
		if err != nil {
			return err
		}
		log.WithField("created", n).Info("Polls created on demand")
		if n == 0 {
			return c.Send("Опросы на сегодня уже созданы.")
		}
		return nil
	})

	handle("/top", func(c telebot.Context, log *logrus.Entry) error {
		weekly := false
		if args := c.Args(); len(args) > 0 {
			switch strings.ToLower(args[0]) {
			case "week", "неделя":
				weekly = true
			case "day", "день":
			default:
				return errUsage
			}
		}
		text, err := adminService.TopText(ctx, c.Chat().ID, weekly)
		if err != nil {
			return err
		}
		return c.Send(text, &telebot.SendOptions{ParseMode: telebot.ModeHTML})
	})
}

func isGroupChat(chat *telebot.Chat) bool {
	return chat != nil && (chat.Type == telebot.ChatGroup || chat.Type == telebot.ChatSuperGroup)
}

// parseInterval accepts "<hours> [minutes]".
func parseInterval(args []string) (int, int, error) {
	if len(args) < 1 || len(args) > 2 {
		return 0, 0, errUsage
	}
	hours, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, app.ErrInvalidInterval
	}
	minutes := 0
	if len(args) == 2 {
		if minutes, err = strconv.Atoi(args[1]); err != nil {
			return 0, 0, app.ErrInvalidInterval
		}
	}
	return hours, minutes, nil
}

func parseSwitch(arg string) (bool, error) {
	switch strings.ToLower(arg) {
	case "on", "вкл", "1", "true":
		return true, nil
	case "off", "выкл", "0", "false":
		return false, nil
	}
	return false, errSwitchValue
}

func onOffText(enabled bool) string {
	if enabled {
		return "включено"
	}
	return "выключено"
}

func isUserError(err error) bool {
	for _, target := range []error{
		errUsage, errNotInGroup, errSwitchValue,
		app.ErrInvalidInterval, app.ErrInvalidTimezone, app.ErrInvalidFeature, app.ErrInvalidNorm,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func replyForError(err error) string {
	switch {
	case errors.Is(err, app.ErrAdminNotAuthorized):
		return "Ошибка: команда доступна только администраторам группы."
	case errors.Is(err, errNotInGroup):
		return "Эта команда работает только в группе."
	case errors.Is(err, app.ErrInvalidInterval):
		return "Ошибка: интервал должен быть от 0 ч 0 мин до 24 ч 0 мин, минуты от 0 до 59."
	case errors.Is(err, app.ErrInvalidTimezone):
		return "Ошибка: неизвестный часовой пояс. Пример: Europe/Kiev"
	case errors.Is(err, app.ErrInvalidFeature):
		return "Ошибка: доступные функции: polls, top, collection."
	case errors.Is(err, app.ErrInvalidNorm):
		return "Ошибка: норма должна быть положительным числом."
	case errors.Is(err, errSwitchValue):
		return "Ошибка: укажите on или off."
	case errors.Is(err, errUsage):
		return "Неверный формат команды. Используйте /help."
	}
	return "Произошла ошибка. Попробуйте позже."
}
