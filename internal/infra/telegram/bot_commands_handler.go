// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"fmt"
	"strings"

	"clan_helper_bot/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const helpText = `<b>Команды бота</b>

<b>Для всех:</b>
/warns - сколько у вас варнов
/register - зарегистрироваться в системе бота
/unregister - отменить регистрацию
/unreg или «анрег» - стать неактивным (напоминания остаются, варны не начисляются)
/off - уйти в отпуск (напоминания остаются, варны не начисляются)
/top [day|week] - топ за вчера или за прошлую неделю
/help - это сообщение

<b>Для администраторов группы:</b>
/interval &lt;часы&gt; [минуты] - интервал автосозыва, 0 0 выключает
/timezone &lt;IANA&gt; - часовой пояс группы, например Europe/Kiev
/feature &lt;polls|top|collection&gt; &lt;on|off&gt; - функции текущего топика
/polls - создать опросы на сегодня сейчас
/norm &lt;очки&gt; - недельная норма очков
/warns_toggle &lt;on|off&gt; - включить или выключить варны
/warn_report [id группы] - присылать отчеты о варнах в этот топик
/registration - закрепить сообщение с кнопкой регистрации
/callout [demon] @ник ... - созвать упомянутых участников`

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	warnService app.WarnService,
	memberService *app.MemberService,
	baseLogger *logrus.Entry,
) {
	logger := baseLogger.WithField("handler_group", "commands")

	b.Handle("/start", func(c telebot.Context) error {
		logger.WithField("sender_id", c.Sender().ID).Info("Processing /start command")
		if isGroupChat(c.Chat()) {
			return c.Send("Привет! Я помогаю клану: опросы, топы, созывы и варны. /help - список команд.")
		}
		return c.Send("Привет! Добавьте меня в группу клана и выдайте права администратора. /help - список команд.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		return c.Send(helpText, &telebot.SendOptions{ParseMode: telebot.ModeHTML})
	})

	b.Handle("/warns", func(c telebot.Context) error {
		if !isGroupChat(c.Chat()) {
			return c.Send(replyForError(errNotInGroup))
		}
		log := logger.WithFields(logrus.Fields{"command": "/warns", "sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
		n, err := warnService.UserWarns(ctx, c.Chat().ID, c.Sender().ID)
		if err != nil {
			log.WithError(err).Error("Failed to count warns")
			return c.Send(replyForError(err))
		}
		return c.Send(warnCountText(c.Sender(), n), &telebot.SendOptions{ParseMode: telebot.ModeHTML})
	})

	b.Handle("/off", func(c telebot.Context) error {
		if !isGroupChat(c.Chat()) {
			return c.Send(replyForError(errNotInGroup))
		}
		log := logger.WithFields(logrus.Fields{"command": "/off", "sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
		if err := memberService.Seen(ctx, memberFromUser(c.Chat().ID, c.Sender())); err != nil {
			log.WithError(err).Error("Failed to register member")
			return c.Send(replyForError(err))
		}
		if err := memberService.GoOff(ctx, c.Chat().ID, c.Sender().ID); err != nil {
			log.WithError(err).Error("Failed to put member on leave")
			return c.Send(replyForError(err))
		}
		return c.Send("🏖 Вы в отпуске. Варны не начисляются, пока вы снова не напишете в чат.")
	})
}

func warnCountText(u *telebot.User, n int) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	if n == 0 {
		return fmt.Sprintf("✅ %s, у вас нет варнов.", escape(name))
	}
	return fmt.Sprintf("⚠️ %s, у вас <b>%d</b> варн(ов).", escape(name), n)
}
