// internal/app/registration_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"html"
	"unicode"

	"clan_helper_bot/internal/domain/group"
	"clan_helper_bot/internal/domain/member"
	domainTelegram "clan_helper_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

const registrationPitch = "Для участия в клановых и демонических сражениях, а также для получения уведомлений о сборах, необходимо зарегистрироваться в системе бота."

// RegistrationService lets members opt in and out of the bot's member directory.
// Replies are HTML texts for the command or button that triggered them.
type RegistrationService struct {
	members member.Repository
	client  domainTelegram.Client
	logger  *logrus.Entry
}

func NewRegistrationService(members member.Repository, client domainTelegram.Client, logger *logrus.Entry) *RegistrationService {
	return &RegistrationService{members: members, client: client, logger: logger.WithField("component", "registration")}
}

func registrationKeyboard(text string, b member.RegistrationButton) domainTelegram.Keyboard {
	return domainTelegram.Keyboard{{{Text: text, Unique: member.CallbackRegister, Data: b.Payload()}}}
}

// PostRegistration posts and pins the group-wide registration message.
func (s *RegistrationService) PostRegistration(ctx context.Context, groupID int64, topicID int, adminID int64) (int, error) {
	ok, err := s.client.IsChatAdmin(ctx, groupID, adminID)
	if err != nil {
		return 0, fmt.Errorf("failed to check admin rights: %w", err)
	}
	if !ok {
		return 0, ErrAdminNotAuthorized
	}

	text := "⚔️ <b>Регистрация участников клана</b>\n\n" +
		"Это необходимо для всех участников клана!\n\n" +
		registrationPitch + "\n\n" +
		"Нажмите на кнопку ниже для регистрации:"
	msgID, err := s.client.SendCallOut(ctx, groupID, topicID, text, registrationKeyboard("✅ Зарегистрироваться", member.RegistrationButton{GroupID: groupID}))
	if err != nil {
		return 0, fmt.Errorf("send registration message: %w", err)
	}
	log := s.logger.WithFields(logrus.Fields{"group_id": groupID, "message_id": msgID})
	if err := s.client.PinMessage(ctx, groupID, msgID); err != nil {
		log.WithError(err).Warn("Could not pin registration message")
	}
	log.Info("Registration message posted")
	return msgID, nil
}

// Welcome greets a member who just joined and offers them the registration button.
func (s *RegistrationService) Welcome(ctx context.Context, m member.Member) error {
	text := fmt.Sprintf("Привет, %s! 👋\n\nДобро пожаловать в клан! 🎮⚔️\n\n%s\n\nНажмите на кнопку ниже для регистрации:",
		Mention(m), registrationPitch)
	kb := registrationKeyboard("✅ Зарегистрироваться", member.RegistrationButton{GroupID: m.GroupID, UserID: m.UserID})
	if _, err := s.client.SendCallOut(ctx, m.GroupID, group.GeneralTopicID, text, kb); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	return nil
}

// Prompt answers /register: either a confirmation button or a note that the
// sender is already registered.
func (s *RegistrationService) Prompt(ctx context.Context, topicID int, m member.Member) error {
	existing, err := s.members.Get(ctx, m.GroupID, m.UserID)
	if err != nil && !errors.Is(err, member.ErrMemberNotFound) {
		return fmt.Errorf("lookup member: %w", err)
	}
	if err == nil && existing.Status == member.StatusMember {
		_, err := s.client.SendPlain(ctx, m.GroupID, topicID,
			"ℹ️ <b>Вы уже зарегистрированы!</b>\n\nВы уже зарегистрированы в системе бота для этой группы.")
		return err
	}

	text := fmt.Sprintf("⚔️ <b>Регистрация в системе</b>\n\n%s, %s\n\nНажмите на кнопку ниже для подтверждения регистрации:",
		Mention(m), lowerFirst(registrationPitch))
	kb := registrationKeyboard("✅ Подтвердить регистрацию", member.RegistrationButton{GroupID: m.GroupID, UserID: m.UserID})
	_, err = s.client.SendCallOut(ctx, m.GroupID, topicID, text, kb)
	return err
}

// Register handles a registration button press in chatID. A button addressed
// to one member is removed once pressed.
func (s *RegistrationService) Register(ctx context.Context, chatID int64, messageID int, b member.RegistrationButton, m member.Member) (string, error) {
	if b.GroupID != chatID {
		return "❌ Эта кнопка предназначена для другой группы", nil
	}
	m.GroupID = chatID
	log := s.logger.WithFields(logrus.Fields{"group_id": m.GroupID, "user_id": m.UserID})

	existing, err := s.members.Get(ctx, m.GroupID, m.UserID)
	if err != nil && !errors.Is(err, member.ErrMemberNotFound) {
		return "", fmt.Errorf("lookup member: %w", err)
	}
	reply := "ℹ️ Вы уже зарегистрированы!"
	if err != nil || existing.Status != member.StatusMember {
		m.Status = member.StatusMember
		if err := s.members.Upsert(ctx, &m); err != nil {
			return "", fmt.Errorf("register member: %w", err)
		}
		log.Info("Member registered")
		reply = "✅ Вы успешно зарегистрированы!"
	}

	if b.UserID == m.UserID {
		if err := s.client.DeleteMessage(ctx, chatID, messageID); err != nil {
			log.WithError(err).Warn("Could not delete registration message")
		}
	}
	return reply, nil
}

// Unregister takes the member out of the directory until they register again.
func (s *RegistrationService) Unregister(ctx context.Context, groupID, userID int64) (string, error) {
	existing, err := s.members.Get(ctx, groupID, userID)
	if err != nil && !errors.Is(err, member.ErrMemberNotFound) {
		return "", fmt.Errorf("lookup member: %w", err)
	}
	if err != nil || existing.Status != member.StatusMember {
		return "ℹ️ <b>Вы не зарегистрированы</b>\n\nВы не зарегистрированы в системе бота для этой группы.", nil
	}
	if err := s.members.SetStatus(ctx, groupID, userID, member.StatusUnregistered); err != nil {
		return "", fmt.Errorf("unregister member: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"group_id": groupID, "user_id": userID}).Info("Member unregistered")
	return "✅ <b>Регистрация отменена</b>\n\nВы успешно отменили регистрацию в системе бота.\n\nДля повторной регистрации используйте команду /register", nil
}

// GoInactive puts a registered member on leave.
func (s *RegistrationService) GoInactive(ctx context.Context, groupID, userID int64) (string, error) {
	existing, err := s.members.Get(ctx, groupID, userID)
	if err != nil && !errors.Is(err, member.ErrMemberNotFound) {
		return "", fmt.Errorf("lookup member: %w", err)
	}
	if err != nil || !existing.Status.Active() {
		return "ℹ️ <b>Вы не зарегистрированы</b>\n\nВы не зарегистрированы в системе бота для этой группы.\n\nИспользуйте команду /register для регистрации.", nil
	}
	if existing.Status == member.StatusOff {
		return "ℹ️ <b>Вы уже в статусе \"неактивен\"</b>\n\nВарны не начисляются, но вы будете получать напоминания о неотыгранных боях.", nil
	}
	if err := s.members.SetStatus(ctx, groupID, userID, member.StatusOff); err != nil {
		return "", fmt.Errorf("set member off: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"group_id": groupID, "user_id": userID}).Info("Member went inactive")
	return fmt.Sprintf("%s, на период неактивности варны не начисляются, но вы всё так же будете получать уведомления о неотыгранных битвах.",
		html.EscapeString(DisplayName(*existing))), nil
}

func lowerFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
