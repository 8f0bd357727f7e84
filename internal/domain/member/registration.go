package member

import (
	"fmt"
	"strconv"
	"strings"
)

// CallbackRegister is the telebot unique of registration buttons.
const CallbackRegister = "register"

// RegistrationButton is the payload of a registration button. UserID is set on
// buttons addressed to one member; those messages are removed once used.
type RegistrationButton struct {
	GroupID int64
	UserID  int64
}

// Payload encodes the button as "<group>" or "<group>:<user>".
func (b RegistrationButton) Payload() string {
	if b.UserID == 0 {
		return strconv.FormatInt(b.GroupID, 10)
	}
	return fmt.Sprintf("%d:%d", b.GroupID, b.UserID)
}

func ParseRegistrationButton(payload string) (RegistrationButton, error) {
	rawGroup, rawUser, personal := strings.Cut(payload, ":")
	groupID, err := strconv.ParseInt(rawGroup, 10, 64)
	if err != nil {
		return RegistrationButton{}, fmt.Errorf("invalid group id in registration payload %q", payload)
	}
	b := RegistrationButton{GroupID: groupID}
	if personal {
		if b.UserID, err = strconv.ParseInt(rawUser, 10, 64); err != nil {
			return RegistrationButton{}, fmt.Errorf("invalid user id in registration payload %q", payload)
		}
	}
	return b, nil
}
