package callout

import (
	"fmt"
	"strconv"
	"strings"
)

// ActionKind is a button press on a roster message.
type ActionKind string

const (
	ActionGoing     ActionKind = "going"
	ActionCallReady ActionKind = "call"
)

// CallbackUnique is the telebot unique prefix of roster buttons.
const CallbackUnique = "callout"

type Action struct {
	Kind      ActionKind
	CalloutID int64
}

// Payload encodes the action as "<kind>:<callout id>".
func (a Action) Payload() string {
	return fmt.Sprintf("%s:%d", a.Kind, a.CalloutID)
}

func ParseAction(payload string) (Action, error) {
	kind, rawID, ok := strings.Cut(payload, ":")
	if !ok {
		return Action{}, fmt.Errorf("invalid callout payload %q", payload)
	}
	switch ActionKind(kind) {
	case ActionGoing, ActionCallReady:
	default:
		return Action{}, fmt.Errorf("unknown callout action %q", kind)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return Action{}, fmt.Errorf("invalid callout id in payload %q", payload)
	}
	return Action{Kind: ActionKind(kind), CalloutID: id}, nil
}
