package collection

import (
	"fmt"
	"strconv"
	"strings"
)

// ActionKind is a button press on a call-out message.
type ActionKind string

const (
	ActionCollect  ActionKind = "collect"
	ActionPostpone ActionKind = "postpone"
	ActionCancel   ActionKind = "cancel"
)

// CallbackUnique is the telebot unique prefix shared by all call-out buttons.
const CallbackUnique = "collection"

// Action is the decoded payload of a call-out button.
type Action struct {
	Kind       ActionKind
	TopicID    int
	BattleType BattleType
}

// Payload encodes the action as "<kind>:<topic>:<battle>".
func (a Action) Payload() string {
	return fmt.Sprintf("%s:%d:%s", a.Kind, a.TopicID, a.BattleType)
}

// ParseAction decodes a button payload produced by Payload.
func ParseAction(payload string) (Action, error) {
	parts := strings.Split(payload, ":")
	if len(parts) != 3 {
		return Action{}, fmt.Errorf("invalid collection payload %q", payload)
	}

	kind := ActionKind(parts[0])
	switch kind {
	case ActionCollect, ActionPostpone, ActionCancel:
	default:
		return Action{}, fmt.Errorf("unknown collection action %q", parts[0])
	}

	topicID, err := strconv.Atoi(parts[1])
	if err != nil {
		return Action{}, fmt.Errorf("invalid topic id in payload %q: %w", payload, err)
	}

	bt := BattleType(parts[2])
	if !bt.Valid() {
		return Action{}, fmt.Errorf("unknown battle type %q", parts[2])
	}

	return Action{Kind: kind, TopicID: topicID, BattleType: bt}, nil
}
