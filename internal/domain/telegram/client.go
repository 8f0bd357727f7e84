package telegram

import "context"

// Button is one inline keyboard button. Unique is the handler endpoint,
// Data the payload it receives.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Keyboard is an inline keyboard laid out in rows. A nil keyboard removes buttons.
type Keyboard [][]Button

// Client is the messaging collaborator. Messages are HTML; topic id 1 means the
// chat's general thread.
type Client interface {
	SendCallOut(ctx context.Context, chatID int64, topicID int, text string, kb Keyboard) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	SendPlain(ctx context.Context, chatID int64, topicID int, text string) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	PinMessage(ctx context.Context, chatID int64, messageID int) error
	// SendPoll posts a non-anonymous poll and returns its poll id and message id.
	SendPoll(ctx context.Context, chatID int64, topicID int, question string, options []string) (string, int, error)
	// IsChatAdmin reports whether the user is the chat's creator or an administrator.
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}
