// Package chat defines the port for the chat transport.
package chat

import "context"

// Button is one inline keyboard button with a callback payload.
type Button struct {
	Text string
	Data string
}

// Message is an outbound chat message. Keyboard rows are optional.
type Message struct {
	ChatID   int64
	Text     string
	Keyboard [][]Button
}

// Sender delivers messages and keyboard interactions to a chat platform.
type Sender interface {
	// Send delivers a new message to a chat.
	Send(ctx context.Context, msg Message) error
	// EditText replaces the text (and keyboard) of an earlier message.
	EditText(ctx context.Context, chatID int64, messageID int64, text string, keyboard [][]Button) error
	// DeleteMessage removes an earlier message.
	DeleteMessage(ctx context.Context, chatID int64, messageID int64) error
	// AnswerCallback acknowledges a pressed inline button. When alert
	// is true the text is shown as a popup instead of a toast.
	AnswerCallback(ctx context.Context, callbackID string, text string, alert bool) error
}
