package domain

import "time"

type InboundMessage struct {
	Channel   string
	ChatID    string
	SenderID  string
	Content   string
	Timestamp time.Time
}

type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
	// WithKeyboard attaches the operator-toggle reply keyboard. Never set
	// on messages addressed to the operator chat.
	WithKeyboard bool
}
