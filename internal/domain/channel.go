package domain

import "context"

// Channel is the interface for user-facing I/O (Telegram, webhook ingress).
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}
