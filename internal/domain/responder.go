package domain

import "context"

// Responder is the automated completion service. One call, no shared session
// state: the implementation owns whatever context window it keeps.
type Responder interface {
	Complete(ctx context.Context, convID string, text string) (string, error)
	Healthy(ctx context.Context) error
}
