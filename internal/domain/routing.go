package domain

import "context"

// Mode says where a conversation's next message goes. ModeUnset means no
// mode has been chosen yet; the router treats it as ModeResponder but the
// cache never coerces it.
type Mode string

const (
	ModeUnset     Mode = ""
	ModeResponder Mode = "responder"
	ModeOperator  Mode = "operator"
)

// ModeCache is the fast, best-effort mapping from conversation id to routing
// mode. Losing an entry is legal: the router degrades to ModeUnset. It holds
// no history and is never consulted for what was said.
type ModeCache interface {
	Get(ctx context.Context, convID string) (Mode, error)
	Set(ctx context.Context, convID string, mode Mode) error
}
