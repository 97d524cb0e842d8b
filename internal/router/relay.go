package router

import (
	"errors"
	"strings"
)

// ErrRelayMalformed is returned when an operator message does not follow the
// 'chat_id: message' convention.
var ErrRelayMalformed = errors.New("malformed operator reply")

// Relay is a parsed operator reply: which conversation it addresses and what
// to say there. It is ephemeral; it is never stored as its own entity.
type Relay struct {
	TargetID string
	Reply    string
}

// ParseRelay splits an operator-authored message into target conversation and
// reply text. Only the first colon splits, so reply text may itself contain
// colons. Both parts are trimmed.
func ParseRelay(text string) (Relay, error) {
	target, reply, ok := strings.Cut(text, ":")
	if !ok {
		return Relay{}, ErrRelayMalformed
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return Relay{}, ErrRelayMalformed
	}
	return Relay{TargetID: target, Reply: strings.TrimSpace(reply)}, nil
}
