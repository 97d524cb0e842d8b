// Package router holds the per-conversation state machine that decides
// whether an inbound message is answered by the AI responder or forwarded to
// the human operator, and the relay convention that lets one operator chat
// address many conversations.
package router

import (
	"context"
	"log/slog"
	"strings"

	"relaybot/internal/domain"
	"relaybot/internal/metrics"
	"relaybot/internal/texts"
)

// resetCommand forces a conversation back to responder mode and greets the
// user. Matched case-folded, like the toggle phrase.
const resetCommand = "/start"

const defaultConcurrency = 5

// ActionKind classifies what the router decided to do with a message.
type ActionKind string

const (
	ActionRespond    ActionKind = "respond"     // answer via the AI responder
	ActionForward    ActionKind = "forward"     // forward to the operator chat
	ActionSetMode    ActionKind = "set_mode"    // toggle routing mode
	ActionGreet      ActionKind = "greet"       // reset to responder and greet
	ActionRelay      ActionKind = "relay"       // deliver an operator reply
	ActionRelayUsage ActionKind = "relay_usage" // malformed operator reply
)

// Action is the single outbound decision for one inbound message.
type Action struct {
	Kind   ActionKind
	Mode   domain.Mode // ActionSetMode: the mode to assign
	Target string      // ActionRelay: addressed conversation
	Reply  string      // ActionRelay: reply text
}

// Router consumes inbound messages from the bus and issues side effects:
// persist, cache update, dispatch, or responder query.
type Router struct {
	store       domain.DialogueStore
	cache       domain.ModeCache
	responder   domain.Responder
	bus         domain.MessageBus
	texts       texts.Catalog
	logger      *slog.Logger
	operatorID  string
	toggle      string // case-folded toggle phrase
	concurrency int
}

// Config holds all dependencies and tuning parameters for the router.
type Config struct {
	Store       domain.DialogueStore
	Cache       domain.ModeCache
	Responder   domain.Responder
	Bus         domain.MessageBus
	Texts       texts.Catalog
	Logger      *slog.Logger
	OperatorID  string
	Toggle      string // toggle phrase, matched case-folded
	Concurrency int    // max parallel messages (default 5)
}

func New(cfg Config) *Router {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Router{
		store:       cfg.Store,
		cache:       cfg.Cache,
		responder:   cfg.Responder,
		bus:         cfg.Bus,
		texts:       cfg.Texts,
		logger:      cfg.Logger,
		operatorID:  cfg.OperatorID,
		toggle:      normalize(cfg.Toggle),
		concurrency: cfg.Concurrency,
	}
}

// normalize prepares text for command comparison. Only comparisons use the
// normalized form; the original text is what gets persisted and forwarded.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Run consumes inbound messages and routes them with bounded concurrency.
// Units of work for different conversations never block each other.
func (r *Router) Run(ctx context.Context) {
	r.logger.Info("router started", "concurrency", r.concurrency, "operator", r.operatorID)

	sem := make(chan struct{}, r.concurrency)
	inbound := r.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("router stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				r.logger.Info("inbound channel closed, router stopping")
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				r.logger.Info("router stopping")
				return
			}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				r.Handle(ctx, m)
			}(msg)
		}
	}
}

// Decide maps one inbound message plus the current routing mode to exactly
// one action. It is pure: no side effects, no I/O.
func (r *Router) Decide(convID, text string, mode domain.Mode) Action {
	if convID == r.operatorID {
		rel, err := ParseRelay(text)
		if err != nil {
			return Action{Kind: ActionRelayUsage}
		}
		return Action{Kind: ActionRelay, Target: rel.TargetID, Reply: rel.Reply}
	}

	switch normalize(text) {
	case r.toggle:
		// Unset counts as responder for the flip.
		if mode == domain.ModeOperator {
			return Action{Kind: ActionSetMode, Mode: domain.ModeResponder}
		}
		return Action{Kind: ActionSetMode, Mode: domain.ModeOperator}
	case resetCommand:
		return Action{Kind: ActionGreet}
	}

	if mode == domain.ModeOperator {
		return Action{Kind: ActionForward}
	}
	return Action{Kind: ActionRespond}
}

// Handle routes a single inbound message. It never returns an error: every
// failure is logged here so the ingress transport can always acknowledge the
// delivery. Store failures abort before routing; everything downstream is
// recovered locally.
func (r *Router) Handle(ctx context.Context, msg domain.InboundMessage) {
	metrics.InboundTotal.Inc()
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	// History first: the message is on the log before any routing decision,
	// so a downstream failure never loses what was said.
	origin := domain.OriginUser
	if msg.ChatID == r.operatorID {
		origin = domain.OriginOperator
	}
	if _, err := r.store.GetOrCreateConversation(ctx, msg.ChatID); err != nil {
		metrics.StoreFailures.Inc()
		r.logger.Error("store unavailable, dropping message", "chat", msg.ChatID, "err", err)
		return
	}
	if _, err := r.store.AppendMessage(ctx, msg.ChatID, origin, msg.Content); err != nil {
		metrics.StoreFailures.Inc()
		r.logger.Error("cannot persist message, aborting routing", "chat", msg.ChatID, "err", err)
		return
	}

	mode := domain.ModeUnset
	if msg.ChatID != r.operatorID {
		m, err := r.cache.Get(ctx, msg.ChatID)
		if err != nil {
			// Cache loss degrades to unset, which routes like responder.
			r.logger.Warn("mode cache read failed, treating as unset", "chat", msg.ChatID, "err", err)
			m = domain.ModeUnset
		}
		mode = m
	}

	action := r.Decide(msg.ChatID, msg.Content, mode)
	r.logger.Info("routing message",
		"chat", msg.ChatID,
		"mode", string(mode),
		"action", string(action.Kind),
	)

	switch action.Kind {
	case ActionSetMode:
		r.setMode(ctx, msg, action.Mode)
	case ActionGreet:
		r.greet(ctx, msg)
	case ActionForward:
		metrics.ForwardedTotal.Inc()
		r.send(msg.Channel, r.operatorID, r.texts.Forward(msg.ChatID, msg.Content))
	case ActionRespond:
		r.respond(ctx, msg)
	case ActionRelay:
		r.relay(ctx, msg.Channel, action)
	case ActionRelayUsage:
		metrics.RelayMalformedTotal.Inc()
		r.send(msg.Channel, r.operatorID, r.texts.RelayUsage)
	}
}

func (r *Router) setMode(ctx context.Context, msg domain.InboundMessage, mode domain.Mode) {
	if err := r.cache.Set(ctx, msg.ChatID, mode); err != nil {
		// Non-fatal: the toggle just won't stick past this message.
		r.logger.Warn("mode cache write failed", "chat", msg.ChatID, "mode", string(mode), "err", err)
	}
	metrics.ModeSwitchesTotal.Inc()

	if mode == domain.ModeOperator {
		r.send(msg.Channel, msg.ChatID, r.texts.OperatorConnected)
		r.send(msg.Channel, r.operatorID, r.texts.Takeover(msg.ChatID))
	} else {
		r.send(msg.Channel, msg.ChatID, r.texts.OperatorDisconnected)
	}
}

func (r *Router) greet(ctx context.Context, msg domain.InboundMessage) {
	if err := r.cache.Set(ctx, msg.ChatID, domain.ModeResponder); err != nil {
		r.logger.Warn("mode cache write failed", "chat", msg.ChatID, "err", err)
	}
	r.send(msg.Channel, msg.ChatID, r.texts.Greeting)
}

func (r *Router) respond(ctx context.Context, msg domain.InboundMessage) {
	reply, err := r.responder.Complete(ctx, msg.ChatID, msg.Content)
	if err != nil {
		metrics.ResponderFailures.Inc()
		r.logger.Error("responder failed, no reply sent", "chat", msg.ChatID, "err", err)
		return
	}
	// The assistant's side of the dialogue goes on the log too. Best effort:
	// the user still gets the reply if the append fails.
	if _, err := r.store.AppendMessage(ctx, msg.ChatID, domain.OriginAssistant, reply); err != nil {
		metrics.StoreFailures.Inc()
		r.logger.Warn("cannot persist assistant reply", "chat", msg.ChatID, "err", err)
	}
	metrics.RespondedTotal.Inc()
	r.send(msg.Channel, msg.ChatID, reply)
}

// relay delivers an operator reply to its target conversation, bypassing the
// target's routing mode entirely.
func (r *Router) relay(ctx context.Context, channel string, action Action) {
	if _, err := r.store.GetOrCreateConversation(ctx, action.Target); err != nil {
		metrics.StoreFailures.Inc()
		r.logger.Error("store unavailable, relay dropped", "target", action.Target, "err", err)
		return
	}
	if _, err := r.store.AppendMessage(ctx, action.Target, domain.OriginOperator, action.Reply); err != nil {
		metrics.StoreFailures.Inc()
		r.logger.Error("cannot persist operator reply, relay dropped", "target", action.Target, "err", err)
		return
	}
	metrics.RelayedTotal.Inc()
	r.send(channel, action.Target, r.texts.OperatorReplyPrefix+action.Reply)
}

// send dispatches one outbound message. The toggle keyboard goes on every
// message except those addressed to the operator chat.
func (r *Router) send(channel, chatID, content string) {
	r.bus.SendOutbound(domain.OutboundMessage{
		Channel:      channel,
		ChatID:       chatID,
		Content:      content,
		WithKeyboard: chatID != r.operatorID,
	})
}
