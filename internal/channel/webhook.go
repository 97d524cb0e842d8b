package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"relaybot/internal/domain"
	"relaybot/internal/metrics"

	"github.com/google/uuid"
)

// WebhookConfig configures the webhook ingress.
type WebhookConfig struct {
	Port           int
	Path           string // webhook URL path (default: /webhook)
	Secret         string // HMAC secret for verifying webhook signatures
	MetricsEnabled bool
	MetricsPath    string
	Logger         *slog.Logger
}

// Webhook is the structured-payload ingress: a chat platform POSTs a
// conversation identifier plus message text, gets an immediate
// acknowledgment, and the router does the rest asynchronously so redelivery
// storms can't build up behind slow downstream calls.
type Webhook struct {
	port        int
	path        string
	secret      string
	metricsOn   bool
	metricsPath string
	bus         domain.MessageBus
	logger      *slog.Logger
	server      *http.Server
}

// WebhookPayload is the expected JSON body for webhook deliveries.
type WebhookPayload struct {
	Channel string `json:"channel"` // source channel identifier
	ChatID  string `json:"chat_id"` // conversation identifier
	UserID  string `json:"user_id"` // sender identifier
	Content string `json:"content"` // message text
}

// NewWebhook creates a new webhook ingress handler.
func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Path == "" {
		cfg.Path = "/webhook"
	}
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	return &Webhook{
		port:        cfg.Port,
		path:        cfg.Path,
		secret:      cfg.Secret,
		metricsOn:   cfg.MetricsEnabled,
		metricsPath: cfg.MetricsPath,
		logger:      cfg.Logger,
	}
}

func (w *Webhook) Name() string { return "webhook" }

// Start begins the webhook HTTP server.
func (w *Webhook) Start(ctx context.Context, bus domain.MessageBus) error {
	w.bus = bus

	mux := http.NewServeMux()
	mux.HandleFunc(w.path, w.handleWebhook)
	if w.metricsOn {
		mux.HandleFunc(w.metricsPath, metrics.Collector.Handler())
	}

	w.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", w.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Webhook deliveries are acknowledged before routing, so outbound
	// traffic for this channel is log-only.
	bus.OnOutbound("webhook", func(msg domain.OutboundMessage) {
		if msg.Content != "" {
			w.logger.Debug("webhook outbound (not forwarded)", "chat_id", msg.ChatID, "content_len", len(msg.Content))
		}
	})

	w.logger.Info("webhook server starting", "port", w.port, "path", w.path)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

func (w *Webhook) Stop() error { return nil }

func (w *Webhook) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := uuid.NewString()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB max
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Verify HMAC signature if secret is configured.
	if w.secret != "" {
		sig := r.Header.Get("X-Signature-256")
		if sig == "" {
			http.Error(rw, "Missing signature", http.StatusUnauthorized)
			return
		}
		if !verifyHMAC(body, w.secret, sig) {
			http.Error(rw, "Invalid signature", http.StatusForbidden)
			return
		}
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		w.logger.Warn("webhook payload is not JSON", "request_id", requestID, "err", err)
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// A delivery without a conversation id or text is rejected before any
	// side effect happens.
	if payload.ChatID == "" || payload.Content == "" {
		w.logger.Warn("webhook payload missing fields",
			"request_id", requestID,
			"has_chat_id", payload.ChatID != "",
			"has_content", payload.Content != "",
		)
		http.Error(rw, "chat_id and content are required", http.StatusBadRequest)
		return
	}

	if payload.Channel == "" {
		payload.Channel = "webhook"
	}
	if payload.UserID == "" {
		payload.UserID = payload.ChatID
	}

	w.logger.Info("webhook received",
		"request_id", requestID,
		"channel", payload.Channel,
		"chat_id", payload.ChatID,
		"content_len", len(payload.Content),
	)

	w.bus.Publish(domain.InboundMessage{
		Channel:   payload.Channel,
		ChatID:    payload.ChatID,
		SenderID:  payload.UserID,
		Content:   payload.Content,
		Timestamp: time.Now(),
	})

	rw.WriteHeader(http.StatusAccepted)
	json.NewEncoder(rw).Encode(map[string]string{
		"status":     "accepted",
		"request_id": requestID,
	})
}

// verifyHMAC verifies the HMAC-SHA256 signature of the body.
func verifyHMAC(body []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
