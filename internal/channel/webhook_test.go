package channel

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"relaybot/internal/domain"
)

func testWebhookLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// recordingBus captures published messages for assertions.
type recordingBus struct {
	published []domain.InboundMessage
}

func (b *recordingBus) Publish(msg domain.InboundMessage) { b.published = append(b.published, msg) }
func (b *recordingBus) Subscribe() <-chan domain.InboundMessage { return nil }
func (b *recordingBus) SendOutbound(msg domain.OutboundMessage) {}
func (b *recordingBus) OnOutbound(name string, h func(domain.OutboundMessage)) {}
func (b *recordingBus) Close() {}

func TestVerifyHMAC_Valid(t *testing.T) {
	secret := "test-secret"
	body := []byte(`{"content":"hello"}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if !verifyHMAC(body, secret, sig) {
		t.Error("valid HMAC should verify")
	}
}

func TestVerifyHMAC_Invalid(t *testing.T) {
	if verifyHMAC([]byte("body"), "secret", "sha256=invalid") {
		t.Error("invalid HMAC should not verify")
	}
}

func TestWebhookHandler_MethodNotAllowed(t *testing.T) {
	w := &Webhook{logger: testWebhookLogger()}
	req := httptest.NewRequest("GET", "/webhook", nil)
	rr := httptest.NewRecorder()

	w.handleWebhook(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

func TestWebhookHandler_MissingChatID(t *testing.T) {
	bus := &recordingBus{}
	w := &Webhook{bus: bus, logger: testWebhookLogger()}
	body := `{"content":"hello"}`
	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	w.handleWebhook(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	if len(bus.published) != 0 {
		t.Error("rejected payloads must have no side effects")
	}
}

func TestWebhookHandler_MissingContent(t *testing.T) {
	bus := &recordingBus{}
	w := &Webhook{bus: bus, logger: testWebhookLogger()}
	body := `{"chat_id":"42","content":""}`
	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	w.handleWebhook(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	if len(bus.published) != 0 {
		t.Error("rejected payloads must have no side effects")
	}
}

func TestWebhookHandler_InvalidJSON(t *testing.T) {
	w := &Webhook{logger: testWebhookLogger()}
	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString("not json"))
	rr := httptest.NewRecorder()

	w.handleWebhook(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestWebhookHandler_AcceptsAndPublishes(t *testing.T) {
	bus := &recordingBus{}
	w := &Webhook{bus: bus, logger: testWebhookLogger()}
	body := `{"chat_id":"42","content":"hello there"}`
	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	w.handleWebhook(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "accepted" {
		t.Errorf("expected accepted, got %q", resp["status"])
	}
	if resp["request_id"] == "" {
		t.Error("response must carry a request id")
	}

	if len(bus.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(bus.published))
	}
	msg := bus.published[0]
	if msg.ChatID != "42" || msg.Content != "hello there" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.Channel != "webhook" {
		t.Errorf("expected default channel, got %q", msg.Channel)
	}
}

func TestWebhookHandler_MissingSignature(t *testing.T) {
	w := &Webhook{secret: "my-secret", logger: testWebhookLogger()}
	body := `{"chat_id":"42","content":"hello"}`
	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	w.handleWebhook(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestWebhookHandler_InvalidSignature(t *testing.T) {
	w := &Webhook{secret: "my-secret", logger: testWebhookLogger()}
	body := `{"chat_id":"42","content":"hello"}`
	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(body))
	req.Header.Set("X-Signature-256", "sha256=invalid")
	rr := httptest.NewRecorder()

	w.handleWebhook(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rr.Code)
	}
}

func TestWebhookHandler_ValidSignature(t *testing.T) {
	secret := "my-secret"
	body := []byte(`{"chat_id":"42","content":"hello"}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	bus := &recordingBus{}
	w := &Webhook{secret: secret, bus: bus, logger: testWebhookLogger()}
	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Signature-256", sig)
	rr := httptest.NewRecorder()

	w.handleWebhook(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rr.Code)
	}
	if len(bus.published) != 1 {
		t.Errorf("expected publish, got %d", len(bus.published))
	}
}
