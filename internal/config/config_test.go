package config

import (
	"os"
	"path/filepath"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_MaxConcurrent_TooLow(t *testing.T) {
	cfg := Defaults()
	cfg.General.MaxConcurrentMessages = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxConcurrentMessages=0")
	}
}

func TestValidate_MaxConcurrent_TooHigh(t *testing.T) {
	cfg := Defaults()
	cfg.General.MaxConcurrentMessages = 999
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxConcurrentMessages=999")
	}
}

func TestValidate_MaxConcurrent_Boundary(t *testing.T) {
	cfg := Defaults()

	cfg.General.MaxConcurrentMessages = 1
	if err := Validate(cfg); err != nil {
		t.Fatalf("maxConcurrentMessages=1 should be valid: %v", err)
	}

	cfg.General.MaxConcurrentMessages = 100
	if err := Validate(cfg); err != nil {
		t.Fatalf("maxConcurrentMessages=100 should be valid: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestValidate_TelegramRequiresToken(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Enabled = true
	cfg.Telegram.OperatorChatID = "12345"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled telegram without token")
	}
}

func TestValidate_TelegramRequiresOperator(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Enabled = true
	cfg.Telegram.Token = "123:abc"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled telegram without operatorChatId")
	}
}

func TestValidate_NegativeResponderTimeout(t *testing.T) {
	cfg := Defaults()
	cfg.Responder.TimeoutSeconds = -5
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative responder timeout")
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Defaults()
	cfg.Webhook.Port = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative port")
	}

	cfg.Webhook.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for port > 65535")
	}
}

func TestValidate_WebhookPath(t *testing.T) {
	cfg := Defaults()
	cfg.Webhook.Path = "hook"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for webhook path without leading /")
	}
}

func TestValidate_EmptyDBPath(t *testing.T) {
	cfg := Defaults()
	cfg.Store.DBPath = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty store.dbPath")
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := Defaults()
	original.Responder.Model = "test-model"
	original.Store.DBPath = filepath.Join(dir, "relay.db")

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Responder.Model != "test-model" {
		t.Fatalf("expected 'test-model', got %q", loaded.Responder.Model)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte("{not json}"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_ValidatesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	content := `{
		"general": {
			"maxConcurrentMessages": 0
		}
	}`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(cfgFile)
	if err == nil {
		t.Fatal("expected validation error for maxConcurrentMessages=0")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("RELAYBOT_TEST_TOKEN", "999:tok")

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	content := `{
		"telegram": {
			"enabled": true,
			"token": "${RELAYBOT_TEST_TOKEN}",
			"operatorChatId": "${RELAYBOT_TEST_OPERATOR:-777}"
		}
	}`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "999:tok" {
		t.Fatalf("expected env var expansion, got %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.OperatorChatID != "777" {
		t.Fatalf("expected default fallback, got %q", cfg.Telegram.OperatorChatID)
	}
}

// --- Accessor ---

func TestGetByPath_ValidPaths(t *testing.T) {
	cfg := Defaults()

	val, err := GetByPath(cfg, "general.logLevel")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "info" {
		t.Fatalf("expected 'info', got %v", val)
	}
}

func TestGetByPath_InvalidPath(t *testing.T) {
	cfg := Defaults()
	_, err := GetByPath(cfg, "nonexistent.path")
	if err == nil {
		t.Fatal("expected error for nonexistent path")
	}
}

func TestSetByPath_ValidPath(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "responder.model", "gpt-4o"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Responder.Model != "gpt-4o" {
		t.Fatalf("expected 'gpt-4o', got %q", cfg.Responder.Model)
	}
}

func TestSetByPath_BoolConversion(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "webhook.enabled", "true"); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if !cfg.Webhook.Enabled {
		t.Fatal("expected webhook.enabled=true")
	}
}

func TestSetByPath_IntConversion(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "webhook.port", "8080"); err != nil {
		t.Fatalf("set int: %v", err)
	}
	if cfg.Webhook.Port != 8080 {
		t.Fatalf("expected 8080, got %d", cfg.Webhook.Port)
	}
}

// --- Sanitize ---

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "123456789:ABCdefGHIjklMNOpqrSTUvwxyz"
	cfg.Responder.APIKey = "sk-1234567890abcdefghijklmnop"
	cfg.Webhook.Secret = "hmac-secret-value"

	sanitized := Sanitize(cfg)

	if sanitized.Telegram.Token == cfg.Telegram.Token {
		t.Fatal("telegram token should be masked")
	}
	if sanitized.Responder.APIKey == cfg.Responder.APIKey {
		t.Fatal("API key should be masked")
	}
	if sanitized.Webhook.Secret != "***" {
		t.Fatalf("webhook secret should be '***', got %q", sanitized.Webhook.Secret)
	}
	// Verify original is untouched
	if cfg.Telegram.Token != "123456789:ABCdefGHIjklMNOpqrSTUvwxyz" {
		t.Fatal("original config should not be modified")
	}
}

func TestSanitize_ShortSecret(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "short"
	sanitized := Sanitize(cfg)
	if sanitized.Telegram.Token != "***" {
		t.Fatalf("short secret should be '***', got %q", sanitized.Telegram.Token)
	}
}

// --- ListPaths ---

func TestListPaths_ReturnsAllLeaves(t *testing.T) {
	cfg := Defaults()
	paths := ListPaths(cfg)
	if len(paths) == 0 {
		t.Fatal("expected non-empty paths")
	}

	for _, expected := range []string{"general.logLevel", "store.dbPath", "webhook.port"} {
		if _, ok := paths[expected]; !ok {
			t.Errorf("missing expected path: %s", expected)
		}
	}
}
