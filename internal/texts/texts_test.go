package texts

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cat, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if cat.RelayUsage != Defaults().RelayUsage {
		t.Errorf("expected default relay usage, got %q", cat.RelayUsage)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cat, err := Load("", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if cat.Greeting == "" {
		t.Error("defaults must have a greeting")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texts.yaml")
	override := "greeting: \"Привет!\"\noperatorConnected: \"Оператор подключен к диалогу\"\n"
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := Load(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if cat.Greeting != "Привет!" {
		t.Errorf("override not applied: %q", cat.Greeting)
	}
	if cat.OperatorConnected != "Оператор подключен к диалогу" {
		t.Errorf("override not applied: %q", cat.OperatorConnected)
	}
	// Untouched keys keep their defaults.
	if cat.RelayUsage != Defaults().RelayUsage {
		t.Errorf("default lost: %q", cat.RelayUsage)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texts.yaml")
	if err := os.WriteFile(path, []byte("greeting: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path, testLogger()); err == nil {
		t.Error("expected parse error")
	}
}

func TestForwardAndTakeover(t *testing.T) {
	cat := Defaults()

	fwd := cat.Forward("42", "help me")
	if !strings.Contains(fwd, "42") || !strings.Contains(fwd, "help me") {
		t.Errorf("forward missing parts: %q", fwd)
	}

	notice := cat.Takeover("42")
	if !strings.Contains(notice, "42") {
		t.Errorf("takeover notice missing conversation id: %q", notice)
	}
}
