package channel

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitMessage_Short(t *testing.T) {
	chunks := splitMessage("hello", 4000)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("expected single chunk, got %v", chunks)
	}
}

func TestSplitMessage_Empty(t *testing.T) {
	if chunks := splitMessage("", 4000); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %v", chunks)
	}
}

func TestSplitMessage_PrefersNewline(t *testing.T) {
	text := strings.Repeat("a", 30) + "\n" + strings.Repeat("b", 30)
	chunks := splitMessage(text, 40)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0] != strings.Repeat("a", 30) {
		t.Errorf("first chunk should end at the newline: %q", chunks[0])
	}
	if chunks[1] != "\n"+strings.Repeat("b", 30) {
		t.Errorf("second chunk wrong: %q", chunks[1])
	}
}

func TestSplitMessage_NeverSplitsRunes(t *testing.T) {
	text := strings.Repeat("привет мир ", 100)
	for _, maxLen := range []int{9, 40, 101, 4000} {
		chunks := splitMessage(text, maxLen)
		var rejoined strings.Builder
		for _, chunk := range chunks {
			if !utf8.ValidString(chunk) {
				t.Fatalf("maxLen %d produced invalid UTF-8 chunk %q", maxLen, chunk)
			}
			if len(chunk) > maxLen {
				t.Fatalf("maxLen %d: chunk is %d bytes", maxLen, len(chunk))
			}
			rejoined.WriteString(chunk)
		}
		if rejoined.String() != text {
			t.Fatalf("maxLen %d did not round-trip", maxLen)
		}
	}
}

func TestSplitMessage_LongAscii(t *testing.T) {
	text := strings.Repeat("x", 9001)
	chunks := splitMessage(text, 4000)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 4000 || len(chunks[2]) != 1001 {
		t.Errorf("unexpected chunk sizes: %d, %d, %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}
