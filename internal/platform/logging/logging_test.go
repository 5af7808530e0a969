package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestTextAndJSONFormats(t *testing.T) {
	var text bytes.Buffer
	NewWithWriter(slog.LevelInfo, "text", &text).Info("login", "role", "user")
	if !strings.Contains(text.String(), "role=user") {
		t.Fatalf("expected text attr, got %s", text.String())
	}

	var js bytes.Buffer
	NewWithWriter(slog.LevelInfo, "JSON", &js).Info("login", "role", "admin")
	if !strings.Contains(js.String(), `"role":"admin"`) {
		t.Fatalf("expected json attr, got %s", js.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(ParseLevel("warn"), "text", &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestRedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(slog.LevelInfo, "text", &buf).Info("refresh", "refresh_token", "abc.def", "password", "hunter22", "email", "a@b.c")
	out := buf.String()
	if strings.Contains(out, "abc.def") || strings.Contains(out, "hunter22") {
		t.Fatalf("secret leaked: %s", out)
	}
	if !strings.Contains(out, "email=a@b.c") {
		t.Fatalf("expected email kept: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
