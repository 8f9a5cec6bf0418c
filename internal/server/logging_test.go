package server_test

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/example/go-sptok/internal/server"
)

// capturingHandler captures all slog records during a test.
type capturingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (c *capturingHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }
func (c *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r)
	return nil
}
func (c *capturingHandler) WithAttrs(_ []slog.Attr) slog.Handler { return c }
func (c *capturingHandler) WithGroup(_ string) slog.Handler      { return c }

// find returns the attributes of the first record whose message is msg.
func (c *capturingHandler) find(msg string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.records {
		if r.Message != msg {
			continue
		}

		m := make(map[string]any)
		r.Attrs(func(a slog.Attr) bool {
			m[a.Key] = a.Value.Any()
			return true
		})

		return m, true
	}

	return nil, false
}

func TestEncode_LogsTextLenAndDuration(t *testing.T) {
	capture := &capturingHandler{}
	h := newTestHandler(t, server.WithLogger(slog.New(capture)))

	rec := do(h, http.MethodPost, "/encode", `{"text":"hello world"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	attrs, ok := capture.find("encode complete")
	if !ok {
		t.Fatal("no \"encode complete\" record")
	}

	if got := attrs["text_len"]; got != int64(len("hello world")) {
		t.Errorf("text_len = %v, want %d", got, len("hello world"))
	}

	if _, ok := attrs["duration_ms"]; !ok {
		t.Error("want duration_ms attribute in log record")
	}
}

func TestDecode_LogsErrorOnFailure(t *testing.T) {
	capture := &capturingHandler{}
	h := newTestHandler(t, server.WithLogger(slog.New(capture)))

	rec := do(h, http.MethodPost, "/decode", `{"ids":[999]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}

	attrs, ok := capture.find("decode failed")
	if !ok {
		t.Fatal("no \"decode failed\" record")
	}

	if _, ok := attrs["error"]; !ok {
		t.Error("want an 'error' attribute on decode failure")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		level   string
		wantLvl slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			lvl, err := server.ParseLogLevel(tc.level)
			if err != nil {
				t.Fatalf("ParseLogLevel(%q) error: %v", tc.level, err)
			}
			if lvl != tc.wantLvl {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.level, lvl, tc.wantLvl)
			}
		})
	}
}

func TestParseLogLevel_InvalidLevelReturnsError(t *testing.T) {
	if _, err := server.ParseLogLevel("verbose"); err == nil {
		t.Error("want error for unknown log level")
	}
}
