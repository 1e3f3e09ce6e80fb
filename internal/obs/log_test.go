package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(EnvProd, &buf).Info("hello", "k", "v")
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("prod logger must emit JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "hello" || entry["k"] != "v" {
		t.Fatalf("unexpected entry: %v", entry)
	}

	buf.Reset()
	NewLogger(EnvProd, &buf).Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("prod logger must drop debug lines")
	}

	buf.Reset()
	NewLogger(EnvLocal, &buf).Debug("visible")
	if !strings.Contains(buf.String(), "msg=visible") {
		t.Fatalf("local logger must emit text debug lines, got %q", buf.String())
	}
}

func TestLoggerContext(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatalf("expected default logger")
	}
	l := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	if FromContext(IntoContext(context.Background(), l)) != l {
		t.Fatalf("expected stored logger")
	}
}

func TestRequestIDContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("unexpected id %q", got)
	}
	ctx := ContextWithRequestID(context.Background(), "01HZX")
	if got := RequestIDFromContext(ctx); got != "01HZX" {
		t.Fatalf("got %q", got)
	}
}
