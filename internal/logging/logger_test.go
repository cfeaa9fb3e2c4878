package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(t *testing.T, format string) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)
	var handler slog.Handler
	switch format {
	case "json":
		handler = newJSONHandler(buf, levelVar)
	default:
		handler = newConsoleHandler(buf, levelVar)
	}
	return slog.New(handler), buf
}

func TestConsoleHandlerPrefixesComponent(t *testing.T) {
	logger, buf := newBufferLogger(t, "console")
	logger.With(String(FieldComponent, "ingest")).Info("file archived", String(FieldPath, "/in/a.torrent"))

	line := buf.String()
	if !strings.Contains(line, "INFO ingest: file archived") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "path=/in/a.torrent") {
		t.Fatalf("expected path attr in %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	logger, buf := newBufferLogger(t, "console")
	logger.Warn("quarantined", String("reason", "engine rejected descriptor"))
	if !strings.Contains(buf.String(), `reason="engine rejected descriptor"`) {
		t.Fatalf("expected quoted reason in %q", buf.String())
	}
}

func TestConsoleHandlerFormatsErrors(t *testing.T) {
	logger, buf := newBufferLogger(t, "console")
	logger.Error("submit failed", Error(errors.New("connection refused")))
	if !strings.Contains(buf.String(), `error="connection refused"`) {
		t.Fatalf("expected error attr in %q", buf.String())
	}
}

func TestJSONHandlerLowercasesLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, "json")
	logger.Info("hello")
	if !strings.Contains(buf.String(), `"level":"info"`) {
		t.Fatalf("expected lowercase level in %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := parseLevel("nonsense"); got != slog.LevelInfo {
		t.Fatalf("parseLevel = %v, want info", got)
	}
	if got := parseLevel("debug"); got != slog.LevelDebug {
		t.Fatalf("parseLevel = %v, want debug", got)
	}
}
