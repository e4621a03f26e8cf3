package logger

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"log/slog"
)

func newTestHandler(buf *bytes.Buffer, format logFormat) (*structuredHandler, *fanoutWriter) {
	fw := newFanoutWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   fw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	return h, fw
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, fw := newTestHandler(buf, formatKV)

	ctx := WithRID(Background(), "rid-123")
	ctx = WithTurnMeta(ctx, "twilio", "whatsapp:+5521999998888")

	log := slog.New(handler).With("component", "survey")
	LogEvent(ctx, log, slog.LevelInfo, "turn.done",
		slog.String("status", "ok"),
	)
	if err := fw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=survey", "event=turn.done", "status=ok", "rid=rid-123", "transport=twilio"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, fw := newTestHandler(buf, formatJSON)

	ctx := WithRID(Background(), "rid-json")
	ctx = WithTurnMeta(ctx, "telegram", "12345")

	log := slog.New(handler).With("component", "tg")
	LogEvent(ctx, log, slog.LevelError, "send.fail",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
	)
	if err := fw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"tg"`, `"event":"send.fail"`, `"status":"fail"`, `"rid":"rid-json"`, `"transport":"telegram"`, `"user_key":"12345"`, `"err":"boom"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerRecordAttrWinsOverContext(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, fw := newTestHandler(buf, formatKV)

	ctx := WithRID(Background(), "ctx-rid")
	log := slog.New(handler)
	LogEvent(ctx, log, slog.LevelInfo, "rid.test",
		slog.String("rid", "explicit-rid"),
	)
	if err := fw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "rid=explicit-rid") {
		t.Fatalf("expected explicit rid to win, got %s", line)
	}
	if strings.Contains(line, "ctx-rid") {
		t.Fatalf("context rid should be shadowed, got %s", line)
	}
}

func TestStructuredHandlerQuotesKVValues(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, fw := newTestHandler(buf, formatKV)

	log := slog.New(handler)
	LogEvent(Background(), log, slog.LevelInfo, "payload.test",
		slog.String("payload", "two words"),
	)
	if err := fw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !strings.Contains(buf.String(), `payload="two words"`) {
		t.Fatalf("expected quoted value, got %s", buf.String())
	}
}

func TestStructuredHandlerLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, fw := newTestHandler(buf, formatKV)

	log := slog.New(handler)
	LogEvent(Background(), log, slog.LevelDebug, "should.not.appear")
	if err := fw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if strings.TrimSpace(buf.String()) != "" {
		t.Fatalf("debug record should be filtered at info level, got %s", buf.String())
	}
}
