package logger

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// contextKey is a private type to avoid collisions in context.
type contextKey string

const (
	ctxRID       contextKey = "rid"
	ctxUserKey   contextKey = "user_key"
	ctxTransport contextKey = "transport"
	ctxHandler   contextKey = "handler"
	ctxLogger    contextKey = "logger"
)

// NewRID returns a short random correlation identifier for one inbound turn.
func NewRID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// WithLogger stores the provided slog.Logger in context for propagation across layers.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxLogger, log)
}

// FromContext extracts slog.Logger from context or returns the global default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if l, ok := ctx.Value(ctxLogger).(*slog.Logger); ok {
		return l
	}
	return L
}

// WithRID attaches a request correlation id to context.
func WithRID(ctx context.Context, rid string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRID, rid)
}

// RIDFrom extracts the correlation id from context if present.
func RIDFrom(ctx context.Context) string {
	return stringFrom(ctx, ctxRID)
}

// WithTurnMeta attaches the transport name and user key of the current turn.
func WithTurnMeta(ctx context.Context, transport, userKey string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if transport != "" {
		ctx = context.WithValue(ctx, ctxTransport, transport)
	}
	if userKey != "" {
		ctx = context.WithValue(ctx, ctxUserKey, userKey)
	}
	return ctx
}

// TransportFrom extracts the transport name from context.
func TransportFrom(ctx context.Context) string {
	return stringFrom(ctx, ctxTransport)
}

// UserKeyFrom extracts the respondent identifier from context.
func UserKeyFrom(ctx context.Context) string {
	return stringFrom(ctx, ctxUserKey)
}

// WithHandler stores a handler identifier in context for downstream logs.
func WithHandler(ctx context.Context, handler string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if handler == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxHandler, handler)
}

// HandlerFrom returns the handler identifier from context if present.
func HandlerFrom(ctx context.Context) string {
	return stringFrom(ctx, ctxHandler)
}

func stringFrom(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// Sanitize trims non-printable runes from s to keep logs clean.
// Control characters (Unicode categories Cc, Cf) are removed except tab and newline.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	b := strings.Builder{}
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) || r == 0x7F {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SanitizeLimit applies Sanitize and limits the output length in runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	cleaned := Sanitize(s)
	r := []rune(cleaned)
	if len(r) <= max {
		return cleaned
	}
	return string(r[:max])
}
