package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

type logFormat int

const (
	formatJSON logFormat = iota
	formatKV
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *fanoutWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler emits one line per record with well-known keys in a fixed
// order. Group names are flattened into dotted key prefixes.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []field
	prefix string
}

type field struct {
	key   string
	value slog.Value
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if len(cfg.keyOrder) == 0 {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

// Enabled implements slog.Handler.
func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

// WithAttrs implements slog.Handler.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append(append([]field(nil), h.attrs...), h.flatten(attrs)...)
	return &clone
}

// WithGroup implements slog.Handler.
func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func (h *structuredHandler) flatten(attrs []slog.Attr) []field {
	out := make([]field, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, h.flattenOne(h.prefix, a)...)
	}
	return out
}

func (h *structuredHandler) flattenOne(prefix string, a slog.Attr) []field {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		var out []field
		for _, ga := range v.Group() {
			out = append(out, h.flattenOne(prefix+a.Key+".", ga)...)
		}
		return out
	}
	if a.Key == "" {
		return nil
	}
	return []field{{key: prefix + a.Key, value: v}}
}

// Handle implements slog.Handler.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	fields := make([]field, 0, r.NumAttrs()+len(h.attrs)+8)
	fields = append(fields,
		field{key: "ts", value: slog.StringValue(r.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"))},
		field{key: "level", value: slog.StringValue(normalizeLevel(r.Level.String()))},
	)
	fields = append(fields, h.attrs...)
	if r.Message != "" {
		fields = append(fields, field{key: "msg", value: slog.StringValue(r.Message)})
	}
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, h.flattenOne(h.prefix, a)...)
		return true
	})
	fields = appendContextFields(ctx, fields)

	ordered := orderFields(fields, h.cfg.keyOrder)

	var line []byte
	if h.cfg.format == formatKV {
		line = encodeKV(ordered)
	} else {
		line = encodeJSON(ordered)
	}
	return h.cfg.writer.Write(line)
}

// appendContextFields adds turn metadata carried in context unless the record
// already provides it explicitly.
func appendContextFields(ctx context.Context, fields []field) []field {
	add := func(key, val string) {
		if val == "" {
			return
		}
		for _, f := range fields {
			if f.key == key {
				return
			}
		}
		fields = append(fields, field{key: key, value: slog.StringValue(val)})
	}
	add("rid", RIDFrom(ctx))
	add("transport", TransportFrom(ctx))
	add("user_key", UserKeyFrom(ctx))
	add("handler", HandlerFrom(ctx))
	return fields
}

// orderFields places well-known keys first in schema order; the rest keep
// their insertion order. Later duplicates win.
func orderFields(fields []field, keyOrder []string) []field {
	byKey := make(map[string]slog.Value, len(fields))
	seen := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := byKey[f.key]; !ok {
			seen = append(seen, f.key)
		}
		byKey[f.key] = f.value
	}

	rank := make(map[string]int, len(keyOrder))
	for i, k := range keyOrder {
		rank[k] = i
	}

	out := make([]field, 0, len(seen))
	for _, k := range keyOrder {
		if v, ok := byKey[k]; ok {
			out = append(out, field{key: k, value: v})
		}
	}
	for _, k := range seen {
		if _, known := rank[k]; known {
			continue
		}
		out = append(out, field{key: k, value: byKey[k]})
	}
	return out
}

func encodeKV(fields []field) []byte {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(kvValue(f.value))
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func kvValue(v slog.Value) string {
	s := valueString(v)
	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return strconv.Quote(s)
	}
	return s
}

func encodeJSON(fields []field) []byte {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := json.Marshal(f.key)
		b.Write(key)
		b.WriteByte(':')
		b.Write(jsonValue(f.value))
	}
	b.WriteString("}\n")
	return []byte(b.String())
}

func jsonValue(v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindInt64:
		return []byte(strconv.FormatInt(v.Int64(), 10))
	case slog.KindUint64:
		return []byte(strconv.FormatUint(v.Uint64(), 10))
	case slog.KindFloat64:
		return []byte(strconv.FormatFloat(v.Float64(), 'g', -1, 64))
	case slog.KindBool:
		return []byte(strconv.FormatBool(v.Bool()))
	default:
		data, err := json.Marshal(valueString(v))
		if err != nil {
			return []byte(`"?"`)
		}
		return data
	}
}

func valueString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindDuration:
		return RoundMS(v.Duration()).String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	default:
		return v.String()
	}
}
