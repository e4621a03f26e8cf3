package logger

import "strings"

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

// defaultKeyOrder fixes the position of well-known keys in emitted lines so
// operators can scan logs without hunting for fields.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"msg",
	"status",
	"rid",
	"transport",
	"user_key",
	"handler",
	"route",
	"method",
	"http_code",
	"record_id",
	"from_status",
	"to_status",
	"strategy",
	"operation",
	"count",
	"duration_ms",
	"duration",
	"payload",
	"mode",
	"listen",
	"url",
	"db",
	"host",
	"port",
	"pool_open",
	"err",
	"err_kind",
	"attempts",
}
