package logger

import (
	"log/slog"
	"strings"
)

// Key name fragments whose values are redacted.
var sensitiveKeyPatterns = []string{
	"passphrase",
	"encryption",
	"password",
	"secret",
	"salt",
	"key",
	"credential",
}

// Keys that contain a sensitive fragment but carry no secret.
var safeKeys = map[string]bool{
	"key_count":  true,
	"keys":       true,
	"key_source": true,
}

const redactedValue = "***REDACTED***"

// redactSensitive masks string and byte-slice attributes whose key looks
// sensitive, descending into groups.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		if a.Value.String() != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindAny:
		if b, ok := a.Value.Any().([]byte); ok && len(b) > 0 && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}
	return a
}

// maskValue keeps the first and last three characters of value.
func maskValue(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:3] + "..." + value[len(value)-3:]
}

// RedactString partially masks value for display, for example when printing
// which key is configured.
func RedactString(value string) string {
	if value == "" {
		return ""
	}
	return maskValue(value)
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	if safeKeys[keyLower] {
		return false
	}
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
