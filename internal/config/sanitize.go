package config

import "strings"

// Sanitize returns a copy of the config with secrets masked.
func Sanitize(cfg *Config) *Config {
	sanitized := *cfg

	if sanitized.Encryption.Key != "" {
		sanitized.Encryption.Key = maskSecret(sanitized.Encryption.Key)
	}
	if sanitized.Encryption.Passphrase != "" {
		sanitized.Encryption.Passphrase = maskSecret(sanitized.Encryption.Passphrase)
	}

	return &sanitized
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
