package config

import (
	"os"
	"strings"
)

// SequenceRedisLockEnabled takes a short Redis lock around sequence issuance
// before the counter row is locked. The row lock stays authoritative.
//
// Set via env:
// - SEQUENCE_REDIS_LOCK=true
func SequenceRedisLockEnabled() bool {
	return envBool("SEQUENCE_REDIS_LOCK")
}

// SkipMigrations disables AutoMigrate on startup (schema managed elsewhere).
//
// Set via env:
// - SKIP_MIGRATIONS=true
func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS")
}

// IsProduction reports GO_ENV=production.
func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
