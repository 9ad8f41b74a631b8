package config

import (
	"fmt"
	"time"
)

// reloadableKeys defines the whitelist of configuration keys that can
// be hot-reloaded. Everything else requires a restart; the manager
// rejects any change outside this set.
var reloadableKeys = map[string]bool{
	"logging.level":                  true,
	"logging.format":                 true,
	"webhook.max_response_length":    true,
	"webhook.enable_threading":       true,
	"webhook.enable_direct_messages": true,
}

// staticKeys maps non-reloadable keys to the reason a restart is needed.
var staticKeys = map[string]string{
	"server":                     "HTTP listener restart required",
	"storage":                    "Dedup store recreation required",
	"slack.bot_token":            "Slack client recreation required",
	"slack.signing_secret":       "Signature verifier recreation required",
	"slack.bot_user_id":          "Mention matching is wired at startup",
	"slack.api_url":              "Slack client recreation required",
	"webhook.verify_signatures":  "Gateway verification is wired at startup",
	"webhook.dedup_window":       "Dedup store TTL is fixed at construction",
	"webhook.processing_timeout": "Dispatch budget is wired at startup",
	"webhook.post_timeout":       "Delivery retry policy is wired at startup",
	"llm":                        "LLM client recreation required",
}

// IsReloadable returns true if the given config key can be hot-reloaded.
func IsReloadable(key string) bool {
	return reloadableKeys[key]
}

// getRestartReason returns the reason why a static config key requires restart.
func getRestartReason(key string) string {
	if reason, ok := staticKeys[key]; ok {
		return reason
	}
	return "unknown configuration requires restart"
}

// ValidateLogLevel checks if the log level is valid.
func ValidateLogLevel(level string) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}
	return nil
}

// ValidateLogFormat checks if the log format is valid.
func ValidateLogFormat(format string) error {
	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[format] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", format)
	}
	return nil
}

// ValidateNonEmpty checks if a string is non-empty.
func ValidateNonEmpty(value string, fieldName string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateDuration checks if a duration is greater than zero.
func ValidateDuration(duration time.Duration, fieldName string) error {
	if duration <= 0 {
		return fmt.Errorf("%s must be greater than 0", fieldName)
	}
	return nil
}

// ValidatePort checks if a port number is valid.
func ValidatePort(port int, fieldName string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", fieldName, port)
	}
	return nil
}

// ValidateStorageType checks if the storage type is valid.
func ValidateStorageType(storageType string) error {
	validTypes := map[string]bool{
		"memory": true,
		"sqlite": true,
		"mysql":  true,
	}
	if !validTypes[storageType] {
		return fmt.Errorf("invalid storage type: %s (must be memory, sqlite, or mysql)", storageType)
	}
	return nil
}
