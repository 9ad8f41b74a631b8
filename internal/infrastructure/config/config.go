package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Slack   SlackConfig   `yaml:"slack"`
	Webhook WebhookConfig `yaml:"webhook"`
	LLM     LLMConfig     `yaml:"llm"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects the dedup store backend.
type StorageConfig struct {
	Type   string       `yaml:"type"` // "memory", "sqlite", or "mysql"
	SQLite SQLiteConfig `yaml:"sqlite"`
	MySQL  MySQLConfig  `yaml:"mysql"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"` // Database file path, use ":memory:" for in-memory
}

// MySQLConfig holds MySQL-specific settings. A shared MySQL dedup store
// is what makes the dedup window correct across multiple instances.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SlackConfig holds Slack integration settings.
type SlackConfig struct {
	BotToken      string `yaml:"bot_token"`
	SigningSecret string `yaml:"signing_secret"`
	BotUserID     string `yaml:"bot_user_id"` // Discovered via auth.test when empty
	APIURL        string `yaml:"api_url"`     // Override for testing
}

// WebhookConfig holds the webhook pipeline policy. Loaded once at
// startup; only the keys whitelisted in validator.go may be reloaded.
type WebhookConfig struct {
	VerifySignatures     bool          `yaml:"verify_signatures"`
	DedupWindow          time.Duration `yaml:"dedup_window"`
	ProcessingTimeout    time.Duration `yaml:"processing_timeout"`
	EnableThreading      bool          `yaml:"enable_threading"`
	EnableDirectMessages bool          `yaml:"enable_direct_messages"`
	MaxResponseLength    int           `yaml:"max_response_length"`

	// PostTimeout bounds each outbound Slack call, independent of the
	// overall processing budget.
	PostTimeout time.Duration `yaml:"post_timeout"`
}

// LLMConfig holds answer-generation collaborator settings.
type LLMConfig struct {
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	MaxTokens    int           `yaml:"max_tokens"`
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"system_prompt"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	// Load from file if exists
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			// Expand environment variables in YAML
			expandedData := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Apply defaults
	cfg.applyDefaults()

	// Validate
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// overrideFromEnv overrides config values from environment variables.
func (c *Config) overrideFromEnv() {
	// Server
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	// Slack
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		c.Slack.BotToken = v
	}
	if v := os.Getenv("SLACK_SIGNING_SECRET"); v != "" {
		c.Slack.SigningSecret = v
	}
	if v := os.Getenv("SLACK_BOT_USER_ID"); v != "" {
		c.Slack.BotUserID = v
	}

	// Webhook policy
	if v := os.Getenv("WEBHOOK_VERIFY_SIGNATURES"); v != "" {
		c.Webhook.VerifySignatures = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("WEBHOOK_DEDUP_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Webhook.DedupWindow = d
		}
	}
	if v := os.Getenv("WEBHOOK_PROCESSING_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Webhook.ProcessingTimeout = d
		}
	}
	if v := os.Getenv("WEBHOOK_MAX_RESPONSE_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Webhook.MaxResponseLength = n
		}
	}

	// LLM
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}

	// Logging
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	// Storage
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("SQLITE_DATABASE_PATH"); v != "" {
		c.Storage.SQLite.Path = v
	}
	if v := os.Getenv("MYSQL_HOST"); v != "" {
		c.Storage.MySQL.Host = v
	}
	if v := os.Getenv("MYSQL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Storage.MySQL.Port = port
		}
	}
	if v := os.Getenv("MYSQL_DATABASE"); v != "" {
		c.Storage.MySQL.Database = v
	}
	if v := os.Getenv("MYSQL_USERNAME"); v != "" {
		c.Storage.MySQL.Username = v
	}
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		c.Storage.MySQL.Password = v
	}
}

// applyDefaults sets default values for unset config options.
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	// Webhook defaults
	if c.Webhook.DedupWindow == 0 {
		c.Webhook.DedupWindow = 5 * time.Minute
	}
	if c.Webhook.ProcessingTimeout == 0 {
		c.Webhook.ProcessingTimeout = 2 * time.Minute
	}
	if c.Webhook.MaxResponseLength == 0 {
		c.Webhook.MaxResponseLength = 4000
	}
	if c.Webhook.PostTimeout == 0 {
		c.Webhook.PostTimeout = 10 * time.Second
	}

	// LLM defaults
	if c.LLM.Model == "" {
		c.LLM.Model = "claude-sonnet-4-5"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 2048
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 90 * time.Second
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	// Storage defaults
	if c.Storage.Type == "" {
		c.Storage.Type = "memory"
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "./data/answer-bridge.db"
	}
	if c.Storage.MySQL.Port == 0 {
		c.Storage.MySQL.Port = 3306
	}
}

// validate checks that required configuration is present.
func (c *Config) validate() error {
	if err := ValidateNonEmpty(c.Slack.BotToken, "slack.bot_token"); err != nil {
		return err
	}
	if c.Webhook.VerifySignatures && c.Slack.SigningSecret == "" {
		return fmt.Errorf("slack.signing_secret is required when webhook.verify_signatures is enabled")
	}
	if err := ValidateNonEmpty(c.LLM.APIKey, "llm.api_key"); err != nil {
		return err
	}

	if err := ValidatePort(c.Server.Port, "server.port"); err != nil {
		return err
	}
	if err := ValidateDuration(c.Webhook.DedupWindow, "webhook.dedup_window"); err != nil {
		return err
	}
	if err := ValidateDuration(c.Webhook.ProcessingTimeout, "webhook.processing_timeout"); err != nil {
		return err
	}
	if c.Webhook.MaxResponseLength < 100 {
		return fmt.Errorf("webhook.max_response_length must be at least 100, got %d", c.Webhook.MaxResponseLength)
	}

	if err := ValidateLogLevel(strings.ToLower(c.Logging.Level)); err != nil {
		return err
	}
	if err := ValidateLogFormat(strings.ToLower(c.Logging.Format)); err != nil {
		return err
	}
	if err := ValidateStorageType(strings.ToLower(c.Storage.Type)); err != nil {
		return err
	}

	if strings.ToLower(c.Storage.Type) == "sqlite" && c.Storage.SQLite.Path == "" {
		return fmt.Errorf("storage.sqlite.path is required when storage type is sqlite")
	}
	if strings.ToLower(c.Storage.Type) == "mysql" {
		if c.Storage.MySQL.Host == "" {
			return fmt.Errorf("storage.mysql.host is required when storage type is mysql")
		}
		if c.Storage.MySQL.Database == "" {
			return fmt.Errorf("storage.mysql.database is required when storage type is mysql")
		}
		if c.Storage.MySQL.Username == "" {
			return fmt.Errorf("storage.mysql.username is required when storage type is mysql")
		}
	}

	return nil
}
