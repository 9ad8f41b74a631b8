package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// ErrRequiresRestart is returned when a changed configuration key is
// not in the reloadable whitelist.
var ErrRequiresRestart = errors.New("configuration change requires restart")

// ReloadFunc is invoked with the new configuration after a successful reload.
type ReloadFunc func(*Config)

// Manager owns the live configuration and supports hot reload of
// whitelisted keys, triggered by file changes or POST /-/reload.
type Manager struct {
	path    string
	logger  *slog.Logger
	current atomic.Pointer[Config]

	mu        sync.Mutex
	callbacks []ReloadFunc
	watcher   *fsnotify.Watcher
}

// NewManager creates a configuration manager around an already-loaded config.
func NewManager(path string, cfg *Config, logger *slog.Logger) *Manager {
	m := &Manager{
		path:   path,
		logger: logger,
	}
	m.current.Store(cfg)
	return m
}

// Get returns the current configuration. Safe for concurrent use.
func (m *Manager) Get() *Config {
	return m.current.Load()
}

// OnReload registers a callback invoked after each successful reload.
func (m *Manager) OnReload(fn ReloadFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// TryReload re-reads the configuration file and applies it if only
// reloadable keys changed. Returns ErrRequiresRestart when a static key
// differs; the running config is left untouched in that case.
func (m *Manager) TryReload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := Load(m.path)
	if err != nil {
		return fmt.Errorf("reloading config: %w", err)
	}

	old := m.current.Load()
	if key := firstStaticChange(old, next); key != "" {
		m.logger.Warn("static configuration change detected",
			"key", key,
			"reason", getRestartReason(key),
		)
		return ErrRequiresRestart
	}

	m.current.Store(next)

	for _, fn := range m.callbacks {
		fn(next)
	}

	m.logger.Info("configuration reloaded", "path", m.path)
	return nil
}

// Watch starts an fsnotify watcher on the config file. Reload failures
// are logged and the previous config stays active.
func (m *Manager) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	if err := watcher.Add(m.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watching config file: %w", err)
	}
	m.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := m.TryReload(); err != nil {
					if errors.Is(err, ErrRequiresRestart) {
						continue
					}
					m.logger.Error("config reload failed", "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Error("config watcher error", "error", err)
			}
		}
	}()

	return nil
}

// Close stops the file watcher.
func (m *Manager) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}

// firstStaticChange returns the first changed key that is not in the
// reloadable whitelist, or "" when the change set is safe to apply.
// The check is exhaustive over the config struct so an unlisted key
// can never slip through as a silent no-op reload.
func firstStaticChange(old, next *Config) string {
	changes := []struct {
		key     string
		changed bool
	}{
		{"server", old.Server != next.Server},
		{"storage", old.Storage != next.Storage},
		{"slack.bot_token", old.Slack.BotToken != next.Slack.BotToken},
		{"slack.signing_secret", old.Slack.SigningSecret != next.Slack.SigningSecret},
		{"slack.bot_user_id", old.Slack.BotUserID != next.Slack.BotUserID},
		{"slack.api_url", old.Slack.APIURL != next.Slack.APIURL},
		{"webhook.verify_signatures", old.Webhook.VerifySignatures != next.Webhook.VerifySignatures},
		{"webhook.dedup_window", old.Webhook.DedupWindow != next.Webhook.DedupWindow},
		{"webhook.processing_timeout", old.Webhook.ProcessingTimeout != next.Webhook.ProcessingTimeout},
		{"webhook.post_timeout", old.Webhook.PostTimeout != next.Webhook.PostTimeout},
		{"webhook.max_response_length", old.Webhook.MaxResponseLength != next.Webhook.MaxResponseLength},
		{"webhook.enable_threading", old.Webhook.EnableThreading != next.Webhook.EnableThreading},
		{"webhook.enable_direct_messages", old.Webhook.EnableDirectMessages != next.Webhook.EnableDirectMessages},
		{"llm", old.LLM != next.LLM},
		{"logging.level", old.Logging.Level != next.Logging.Level},
		{"logging.format", old.Logging.Format != next.Logging.Format},
	}

	for _, c := range changes {
		if c.changed && !IsReloadable(c.key) {
			return c.key
		}
	}
	return ""
}
