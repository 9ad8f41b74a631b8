package config

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T, content string) (*Manager, string) {
	t.Helper()

	path := writeConfigFile(t, content)
	cfg, err := Load(path)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(path, cfg, logger), path
}

func TestManager_TryReload_AppliesReloadableKeys(t *testing.T) {
	m, path := testManager(t, minimalConfig+`
webhook:
  max_response_length: 4000
  enable_threading: true
`)

	var got *Config
	m.OnReload(func(next *Config) { got = next })

	require.NoError(t, os.WriteFile(path, []byte(minimalConfig+`
webhook:
  max_response_length: 2000
  enable_threading: false
`), 0o600))

	require.NoError(t, m.TryReload())

	assert.Equal(t, 2000, m.Get().Webhook.MaxResponseLength)
	assert.False(t, m.Get().Webhook.EnableThreading)

	require.NotNil(t, got, "callback must fire on successful reload")
	assert.Equal(t, 2000, got.Webhook.MaxResponseLength)
}

func TestManager_TryReload_RejectsStaticKeys(t *testing.T) {
	tests := []struct {
		name string
		next string
	}{
		{"server port", minimalConfig + "server:\n  port: 9999\n"},
		{"dedup window", minimalConfig + "webhook:\n  dedup_window: 1m\n"},
		{"processing timeout", minimalConfig + "webhook:\n  processing_timeout: 30s\n"},
		{"post timeout", minimalConfig + "webhook:\n  post_timeout: 3s\n"},
		{"llm model", `
slack:
  bot_token: xoxb-test
  signing_secret: secret
llm:
  api_key: sk-test
  model: other-model
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, path := testManager(t, minimalConfig)
			before := m.Get()

			require.NoError(t, os.WriteFile(path, []byte(tt.next), 0o600))

			err := m.TryReload()
			require.ErrorIs(t, err, ErrRequiresRestart)
			assert.Same(t, before, m.Get(), "rejected reload must not swap the config")
		})
	}
}

func TestManager_TryReload_KeepsConfigOnLoadError(t *testing.T) {
	m, path := testManager(t, minimalConfig)
	before := m.Get()

	require.NoError(t, os.WriteFile(path, []byte("slack: ["), 0o600))

	err := m.TryReload()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRequiresRestart)
	assert.Same(t, before, m.Get())
}

func TestManager_Watch_ReloadsOnWrite(t *testing.T) {
	m, path := testManager(t, minimalConfig+`
webhook:
  max_response_length: 4000
`)
	defer m.Close()

	require.NoError(t, m.Watch())

	require.NoError(t, os.WriteFile(path, []byte(minimalConfig+`
webhook:
  max_response_length: 1500
`), 0o600))

	require.Eventually(t, func() bool {
		return m.Get().Webhook.MaxResponseLength == 1500
	}, 2*time.Second, 10*time.Millisecond)
}
