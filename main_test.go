package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	mode, path := parseArgs(nil)
	assert.Equal(t, ModeClient, mode)
	assert.Equal(t, "", path)

	mode, path = parseArgs([]string{"--daemon", "--config", "/tmp/c.yaml"})
	assert.Equal(t, ModeDaemon, mode)
	assert.Equal(t, "/tmp/c.yaml", path)

	mode, path = parseArgs([]string{"--config=/etc/se.yaml"})
	assert.Equal(t, ModeClient, mode)
	assert.Equal(t, "/etc/se.yaml", path)
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := loadConfig("", "")
	require.NoError(t, err)

	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "streamedit", config.Namespace)
	assert.Equal(t, 120, config.HighlightDebounce)
	assert.Equal(t, 1500, config.WaitingHintDelay)
	assert.Equal(t, 60000, config.CompletionTimeout)
	assert.False(t, config.LockWhileStreaming)
}

func TestLoadConfig_JSONFromEnv(t *testing.T) {
	config, err := loadConfig("", `{"provider_url": "http://llm:9000", "provider_model": "coder", "provider_temperature": 0.3, "lock_while_streaming": true, "log_level": "debug"}`)
	require.NoError(t, err)

	assert.Equal(t, "http://llm:9000", config.ProviderURL)
	assert.Equal(t, "coder", config.ProviderModel)
	assert.Equal(t, 0.3, config.ProviderTemperature)
	assert.True(t, config.LockWhileStreaming)
	assert.Equal(t, "debug", config.LogLevel)
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamedit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider_model: local\nhistory_turns: 3\ncompress_requests: true\nhighlight_debounce: 50\n"), 0644))

	// the file wins over the environment
	config, err := loadConfig(path, `{"provider_model": "ignored"}`)
	require.NoError(t, err)

	assert.Equal(t, "local", config.ProviderModel)
	assert.Equal(t, 3, config.HistoryTurns)
	assert.True(t, config.CompressRequests)
	assert.Equal(t, 50, config.HighlightDebounce)
}

func TestLoadConfig_APIKeyFromEnv(t *testing.T) {
	t.Setenv("STREAMEDIT_TEST_KEY", "sk-test")

	config, err := loadConfig("", "api_key_env: STREAMEDIT_TEST_KEY")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", config.APIKey)
	assert.NotContains(t, config.String(), "sk-test")
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := loadConfig("", "{not json")
	assert.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)

	_, err = loadConfig("", "provider_temperature: 5")
	assert.ErrorContains(t, err, "provider_temperature")

	_, err = loadConfig("", "history_turns: -1")
	assert.ErrorContains(t, err, "history_turns")
}

func TestEngineConfig(t *testing.T) {
	config, err := loadConfig("", "lock_while_streaming: true")
	require.NoError(t, err)

	ec := engineConfig(config)

	assert.Equal(t, 60*time.Second, ec.CompletionTimeout)
	assert.Equal(t, 120*time.Millisecond, ec.HighlightDebounce)
	assert.Equal(t, 1500*time.Millisecond, ec.WaitingHintDelay)
	assert.True(t, ec.LockWhileStreaming)
}

func TestIdleExpired(t *testing.T) {
	start := time.Unix(1000, 0)

	assert.False(t, idleExpired(start, start.Add(29*time.Second), 30*time.Second))
	assert.True(t, idleExpired(start, start.Add(30*time.Second), 30*time.Second))
}
