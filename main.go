package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"streamedit/logger"

	"gopkg.in/yaml.v3"
)

const configEnv = "STREAMEDIT_CONFIG"

// Config is read from STREAMEDIT_CONFIG (JSON or YAML) or from the file
// given with --config. Durations are in milliseconds.
type Config struct {
	NsID                   int     `yaml:"ns_id"`
	Namespace              string  `yaml:"namespace"`
	LogLevel               string  `yaml:"log_level"` // trace, debug, info, warn, error
	DebugImmediateShutdown bool    `yaml:"debug_immediate_shutdown"`
	IdleShutdown           int     `yaml:"idle_shutdown"` // daemon exits after this long without editors
	ProviderURL            string  `yaml:"provider_url"`
	APIKey                 string  `yaml:"api_key"`
	APIKeyEnv              string  `yaml:"api_key_env"` // env var holding the key, used when api_key is empty
	ProviderModel          string  `yaml:"provider_model"`
	ProviderTemperature    float64 `yaml:"provider_temperature"`
	ProviderMaxTokens      int     `yaml:"provider_max_tokens"`
	MaxContextTokens       int     `yaml:"max_context_tokens"`
	CompletionPath         string  `yaml:"completion_path"`
	CompressRequests       bool    `yaml:"compress_requests"`
	CompletionTimeout      int     `yaml:"completion_timeout"`
	HighlightDebounce      int     `yaml:"highlight_debounce"`
	WaitingHintDelay       int     `yaml:"waiting_hint_delay"`
	LockWhileStreaming     bool    `yaml:"lock_while_streaming"`
	HistoryTurns           int     `yaml:"history_turns"`
	MetricsURL             string  `yaml:"metrics_url"`
	EditorInfo             string  `yaml:"editor_info"`
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Namespace == "" {
		c.Namespace = "streamedit"
	}
	if c.ProviderURL == "" {
		c.ProviderURL = "http://localhost:8000"
	}
	if c.MaxContextTokens == 0 {
		c.MaxContextTokens = 8000
	}
	if c.CompletionTimeout == 0 {
		c.CompletionTimeout = 60000
	}
	if c.HighlightDebounce == 0 {
		c.HighlightDebounce = 120
	}
	if c.WaitingHintDelay == 0 {
		c.WaitingHintDelay = 1500
	}
	if c.IdleShutdown == 0 {
		c.IdleShutdown = 30000
	}
	if c.APIKey == "" && c.APIKeyEnv != "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
}

func (c *Config) validate() error {
	if c.ProviderTemperature < 0 || c.ProviderTemperature > 2 {
		return fmt.Errorf("provider_temperature must be between 0 and 2, got %v", c.ProviderTemperature)
	}
	for name, v := range map[string]int{
		"completion_timeout": c.CompletionTimeout,
		"highlight_debounce": c.HighlightDebounce,
		"waiting_hint_delay": c.WaitingHintDelay,
		"history_turns":      c.HistoryTurns,
		"idle_shutdown":      c.IdleShutdown,
		"max_context_tokens": c.MaxContextTokens,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, v)
		}
	}
	return nil
}

// String hides the API key so the config can be logged
func (c Config) String() string {
	if c.APIKey != "" {
		c.APIKey = "***"
	}
	type plain Config
	return fmt.Sprintf("%+v", plain(c))
}

type ServerMode string

const (
	ModeDaemon ServerMode = "daemon"
	ModeClient ServerMode = "client"
)

// Setup logger to log to a file in the same directory as the executable
// Caller must defer logger.Close()
func setupLogger(logLevel string) *logger.LimitedLogger {
	f, err := os.OpenFile(execRelative("streamedit.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening file: %v", err)
	}

	level := logger.ParseLogLevel(logLevel)
	limitedLogger := logger.NewLimitedLogger(f, level)
	log.SetOutput(limitedLogger)
	return limitedLogger
}

func execDir() string {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	return filepath.Dir(execPath)
}

func execRelative(name string) string {
	return filepath.Join(execDir(), name)
}

func getSocketPath() string { return execRelative("streamedit.sock") }

func getPidPath() string { return execRelative("streamedit.pid") }

func isDaemonRunning() (bool, int) {
	data, err := os.ReadFile(getPidPath())
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0
	}

	// Check if process is still running
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// On Unix, Signal(0) checks if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil, pid
}

// parseArgs returns the server mode and the --config file, if any
func parseArgs(args []string) (ServerMode, string) {
	mode := ModeClient
	configPath := ""
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--daemon":
			mode = ModeDaemon
		case args[i] == "--config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--config="):
			configPath = strings.TrimPrefix(args[i], "--config=")
		}
	}
	return mode, configPath
}

// loadConfig decodes the config file when given, else the environment value
func loadConfig(configPath, envValue string) (Config, error) {
	var config Config

	data := []byte(envValue)
	if configPath != "" {
		var err error
		if data, err = os.ReadFile(configPath); err != nil {
			return config, fmt.Errorf("read config: %w", err)
		}
	}

	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("invalid config: %w", err)
		}
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func runDaemon(configPath string) {
	config, err := loadConfig(configPath, os.Getenv(configEnv))
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := setupLogger(config.LogLevel)
	defer logger.Close()

	log.Printf("config: %s", config)

	daemon, err := NewDaemon(config)
	if err != nil {
		log.Fatalf("error creating daemon: %v", err)
	}

	if err := daemon.Start(); err != nil {
		log.Fatalf("error starting daemon: %v", err)
	}
}

func runClient(configPath string) {
	client := NewClient(configPath)

	if err := client.EnsureDaemonRunning(); err != nil {
		log.Fatalf("error ensuring daemon is running: %v", err)
	}

	if err := client.Connect(); err != nil {
		log.Fatalf("error connecting to daemon: %v", err)
	}
}

func main() {
	mode, configPath := parseArgs(os.Args[1:])

	switch mode {
	case ModeDaemon:
		runDaemon(configPath)
	case ModeClient:
		runClient(configPath)
	}
}
