// Package config provides configuration management for retrace.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

const (
	// DefaultListenPort is the port the worker HTTP service binds to.
	DefaultListenPort = 37820

	// DefaultCaptureIntervalMinutes is the automatic capture period.
	DefaultCaptureIntervalMinutes = 5

	// DefaultProviderTimeoutMs bounds each context-provider call so one
	// broken provider cannot stall the whole enrichment.
	DefaultProviderTimeoutMs = 3000

	// DefaultClassifyMode enables the classification router. "off" is the
	// global kill switch.
	DefaultClassifyMode = "on"

	// DefaultLLMEndpoint is the local classification sidecar. When nothing
	// listens there the router falls through to the rules provider.
	DefaultLLMEndpoint = "http://127.0.0.1:37821"
)

// DefaultProviderOrder is the classification fallback chain, tried strictly
// in order.
var DefaultProviderOrder = []string{"llm", "rules"}

// Config holds runtime configuration for the retrace daemon.
type Config struct {
	ListenPort             int
	CaptureIntervalMinutes int
	ProviderOrder          []string
	ProviderTimeoutMs      int
	ClassifyMode           string
	LLMEndpoint            string
	MaxConns               int
	DBPath                 string
	ScreenshotsDir         string
	RulesPath              string
}

// settingsFile mirrors the on-disk settings.json keys.
type settingsFile struct {
	ListenPort        int    `json:"RETRACE_LISTEN_PORT"`
	CaptureInterval   int    `json:"RETRACE_CAPTURE_INTERVAL_MINUTES"`
	ProviderOrder     string `json:"RETRACE_PROVIDER_ORDER"`
	ProviderTimeoutMs int    `json:"RETRACE_PROVIDER_TIMEOUT_MS"`
	ClassifyMode      string `json:"RETRACE_CLASSIFY_MODE"`
	LLMEndpoint       string `json:"RETRACE_LLM_ENDPOINT"`
	MaxConns          int    `json:"RETRACE_MAX_CONNS"`
}

var (
	cached   *Config
	cachedMu sync.Mutex
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		ListenPort:             DefaultListenPort,
		CaptureIntervalMinutes: DefaultCaptureIntervalMinutes,
		ProviderOrder:          DefaultProviderOrder,
		ProviderTimeoutMs:      DefaultProviderTimeoutMs,
		ClassifyMode:           DefaultClassifyMode,
		LLMEndpoint:            DefaultLLMEndpoint,
		MaxConns:               4,
		DBPath:                 DBPath(),
		ScreenshotsDir:         ScreenshotsDir(),
		RulesPath:              RulesPath(),
	}
}

// DataDir returns the retrace data directory (~/.retrace).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".retrace")
}

// DBPath returns the SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), "retrace.db")
}

// ScreenshotsDir returns the on-disk image directory.
func ScreenshotsDir() string {
	return filepath.Join(DataDir(), "screenshots")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// RulesPath returns the automation policy rules file path.
func RulesPath() string {
	return filepath.Join(DataDir(), "rules.yaml")
}

// EnsureDataDir creates the data and screenshots directories if missing.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o750); err != nil {
		return err
	}
	return os.MkdirAll(ScreenshotsDir(), 0o750)
}

// EnsureSettings creates a default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	defaults := settingsFile{
		ListenPort:        DefaultListenPort,
		CaptureInterval:   DefaultCaptureIntervalMinutes,
		ProviderOrder:     strings.Join(DefaultProviderOrder, ","),
		ProviderTimeoutMs: DefaultProviderTimeoutMs,
		ClassifyMode:      DefaultClassifyMode,
		LLMEndpoint:       DefaultLLMEndpoint,
		MaxConns:          4,
	}
	data, err := json.MarshalIndent(defaults, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// EnsureAll creates the data directory and settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load reads configuration from the settings file, falling back to defaults
// for missing or invalid values. An unreadable or malformed settings file is
// not an error; defaults are used.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err != nil {
		return cfg, nil
	}

	var settings settingsFile
	if err := json.Unmarshal(data, &settings); err != nil {
		return cfg, nil
	}

	if settings.ListenPort > 0 {
		cfg.ListenPort = settings.ListenPort
	}
	if settings.CaptureInterval > 0 {
		cfg.CaptureIntervalMinutes = settings.CaptureInterval
	}
	if order := splitTrim(settings.ProviderOrder); len(order) > 0 {
		cfg.ProviderOrder = order
	}
	if settings.ProviderTimeoutMs > 0 {
		cfg.ProviderTimeoutMs = settings.ProviderTimeoutMs
	}
	if settings.ClassifyMode != "" {
		cfg.ClassifyMode = settings.ClassifyMode
	}
	if settings.LLMEndpoint != "" {
		cfg.LLMEndpoint = settings.LLMEndpoint
	}
	if settings.MaxConns > 0 {
		cfg.MaxConns = settings.MaxConns
	}

	return cfg, nil
}

// Get returns the cached global config, loading it on first use.
func Get() *Config {
	cachedMu.Lock()
	defer cachedMu.Unlock()
	if cached == nil {
		cfg, _ := Load()
		cached = cfg
	}
	return cached
}

// GetListenPort returns the listen port, honoring the RETRACE_LISTEN_PORT
// environment variable over the settings file.
func GetListenPort() int {
	if env := os.Getenv("RETRACE_LISTEN_PORT"); env != "" {
		if port, err := strconv.Atoi(env); err == nil && port > 0 {
			return port
		}
	}
	return Get().ListenPort
}

// splitTrim splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := []string{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
