package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/tabkeeper/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string          `mapstructure:"state_dir" yaml:"state_dir"`
	Store         StoreConfig     `mapstructure:"store" yaml:"store"`
	Browser       BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Reconcile     ReconcileConfig `mapstructure:"reconcile" yaml:"reconcile"`
	HTTP          HTTPConfig      `mapstructure:"http" yaml:"http"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// Store backends.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// StoreConfig selects where the session collection is persisted.
type StoreConfig struct {
	Backend string      `mapstructure:"backend" yaml:"backend"`
	File    string      `mapstructure:"file" yaml:"file"`
	Redis   RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig configures the redis store backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Key      string `mapstructure:"key" yaml:"key"`
}

// BrowserConfig configures the DevTools windowing host. An empty RemoteURL
// launches a local browser.
type BrowserConfig struct {
	RemoteURL string `mapstructure:"remote_url" yaml:"remote_url"`
	ExecPath  string `mapstructure:"exec_path" yaml:"exec_path"`
	Headless  bool   `mapstructure:"headless" yaml:"headless"`
}

// ReconcileConfig controls reconciliation timing.
type ReconcileConfig struct {
	DebounceMS     int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	StartupRetries int `mapstructure:"startup_retries" yaml:"startup_retries"`
	StartupDelayMS int `mapstructure:"startup_delay_ms" yaml:"startup_delay_ms"`
}

// ServiceConfig converts the timing settings to the core service config.
func (r ReconcileConfig) ServiceConfig() schema.ServiceConfig {
	return schema.NormalizeServiceConfig(schema.ServiceConfig{
		Debounce:       time.Duration(r.DebounceMS) * time.Millisecond,
		StartupRetries: r.StartupRetries,
		StartupDelay:   time.Duration(r.StartupDelayMS) * time.Millisecond,
	})
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr       string `mapstructure:"addr" yaml:"addr"`
	BasePath   string `mapstructure:"base_path" yaml:"base_path"`
	HubHistory int    `mapstructure:"hub_history" yaml:"hub_history"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	stateDir := filepath.Join(home, ".tabkeeper", "state")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      stateDir,
		Store: StoreConfig{
			Backend: StoreFile,
			File:    filepath.Join(stateDir, "sessions.json"),
			Redis: RedisConfig{
				Addr: "127.0.0.1:6379",
				Key:  "tabkeeper:windows",
			},
		},
		Browser: BrowserConfig{
			Headless: false,
		},
		Reconcile: ReconcileConfig{
			DebounceMS:     int(schema.DefaultDebounce / time.Millisecond),
			StartupRetries: schema.DefaultStartupRetries,
			StartupDelayMS: int(schema.DefaultStartupDelay / time.Millisecond),
		},
		HTTP: HTTPConfig{
			Addr:       "127.0.0.1:27490",
			BasePath:   "",
			HubHistory: 1000,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tabkeeper", "config.yaml"), nil
}
