package schema

import "time"

// ServiceConfig defines timing defaults for the reconciler.
type ServiceConfig struct {
	// Debounce is the quiet period before a window's tabs are re-read.
	Debounce time.Duration
	// StartupRetries bounds the wait for the host to report windows.
	StartupRetries int
	// StartupDelay is the fixed pause between startup polls.
	StartupDelay time.Duration
}

const (
	// DefaultDebounce is the default per-window quiet period.
	DefaultDebounce = 400 * time.Millisecond
	// DefaultStartupRetries is the default number of startup polls.
	DefaultStartupRetries = 10
	// DefaultStartupDelay is the default pause between startup polls.
	DefaultStartupDelay = 500 * time.Millisecond
)

// NormalizeServiceConfig applies defaults.
func NormalizeServiceConfig(cfg ServiceConfig) ServiceConfig {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.StartupRetries <= 0 {
		cfg.StartupRetries = DefaultStartupRetries
	}
	if cfg.StartupDelay <= 0 {
		cfg.StartupDelay = DefaultStartupDelay
	}
	return cfg
}
