package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.file", cfg.Store.File)
	v.SetDefault("store.redis.addr", cfg.Store.Redis.Addr)
	v.SetDefault("store.redis.password", cfg.Store.Redis.Password)
	v.SetDefault("store.redis.db", cfg.Store.Redis.DB)
	v.SetDefault("store.redis.key", cfg.Store.Redis.Key)
	v.SetDefault("browser.remote_url", cfg.Browser.RemoteURL)
	v.SetDefault("browser.exec_path", cfg.Browser.ExecPath)
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("reconcile.debounce_ms", cfg.Reconcile.DebounceMS)
	v.SetDefault("reconcile.startup_retries", cfg.Reconcile.StartupRetries)
	v.SetDefault("reconcile.startup_delay_ms", cfg.Reconcile.StartupDelayMS)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)
	v.SetDefault("http.hub_history", cfg.HTTP.HubHistory)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
		switch v.GetString("store.backend") {
		case StoreFile:
			if strings.TrimSpace(v.GetString("store.file")) == "" {
				return Config{}, fmt.Errorf("store.file is required for the file backend")
			}
		case StoreRedis:
			if strings.TrimSpace(v.GetString("store.redis.addr")) == "" {
				return Config{}, fmt.Errorf("store.redis.addr is required for the redis backend")
			}
		case StoreMemory:
		default:
			return Config{}, fmt.Errorf("unsupported store.backend %q", v.GetString("store.backend"))
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateHTTPConfig(cfg.HTTP); err != nil {
		return Config{}, err
	}
	if err := validateBrowserConfig(cfg.Browser); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateHTTPConfig(cfg HTTPConfig) error {
	basePath := strings.TrimSpace(cfg.BasePath)
	if basePath != "" {
		if strings.Contains(basePath, "://") {
			return fmt.Errorf("http.base_path must be a path prefix, not a URL")
		}
		if strings.ContainsAny(basePath, "?#") {
			return fmt.Errorf("http.base_path must not include query or fragment")
		}
	}
	return nil
}

func validateBrowserConfig(cfg BrowserConfig) error {
	remote := strings.TrimSpace(cfg.RemoteURL)
	if remote == "" {
		return nil
	}
	parsed, err := url.Parse(remote)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("browser.remote_url must be a DevTools URL (e.g. ws://127.0.0.1:9222)")
	}
	switch parsed.Scheme {
	case "ws", "wss", "http", "https":
		return nil
	default:
		return fmt.Errorf("browser.remote_url scheme %q is not supported", parsed.Scheme)
	}
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Store.File = expandEnv(cfg.Store.File)
	cfg.Store.Redis.Addr = expandEnv(cfg.Store.Redis.Addr)
	cfg.Store.Redis.Password = expandEnv(cfg.Store.Redis.Password)
	cfg.Browser.RemoteURL = expandEnv(cfg.Browser.RemoteURL)
	cfg.Browser.ExecPath = expandEnv(cfg.Browser.ExecPath)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
