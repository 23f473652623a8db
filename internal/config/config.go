// Package config loads taskdeck client configuration from
// ~/.taskdeck/config.yaml with environment overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/basket/taskdeck/internal/otel"
)

// Config holds the client configuration.
type Config struct {
	HomeDir string `yaml:"-"`

	// BaseURL is the backend API root, including any path prefix
	// (e.g. http://localhost:8000/api).
	BaseURL string `yaml:"base_url"`

	LogLevel string `yaml:"log_level"`

	// RequestTimeoutSeconds bounds each gateway call. 0 uses the default (15s).
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`

	OTel otel.Config `yaml:"otel"`
}

const (
	defaultBaseURL        = "http://localhost:8000/api"
	defaultRequestTimeout = 15
)

func defaultConfig() Config {
	return Config{
		BaseURL:               defaultBaseURL,
		LogLevel:              "info",
		RequestTimeoutSeconds: defaultRequestTimeout,
	}
}

// HomeDir resolves the taskdeck data directory. TASKDECK_HOME overrides
// the default ~/.taskdeck.
func HomeDir() string {
	if override := os.Getenv("TASKDECK_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".taskdeck")
}

// ConfigPath returns the path to config.yaml within the given home directory.
func ConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

// Load reads config.yaml from the taskdeck home (creating the directory on
// first run), applies env overrides, and normalizes defaults.
func Load() (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = HomeDir()

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create taskdeck home: %w", err)
	}

	configPath := ConfigPath(cfg.HomeDir)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config.yaml: %w", err)
		}
		if werr := WriteMinimal(cfg.HomeDir); werr != nil {
			return cfg, fmt.Errorf("write initial config.yaml: %w", werr)
		}
	} else if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TASKDECK_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("TASKDECK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TASKDECK_REQUEST_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RequestTimeoutSeconds = n
		}
	}
}

func normalize(cfg *Config) {
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = defaultRequestTimeout
	}
}

func validate(cfg Config) error {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", cfg.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url missing host: %q", cfg.BaseURL)
	}
	return nil
}

// WriteMinimal writes a commented starter config.yaml. Existing files are
// left alone.
func WriteMinimal(homeDir string) error {
	configPath := ConfigPath(homeDir)
	if _, err := os.Stat(configPath); err == nil {
		return nil
	}
	content := `# taskdeck client configuration
base_url: ` + defaultBaseURL + `
log_level: info
request_timeout_seconds: ` + strconv.Itoa(defaultRequestTimeout) + `

# otel:
#   enabled: true
#   exporter: stdout   # otlp-http | stdout | none
`
	return os.WriteFile(configPath, []byte(content), 0o644)
}
