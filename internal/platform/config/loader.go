package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader reads the gateway configuration from an optional YAML file layered
// over defaults, with environment variables taking final precedence.
type Loader struct {
	useDotEnv bool
	path      string
}

func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		path:      "config.yaml",
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the configuration file location (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load builds the effective configuration: defaults, then YAML file if
// present, then environment overrides.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("no .env file found, using system environment")
		}
	}

	path := l.path
	if env := os.Getenv("JEWELFINDER_CONFIG"); env != "" {
		path = env
	}

	cfg := DefaultConfig()

	usedPath := ""
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		usedPath = path
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	return &Result{
		Config: cfg,
		Path:   usedPath,
	}, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SEARCH_API_BASE"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Voice.Recognizer.APIKey == "" {
		cfg.Voice.Recognizer.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" && cfg.Voice.Recognizer.BaseURL == "" {
		cfg.Voice.Recognizer.BaseURL = v
	}
	if v := os.Getenv("JEWELFINDER_STATIC_DIR"); v != "" {
		cfg.Server.StaticDir = v
	}
	if v := os.Getenv("JEWELFINDER_LOG_LEVEL"); v != "" {
		cfg.Log.LogLevel = v
	}
}
