package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBackendURL = "http://localhost:8001"
	DefaultTimeout    = 180 * time.Second
	DefaultDebounce   = time.Second
	DefaultListenAddr = ":3000"
)

// Environment variables read by LoadConfig
const (
	EnvBackendURL    = "RAG_API_URL"
	EnvDatabasePath  = "PTSP_CHAT_DB"
	EnvTimeout       = "PTSP_CHAT_TIMEOUT"
	EnvListenAddr    = "PTSP_CHAT_LISTEN"
	EnvDictationCmd  = "PTSP_DICTATION_CMD"
	defaultConfigDir = ".ptsp-chat"
)

// Config holds runtime settings
type Config struct {
	BackendURL   string        `yaml:"backend_url"`
	Timeout      time.Duration `yaml:"timeout"`
	Debounce     time.Duration `yaml:"debounce"`
	DatabasePath string        `yaml:"database"`
	ListenAddr   string        `yaml:"listen"`
	MaxSessions  int           `yaml:"max_sessions"`
	DictationCmd string        `yaml:"dictation_command"`
}

// DefaultConfig returns the built-in settings
func DefaultConfig() Config {
	return Config{
		BackendURL:   DefaultBackendURL,
		Timeout:      DefaultTimeout,
		Debounce:     DefaultDebounce,
		DatabasePath: filepath.Join(configDir(), "history.db"),
		ListenAddr:   DefaultListenAddr,
		MaxSessions:  MaxSessions,
	}
}

// DefaultConfigPath returns ~/.ptsp-chat/config.yaml
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultConfigDir
	}
	return filepath.Join(home, defaultConfigDir)
}

// LoadConfig layers defaults, the YAML file at path (optional), a .env
// file in the working directory and the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			LogDebug("No config file at %s", path)
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, &ParseError{Source: "config", Key: path, Err: err}
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		LogWarn("Failed to load .env: %v", err)
	}

	if v := os.Getenv(EnvBackendURL); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvDictationCmd); v != "" {
		cfg.DictationCmd = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, &ParseError{Source: "config", Key: EnvTimeout, Err: err}
		}
		cfg.Timeout = d
	}

	cfg.Normalize()
	return cfg, nil
}

// Normalize strips the trailing slash of the backend URL and restores
// defaults for non-positive durations
func (c *Config) Normalize() {
	c.BackendURL = NormalizeBaseURL(c.BackendURL)
	if c.BackendURL == "" {
		c.BackendURL = DefaultBackendURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = MaxSessions
	}
}

// NormalizeBaseURL removes one trailing slash
func NormalizeBaseURL(u string) string {
	return strings.TrimSuffix(strings.TrimSpace(u), "/")
}
