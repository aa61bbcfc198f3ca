// Package config loads chatbubble settings from defaults, a YAML file, a .env file and
// CHATBUBBLE_* environment variables, in that order. Command-line flags are applied last
// by the commands themselves.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/yourusername/chatbubble/internal/storage"
)

// Config holds all chatbubble settings
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
}

// BackendConfig points the widget at the chatbot API
type BackendConfig struct {
	URL string `yaml:"url" env:"CHATBUBBLE_BACKEND_URL"`
	// Timeout bounds each request; 0 disables it
	Timeout time.Duration `yaml:"timeout" env:"CHATBUBBLE_BACKEND_TIMEOUT"`
}

// StoreConfig selects where the chat history lives
type StoreConfig struct {
	Kind         string        `yaml:"kind" env:"CHATBUBBLE_STORE_KIND"`
	Dir          string        `yaml:"dir" env:"CHATBUBBLE_STORE_DIR"`
	RedisURL     string        `yaml:"redis_url" env:"CHATBUBBLE_STORE_REDIS_URL"`
	RedisPrefix  string        `yaml:"redis_prefix" env:"CHATBUBBLE_STORE_REDIS_PREFIX"`
	SQLitePath   string        `yaml:"sqlite_path" env:"CHATBUBBLE_STORE_SQLITE_PATH"`
	PollInterval time.Duration `yaml:"poll_interval" env:"CHATBUBBLE_STORE_POLL_INTERVAL"`
	HubURL       string        `yaml:"hub_url" env:"CHATBUBBLE_STORE_HUB_URL"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `yaml:"level" env:"CHATBUBBLE_LOG_LEVEL"`
	File        string `yaml:"file" env:"CHATBUBBLE_LOG_FILE"`
	Development bool   `yaml:"development" env:"CHATBUBBLE_LOG_DEVELOPMENT"`
}

// ServerConfig configures the development backend
type ServerConfig struct {
	Addr        string `yaml:"addr" env:"CHATBUBBLE_SERVER_ADDR"`
	UploadDir   string `yaml:"upload_dir" env:"CHATBUBBLE_SERVER_UPLOAD_DIR"`
	Responder   string `yaml:"responder" env:"CHATBUBBLE_SERVER_RESPONDER"`
	OllamaURL   string `yaml:"ollama_url" env:"CHATBUBBLE_SERVER_OLLAMA_URL"`
	OllamaModel string `yaml:"ollama_model" env:"CHATBUBBLE_SERVER_OLLAMA_MODEL"`
}

// ValidResponders lists the responders the development backend can use
var ValidResponders = []string{"echo", "ollama"}

// DataDir returns the directory chatbubble keeps its files in
func DataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".chatbubble"
	}
	return filepath.Join(dir, "chatbubble")
}

// DefaultConfigPath returns the YAML file Load reads when no path is given
func DefaultConfigPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// DefaultConfig returns the built-in settings
func DefaultConfig() *Config {
	dataDir := DataDir()
	return &Config{
		Backend: BackendConfig{
			URL: "http://localhost:5000",
		},
		Store: StoreConfig{
			Kind:         string(storage.KindFile),
			Dir:          filepath.Join(dataDir, "store"),
			RedisURL:     "redis://localhost:6379/0",
			RedisPrefix:  "chatbubble:",
			SQLitePath:   filepath.Join(dataDir, "chatbubble.db"),
			PollInterval: storage.DefaultPollInterval,
			HubURL:       "ws://localhost:5000/ws/storage",
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "chatbubble.log"),
		},
		Server: ServerConfig{
			Addr:        ":5000",
			UploadDir:   "uploads",
			Responder:   "echo",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "meerkat-gguf",
		},
	}
}

// LoadDotEnv loads .env files into the process environment. Missing files are skipped.
// Variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// StoreOptions converts the store settings for storage.Open
func (c *Config) StoreOptions() storage.Options {
	return storage.Options{
		Kind:         storage.Kind(c.Store.Kind),
		Dir:          c.Store.Dir,
		RedisURL:     c.Store.RedisURL,
		RedisPrefix:  c.Store.RedisPrefix,
		SQLitePath:   c.Store.SQLitePath,
		PollInterval: c.Store.PollInterval,
		HubURL:       c.Store.HubURL,
	}
}

// Validate checks the settings the widget needs
func (c *Config) Validate() error {
	if err := validateURL("backend url", c.Backend.URL, "http", "https"); err != nil {
		return err
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend timeout must not be negative: %s", c.Backend.Timeout)
	}

	kind := storage.Kind(c.Store.Kind)
	if !slices.Contains(storage.Kinds, kind) {
		return fmt.Errorf("invalid store kind: %s (valid: %v)", c.Store.Kind, storage.Kinds)
	}
	switch kind {
	case storage.KindFile:
		if c.Store.Dir == "" {
			return errors.New("store dir is required for the file store")
		}
	case storage.KindRedis:
		if err := validateURL("store redis_url", c.Store.RedisURL, "redis", "rediss"); err != nil {
			return err
		}
	case storage.KindSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store sqlite_path is required for the sqlite store")
		}
		if c.Store.PollInterval < 0 {
			return fmt.Errorf("store poll_interval must not be negative: %s", c.Store.PollInterval)
		}
	case storage.KindRemote:
		if err := validateURL("store hub_url", c.Store.HubURL, "ws", "wss"); err != nil {
			return err
		}
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// ValidateServer checks the development backend settings
func (c *Config) ValidateServer() error {
	if c.Server.Addr == "" {
		return errors.New("server addr is required")
	}
	if c.Server.UploadDir == "" {
		return errors.New("server upload_dir is required")
	}
	if !slices.Contains(ValidResponders, c.Server.Responder) {
		return fmt.Errorf("invalid responder: %s (valid: %v)", c.Server.Responder, ValidResponders)
	}
	if c.Server.Responder == "ollama" {
		if err := validateURL("server ollama_url", c.Server.OllamaURL, "http", "https"); err != nil {
			return err
		}
		if c.Server.OllamaModel == "" {
			return errors.New("server ollama_model is required for the ollama responder")
		}
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

func validateURL(name, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if !slices.Contains(schemes, u.Scheme) || u.Host == "" {
		return fmt.Errorf("invalid %s %q: want %v URL with a host", name, raw, schemes)
	}
	return nil
}
