package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/chatbubble/internal/storage"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:5000", cfg.Backend.URL)
	assert.Zero(t, cfg.Backend.Timeout, "no client timeout by default")
	assert.Equal(t, "file", cfg.Store.Kind)
	assert.Equal(t, "echo", cfg.Server.Responder)
	assert.Equal(t, "meerkat-gguf", cfg.Server.OllamaModel)
	assert.NoError(t, cfg.Validate())
	assert.NoError(t, cfg.ValidateServer())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  url: http://chat.internal:8080
  timeout: 30s
store:
  kind: sqlite
  sqlite_path: /tmp/chat.db
log:
  level: debug
`), 0o644))

	t.Setenv("CHATBUBBLE_BACKEND_URL", "https://override.example")
	t.Setenv("CHATBUBBLE_STORE_POLL_INTERVAL", "1s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://override.example", cfg.Backend.URL, "env wins over file")
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "sqlite", cfg.Store.Kind)
	assert.Equal(t, "/tmp/chat.db", cfg.Store.SQLitePath)
	assert.Equal(t, time.Second, cfg.Store.PollInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched sections keep their defaults
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
}

func TestLoad_BadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [unclosed"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")

	t.Setenv("CHATBUBBLE_BACKEND_TIMEOUT", "soon")
	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to apply environment")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Backend.Timeout = 2 * time.Minute
	cfg.Store.Kind = "remote"

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CHATBUBBLE_STORE_KIND=memory\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("CHATBUBBLE_STORE_KIND") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))

	cfg, err := Load(filepath.Join(dir, "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Kind)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing backend", func(c *Config) { c.Backend.URL = "" }, "backend url is required"},
		{"backend scheme", func(c *Config) { c.Backend.URL = "ftp://x" }, "invalid backend url"},
		{"backend host", func(c *Config) { c.Backend.URL = "http://" }, "invalid backend url"},
		{"negative timeout", func(c *Config) { c.Backend.Timeout = -time.Second }, "must not be negative"},
		{"unknown kind", func(c *Config) { c.Store.Kind = "floppy" }, "invalid store kind"},
		{"file without dir", func(c *Config) { c.Store.Dir = "" }, "store dir is required"},
		{"redis url", func(c *Config) {
			c.Store.Kind = string(storage.KindRedis)
			c.Store.RedisURL = "http://localhost"
		}, "invalid store redis_url"},
		{"sqlite path", func(c *Config) {
			c.Store.Kind = string(storage.KindSQLite)
			c.Store.SQLitePath = ""
		}, "sqlite_path is required"},
		{"hub url", func(c *Config) {
			c.Store.Kind = string(storage.KindRemote)
			c.Store.HubURL = "http://localhost:5000/ws/storage"
		}, "invalid store hub_url"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}

	cfg := DefaultConfig()
	cfg.Store.Kind = string(storage.KindMemory)
	cfg.Store.Dir = ""
	assert.NoError(t, cfg.Validate(), "memory store needs no settings")
}

func TestValidateServer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Responder = "gemini"
	assert.ErrorContains(t, cfg.ValidateServer(), "invalid responder")

	cfg = DefaultConfig()
	cfg.Server.Responder = "ollama"
	cfg.Server.OllamaModel = ""
	assert.ErrorContains(t, cfg.ValidateServer(), "ollama_model is required")

	cfg = DefaultConfig()
	cfg.Server.UploadDir = ""
	assert.ErrorContains(t, cfg.ValidateServer(), "upload_dir is required")
}

func TestStoreOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Kind = "redis"

	opts := cfg.StoreOptions()
	assert.Equal(t, storage.KindRedis, opts.Kind)
	assert.Equal(t, cfg.Store.RedisURL, opts.RedisURL)
	assert.Equal(t, cfg.Store.RedisPrefix, opts.RedisPrefix)
}
