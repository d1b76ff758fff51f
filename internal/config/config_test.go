package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-food-log/internal/nutrition"
	"mcp-food-log/internal/storage"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8011, cfg.Port)
	assert.Equal(t, storage.MemoryDSN, cfg.DBPath)
	assert.Equal(t, nutrition.DefaultBaseURL, cfg.OFFBaseURL)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "0.0.0.0:8011", cfg.Addr())
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "food-log.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\nhost: 127.0.0.1\nhttp_timeout: 3s\nportions_file: p.yaml\n"), 0o644))
	t.Setenv("FOODLOG_PORT", "9100")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("host", "", "")
	flags.Int("port", 0, "")
	require.NoError(t, flags.Parse([]string{"--host", "localhost"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "p.yaml", cfg.PortionsFile)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("FOODLOG_PORT", "70000")
	_, err := Load("", nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadInvalidBaseURL(t *testing.T) {
	t.Setenv("FOODLOG_OFF_BASE_URL", "not a url")
	_, err := Load("", nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestMessageURL(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8011/message", cfg.MessageURL())

	cfg.Host = "127.0.0.1"
	assert.Equal(t, "http://127.0.0.1:8011/message", cfg.MessageURL())

	t.Setenv("FOODLOG_PUBLIC_URL", "https://food.example.com/")
	cfg, err = Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://food.example.com/message", cfg.MessageURL())
}

func TestLoadInvalidPublicURL(t *testing.T) {
	t.Setenv("FOODLOG_PUBLIC_URL", "food.example.com")
	_, err := Load("", nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
