package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-cache/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoaderLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
name: "test-cache"
version: "1.0.0"
cache:
  enabled: true
  type: "file"
  sweep_schedule: "0 */5 * * * *"
  config:
    base_path: "/tmp/cache"
metrics:
  enabled: true
  type: "memory"
`)

	loader := NewLoader()
	config, raw, err := loader.LoadFromFile(context.Background(), path)
	require.NoError(t, err)

	require.Equal(t, "test-cache", config.Name)
	require.Equal(t, "1.0.0", config.Version)
	require.True(t, config.Cache.Enabled)
	require.Equal(t, "file", config.Cache.Type)
	require.Equal(t, "0 */5 * * * *", config.Cache.SweepSchedule)
	require.True(t, config.Metrics.Enabled)

	// Defaults survive for sections the file does not mention.
	require.Equal(t, 60*time.Second, config.Cache.DefaultTTL)
	require.Equal(t, "memory", config.History.Type)
	require.False(t, config.Events.Enabled)

	require.Contains(t, raw, "cache")
}

func TestLoaderMissingFile(t *testing.T) {
	loader := NewLoader()

	_, _, err := loader.LoadFromFile(context.Background(), filepath.Join(t.TempDir(), "absent.yml"))
	require.ErrorIs(t, err, types.ErrConfigNotFound)

	_, _, err = loader.LoadFromFile(context.Background(), "")
	require.ErrorIs(t, err, types.ErrConfigInvalidPath)
}

func TestLoaderParseFailure(t *testing.T) {
	path := writeConfig(t, "name: [unclosed")

	loader := NewLoader()
	_, _, err := loader.LoadFromFile(context.Background(), path)
	require.ErrorIs(t, err, types.ErrConfigParseFailed)
}

func TestLoaderValidateFailure(t *testing.T) {
	path := writeConfig(t, `
version: "1.0.0"
`)

	loader := NewLoader()
	_, _, err := loader.LoadFromFile(context.Background(), path)
	require.ErrorIs(t, err, types.ErrConfigValidateFailed)
}

func TestParserGetValue(t *testing.T) {
	parser := NewParser(map[string]interface{}{
		"cache": map[string]interface{}{
			"type": "file",
			"config": map[string]interface{}{
				"base_path": "/tmp/cache",
			},
		},
	})

	require.Equal(t, "file", parser.GetValue("cache.type", ""))
	require.Equal(t, "/tmp/cache", parser.GetValue("cache.config.base_path", ""))
	require.Equal(t, "fallback", parser.GetValue("cache.missing", "fallback"))
	require.Equal(t, 42, parser.GetValue("absent.path", 42))
}
