package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/recipebook/internal/config"
)

func TestSetupTestConfig(t *testing.T) {
	tmpDir := t.TempDir()
	got := SetupTestConfig(t, tmpDir)

	assert.Equal(t, filepath.Join(tmpDir, "config.yml"), got)

	loader, err := config.NewConfigLoader(got)
	require.NoError(t, err)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Search.TimeoutSeconds)
	assert.Equal(t, 10, cfg.Allocator.MaxAttempts)
	assert.False(t, cfg.Cache.Enabled())
	assert.Equal(t, filepath.Join(tmpDir, "outputs"), cfg.Outputs.ShoppingListDirectory)

	info, err := os.Stat(cfg.Outputs.ShoppingListDirectory)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSetupTestConfig_Options(t *testing.T) {
	tmpDir := t.TempDir()
	got := SetupTestConfig(t, tmpDir,
		WithDatabase(config.DatabaseConfig{
			Driver:   "mariadb",
			Host:     "db.local",
			Port:     3307,
			Database: "kitchen",
			Username: "cook",
			Password: "p@ss: word",
		}),
		WithRedis("redis://cache.local:6379/0"),
		WithHomeAssistant("http://ha.local:8123"),
	)

	loader, err := config.NewConfigLoader(got)
	require.NoError(t, err)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "mariadb", cfg.Database.Driver)
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.Equal(t, "p@ss: word", cfg.Database.Password)
	assert.Equal(t, "redis://cache.local:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, "http://ha.local:8123", cfg.HomeAssistant.BaseURL)
	assert.Equal(t, "test-token", cfg.HomeAssistant.Token)
	assert.Equal(t, 0, cfg.HomeAssistant.RetryAttempts)
}

func TestSetupBrokenConfigFile(t *testing.T) {
	loader, err := config.NewConfigLoader(SetupBrokenConfigFile(t))
	require.NoError(t, err)
	_, err = loader.Load()
	assert.Error(t, err)
}

func TestWriteRecipeFile(t *testing.T) {
	path := WriteRecipeFile(t, t.TempDir(), "soup.yml", "  - name: Soup\n")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "recipes:\n  - name: Soup\n", string(content))
}
