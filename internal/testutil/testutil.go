// Package testutil provides shared test helpers for config files, recipe fixtures and database containers.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/recipebook/internal/config"
)

// ConfigOption adjusts the config file written by SetupTestConfig.
type ConfigOption func(*testConfig)

type testConfig struct {
	database      config.DatabaseConfig
	redisURL      string
	homeAssistant string
}

// WithDatabase points the config at a running database.
func WithDatabase(db config.DatabaseConfig) ConfigOption {
	return func(cfg *testConfig) {
		cfg.database = db
	}
}

// WithRedis enables the search cache.
func WithRedis(url string) ConfigOption {
	return func(cfg *testConfig) {
		cfg.redisURL = url
	}
}

// WithHomeAssistant sets the Home Assistant base URL, usually an httptest server.
func WithHomeAssistant(baseURL string) ConfigOption {
	return func(cfg *testConfig) {
		cfg.homeAssistant = baseURL
	}
}

// SetupTestConfig writes a config file and its output directory under tmpDir.
// Without options the database points at an unreachable local postgres.
// Returns the path to the generated config file.
func SetupTestConfig(t *testing.T, tmpDir string, opts ...ConfigOption) string {
	t.Helper()

	cfg := testConfig{
		database: config.DatabaseConfig{
			Driver:   "postgres",
			Host:     "127.0.0.1",
			Port:     1,
			Database: "recipes",
			Username: "postgres",
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	outputDir := filepath.Join(tmpDir, "outputs")
	require.NoError(t, os.MkdirAll(outputDir, 0755))

	content := fmt.Sprintf(`database:
  driver: %s
  host: %s
  port: %d
  database: %s
  username: %s
  password: %q
search:
  timeout_seconds: 5
allocator:
  max_attempts: 10
outputs:
  shopping_list_directory: %s
`,
		cfg.database.Driver,
		cfg.database.Host,
		cfg.database.Port,
		cfg.database.Database,
		cfg.database.Username,
		cfg.database.Password,
		outputDir,
	)
	if cfg.redisURL != "" {
		content += fmt.Sprintf("cache:\n  redis_url: %s\n  ttl_seconds: 60\n", cfg.redisURL)
	}
	if cfg.homeAssistant != "" {
		content += fmt.Sprintf("home_assistant:\n  base_url: %s\n  token: test-token\n  timeout_seconds: 5\n  retry_attempts: 0\n", cfg.homeAssistant)
	}

	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	return cfgPath
}

// SetupBrokenConfigFile creates a config file with invalid YAML that makes loading fail.
func SetupBrokenConfigFile(t *testing.T) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("{{invalid yaml content"), 0644))
	return cfgPath
}

// WriteRecipeFile writes an import file holding the given recipes YAML body.
func WriteRecipeFile(t *testing.T, dir, name, recipes string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("recipes:\n"+recipes), 0644))
	return path
}
