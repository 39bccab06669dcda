package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDirs(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	configDir := filepath.Join(root, "config")
	dataDir := filepath.Join(root, "data")
	t.Setenv("CLIPKEEP_CONFIG_DIR", configDir)
	t.Setenv("CLIPKEEP_DATA_DIR", dataDir)
	return configDir, dataDir
}

func TestGetConfigPaths(t *testing.T) {
	configDir, dataDir := setupDirs(t)

	paths, err := GetConfigPaths()
	require.NoError(t, err)

	assert.Equal(t, configDir, paths.BaseDir)
	assert.Equal(t, filepath.Join(configDir, "config.yaml"), paths.ConfigFile)
	assert.Equal(t, filepath.Join(dataDir, "clipkeep.db"), paths.DBFile)
	assert.Equal(t, filepath.Join(dataDir, "run", "clipkeep.pid"), paths.PIDFile())

	for _, dir := range []string{paths.BaseDir, paths.DataDir, paths.LogDir, paths.RunDir, paths.SecretsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}

func TestLoadCreatesDefaults(t *testing.T) {
	configDir, dataDir := setupDirs(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, int64(500), cfg.PollingInterval)
	assert.Equal(t, 500, cfg.History.MaxItems)
	assert.Equal(t, 0, cfg.History.AutoClearDays)
	assert.True(t, cfg.Privacy.SensitiveProtection)
	assert.Equal(t, 300, cfg.Privacy.AuthTimeout)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, 7845, cfg.API.Port)
	assert.Equal(t, TokenStoreKeyring, cfg.API.TokenStore)
	assert.Equal(t, filepath.Join(dataDir, "clipkeep.db"), cfg.Storage.DBPath)

	_, err = os.Stat(filepath.Join(configDir, "config.yaml"))
	assert.NoError(t, err, "default config should be written")
}

func TestLoadFromFile(t *testing.T) {
	configDir, _ := setupDirs(t)
	require.NoError(t, os.MkdirAll(configDir, 0755))

	path := filepath.Join(configDir, "custom.yaml")
	content := `
polling_interval: 250
history:
  max_items: 42
  auto_clear_days: 7
privacy:
  incognito: true
  excluded_apps: ["org.keepassxc.KeePassXC"]
api:
  port: 9000
  token_store: file
log:
  level: DEBUG
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(250), cfg.PollingInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.PollDuration())
	assert.Equal(t, 42, cfg.History.MaxItems)
	assert.Equal(t, 7, cfg.History.AutoClearDays)
	assert.Equal(t, 60, cfg.History.AutoClearInterval)
	assert.True(t, cfg.Privacy.Incognito)
	assert.Equal(t, []string{"org.keepassxc.KeePassXC"}, cfg.Privacy.ExcludedApps)
	assert.True(t, cfg.Privacy.SensitiveProtection, "unset keys keep defaults")
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, TokenStoreFile, cfg.API.TokenStore)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, path, cfg.SystemPaths.ConfigFile)
}

func TestLoadEnvOverrides(t *testing.T) {
	setupDirs(t)
	t.Setenv("CLIPKEEP_MAX_ITEMS", "10")
	t.Setenv("CLIPKEEP_INCOGNITO", "true")
	t.Setenv("CLIPKEEP_API_PORT", "8123")
	t.Setenv("CLIPKEEP_API_ENABLED", "false")
	t.Setenv("CLIPKEEP_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.History.MaxItems)
	assert.True(t, cfg.Privacy.Incognito)
	assert.Equal(t, 8123, cfg.API.Port)
	assert.False(t, cfg.API.Enabled)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadInvalid(t *testing.T) {
	configDir, _ := setupDirs(t)
	require.NoError(t, os.MkdirAll(configDir, 0755))

	tests := map[string]string{
		"bad yaml":        "history: [",
		"bad token store": "api:\n  token_store: vault\n",
		"bad log level":   "log:\n  level: loud\n",
		"bad log format":  "log:\n  format: xml\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(configDir, "invalid.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestValidateClamps(t *testing.T) {
	cfg := DefaultConfig(ConfigPaths{})
	cfg.PollingInterval = 5
	cfg.History.MaxItems = 0
	cfg.History.AutoClearDays = -3
	cfg.Privacy.AuthTimeout = 0
	cfg.API.Port = 70000
	cfg.API.MaxConnections = 0
	cfg.Log.Format = "text"

	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(minPollingInterval), cfg.PollingInterval)
	assert.Equal(t, 1, cfg.History.MaxItems)
	assert.Equal(t, 0, cfg.History.AutoClearDays)
	assert.Equal(t, 5*time.Minute, cfg.AuthTimeoutDuration())
	assert.Equal(t, defaultPort, cfg.API.Port)
	assert.Equal(t, 16, cfg.API.MaxConnections)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestSaveRoundTrip(t *testing.T) {
	setupDirs(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig(ConfigPaths{DBFile: "/tmp/x.db"})
	cfg.History.MaxItems = 77
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 77, loaded.History.MaxItems)
	assert.Equal(t, "/tmp/x.db", loaded.Storage.DBPath)
}
