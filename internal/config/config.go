package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Token store backends.
const (
	TokenStoreKeyring = "keyring"
	TokenStoreFile    = "file"
)

const (
	minPollingInterval = 100 // ms
	defaultPort        = 7845
)

// Config holds all application configuration
type Config struct {
	// Resolved at load time, never persisted
	SystemPaths ConfigPaths `json:"-" yaml:"-"`

	// Clipboard polling period in milliseconds
	PollingInterval int64 `json:"polling_interval" yaml:"polling_interval"`

	History HistoryConfig `json:"history" yaml:"history"`
	Privacy PrivacyConfig `json:"privacy" yaml:"privacy"`
	API     APIConfig     `json:"api" yaml:"api"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// HistoryConfig bounds the history.
type HistoryConfig struct {
	MaxItems          int `json:"max_items" yaml:"max_items"`
	AutoClearDays     int `json:"auto_clear_days" yaml:"auto_clear_days"`         // 0 disables
	AutoClearInterval int `json:"auto_clear_interval" yaml:"auto_clear_interval"` // minutes
}

// PrivacyConfig controls what is captured and how secrets are guarded.
type PrivacyConfig struct {
	Incognito           bool     `json:"incognito" yaml:"incognito"`
	ExcludedApps        []string `json:"excluded_apps" yaml:"excluded_apps"`
	SensitiveProtection bool     `json:"sensitive_protection" yaml:"sensitive_protection"`
	AuthTimeout         int      `json:"auth_timeout" yaml:"auth_timeout"` // seconds
}

// APIConfig configures the automation API.
type APIConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	Port           int    `json:"port" yaml:"port"`
	ReadTimeout    int    `json:"read_timeout" yaml:"read_timeout"` // seconds
	MaxConnections int    `json:"max_connections" yaml:"max_connections"`
	TokenStore     string `json:"token_store" yaml:"token_store"` // "keyring" or "file"
}

// LogConfig holds logging-related configuration
type LogConfig struct {
	Level             string `json:"level" yaml:"level"`
	Format            string `json:"format" yaml:"format"` // "json" or "console"
	EnableFileLogging bool   `json:"enable_file_logging" yaml:"enable_file_logging"`
	MaxLogSize        int    `json:"max_log_size" yaml:"max_log_size"` // MB
	MaxLogFiles       int    `json:"max_log_files" yaml:"max_log_files"`
	MaxLogAge         int    `json:"max_log_age" yaml:"max_log_age"` // days
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

// DefaultConfig returns a new Config with default values for paths.
func DefaultConfig(paths ConfigPaths) *Config {
	return &Config{
		SystemPaths:     paths,
		PollingInterval: 500,
		History: HistoryConfig{
			MaxItems:          500,
			AutoClearDays:     0,
			AutoClearInterval: 60,
		},
		Privacy: PrivacyConfig{
			Incognito:           false,
			ExcludedApps:        []string{},
			SensitiveProtection: true,
			AuthTimeout:         300,
		},
		API: APIConfig{
			Enabled:        true,
			Port:           defaultPort,
			ReadTimeout:    30,
			MaxConnections: 16,
			TokenStore:     TokenStoreKeyring,
		},
		Log: LogConfig{
			Level:             "info",
			Format:            "console",
			EnableFileLogging: true,
			MaxLogSize:        10,
			MaxLogFiles:       5,
			MaxLogAge:         28,
		},
		Storage: StorageConfig{
			DBPath: paths.DBFile,
		},
	}
}

// Load loads the configuration from configPath, or from the platform
// config file when configPath is empty. A missing file is created with the
// defaults.
func Load(configPath string) (*Config, error) {
	paths, err := GetConfigPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config paths: %w", err)
	}
	if configPath == "" {
		configPath = paths.ConfigFile
	}

	cfg := DefaultConfig(*paths)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.SystemPaths = *paths
	cfg.SystemPaths.ConfigFile = configPath
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = paths.DBFile
	}

	overrideFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to the specified file
func (c *Config) Save(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate clamps numeric settings into range and rejects unknown enum
// values.
func (c *Config) Validate() error {
	if c.PollingInterval < minPollingInterval {
		c.PollingInterval = minPollingInterval
	}
	if c.History.MaxItems < 1 {
		c.History.MaxItems = 1
	}
	if c.History.AutoClearDays < 0 {
		c.History.AutoClearDays = 0
	}
	if c.History.AutoClearInterval < 1 {
		c.History.AutoClearInterval = 60
	}
	if c.Privacy.AuthTimeout < 1 {
		c.Privacy.AuthTimeout = 300
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		c.API.Port = defaultPort
	}
	if c.API.ReadTimeout < 1 {
		c.API.ReadTimeout = 30
	}
	if c.API.MaxConnections < 1 {
		c.API.MaxConnections = 16
	}

	switch c.API.TokenStore {
	case TokenStoreKeyring, TokenStoreFile:
	case "":
		c.API.TokenStore = TokenStoreKeyring
	default:
		return fmt.Errorf("invalid api.token_store %q: want %q or %q", c.API.TokenStore, TokenStoreKeyring, TokenStoreFile)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
		c.Log.Level = strings.ToLower(c.Log.Level)
	case "":
		c.Log.Level = "info"
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}

	switch c.Log.Format {
	case "json", "console":
	case "", "text":
		c.Log.Format = "console"
	default:
		return fmt.Errorf("invalid log.format %q", c.Log.Format)
	}
	return nil
}

// PollDuration is the polling interval as a duration.
func (c *Config) PollDuration() time.Duration {
	return time.Duration(c.PollingInterval) * time.Millisecond
}

// AuthTimeoutDuration is how long a reveal keeps an item unlocked.
func (c *Config) AuthTimeoutDuration() time.Duration {
	return time.Duration(c.Privacy.AuthTimeout) * time.Second
}

// ReadTimeoutDuration bounds how long the API waits for a request.
func (c *Config) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.API.ReadTimeout) * time.Second
}

// AutoClearEvery is the period of the age sweep while running.
func (c *Config) AutoClearEvery() time.Duration {
	return time.Duration(c.History.AutoClearInterval) * time.Minute
}

// overrideFromEnv overrides configuration values from environment variables
func overrideFromEnv(config *Config) {
	if val := os.Getenv("CLIPKEEP_POLLING_INTERVAL"); val != "" {
		if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.PollingInterval = ms
		}
	}
	if val := os.Getenv("CLIPKEEP_MAX_ITEMS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.History.MaxItems = n
		}
	}
	if val := os.Getenv("CLIPKEEP_AUTO_CLEAR_DAYS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.History.AutoClearDays = n
		}
	}
	if val := os.Getenv("CLIPKEEP_INCOGNITO"); val != "" {
		config.Privacy.Incognito = val == "true"
	}
	if val := os.Getenv("CLIPKEEP_API_ENABLED"); val != "" {
		config.API.Enabled = val == "true"
	}
	if val := os.Getenv("CLIPKEEP_API_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			config.API.Port = port
		}
	}
	if val := os.Getenv("CLIPKEEP_TOKEN_STORE"); val != "" {
		config.API.TokenStore = val
	}
	if val := os.Getenv("CLIPKEEP_LOG_LEVEL"); val != "" {
		config.Log.Level = val
	}
	if val := os.Getenv("CLIPKEEP_DB_PATH"); val != "" {
		config.Storage.DBPath = val
	}
}
