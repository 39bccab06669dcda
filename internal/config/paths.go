package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigPaths holds all relevant paths for the application
type ConfigPaths struct {
	BaseDir    string // Directory holding the config file
	ConfigFile string // Path to config.yaml
	DataDir    string // Directory for application data
	DBFile     string // Path to database file
	LogDir     string // Directory for log files
	RunDir     string // Directory for the pid file
	SecretsDir string // Directory for the file token store
}

// PIDFile returns the daemon pid file path.
func (p ConfigPaths) PIDFile() string {
	return filepath.Join(p.RunDir, "clipkeep.pid")
}

// GetConfigPaths returns the platform-specific paths and creates the
// directories. CLIPKEEP_CONFIG_DIR and CLIPKEEP_DATA_DIR take precedence.
func GetConfigPaths() (*ConfigPaths, error) {
	baseDir := os.Getenv("CLIPKEEP_CONFIG_DIR")
	if baseDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}

		switch runtime.GOOS {
		case "windows":
			baseDir = filepath.Join(configDir, "ClipKeep")
		case "darwin":
			baseDir = filepath.Join(configDir, "com.berrythewa.clipkeep")
		default: // Linux and others
			baseDir = filepath.Join(configDir, "clipkeep")
		}
	}

	dataDir := os.Getenv("CLIPKEEP_DATA_DIR")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		switch runtime.GOOS {
		case "windows":
			if appData, err := os.UserCacheDir(); err == nil {
				dataDir = filepath.Join(appData, "ClipKeep")
			} else {
				dataDir = filepath.Join(homeDir, "AppData", "Local", "ClipKeep")
			}
		case "darwin":
			dataDir = filepath.Join(homeDir, "Library", "Application Support", "ClipKeep")
		default: // Linux and others
			if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
				dataDir = filepath.Join(xdgDataHome, "clipkeep")
			} else {
				dataDir = filepath.Join(homeDir, ".local", "share", "clipkeep")
			}
		}
	}

	paths := &ConfigPaths{
		BaseDir:    baseDir,
		ConfigFile: filepath.Join(baseDir, "config.yaml"),
		DataDir:    dataDir,
		DBFile:     filepath.Join(dataDir, "clipkeep.db"),
		LogDir:     filepath.Join(dataDir, "logs"),
		RunDir:     filepath.Join(dataDir, "run"),
		SecretsDir: filepath.Join(dataDir, "secrets"),
	}

	for _, dir := range []string{paths.BaseDir, paths.DataDir, paths.LogDir, paths.RunDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(paths.SecretsDir, 0700); err != nil {
		return nil, err
	}

	return paths, nil
}
