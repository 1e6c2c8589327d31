// Package paths resolves the configuration, data and export locations of a
// veilmarket workspace.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// Names inside a workspace.
const (
	DefaultConfigDirName = ".veilmarket"
	ConfigFileName       = "config.yaml"
	ExportDirName        = "exports"
	appName              = "veilmarket"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "VEILMARKET_CONFIG_DIR"
	EnvDataDir   = "VEILMARKET_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	getwd         func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	getwd:         os.Getwd,
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/veilmarket (fallback ~/.local/share/veilmarket)
// macOS:   ~/Library/Application Support/veilmarket
// Windows: %APPDATA%/veilmarket
func DefaultDataDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", appName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// ResolveConfigDir returns the configuration directory: flag, then
// VEILMARKET_CONFIG_DIR, then ./.veilmarket.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := platformDir.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultConfigDirName), nil
}

// ResolveDataDir returns the data directory: flag, then the config file's
// data_dir (relative values are taken from configDir), then
// VEILMARKET_DATA_DIR, then DefaultDataDir.
func ResolveDataDir(flag, configValue, configDir string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		if !filepath.IsAbs(configValue) && configDir != "" {
			configValue = filepath.Join(configDir, configValue)
		}
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultDataDir()
}

// ConfigFile returns the path of the config file in configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}

// ExportDir returns where thread exports are written under dataDir.
func ExportDir(dataDir string) string {
	return filepath.Join(dataDir, ExportDirName)
}
