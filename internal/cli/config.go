package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/veilmarket/internal/paths"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// Config keys. Every key except data_dir can also be set through a
// VEILMARKET_<KEY> environment variable.
const (
	keyBackend       = "backend"
	keyDataDir       = "data_dir"
	keyLogLevel      = "log_level"
	keyLogFormat     = "log_format"
	keyOfferTTL      = "offer_ttl"
	keySweepInterval = "sweep_interval"
	keySweepBatch    = "sweep_batch"
	keyUser          = "user"
)

const envPrefix = "VEILMARKET"

// settings is the resolved configuration of one invocation.
type settings struct {
	Backend       string
	DataDir       string
	LogLevel      string
	LogFormat     string
	OfferTTL      time.Duration
	SweepInterval time.Duration
	SweepBatch    int
	User          string
}

// configFile holds the structure written to config.yaml. Durations are
// written as strings so the file stays readable.
type configFile struct {
	Backend       string `yaml:"backend"`
	DataDir       string `yaml:"data_dir,omitempty"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	OfferTTL      string `yaml:"offer_ttl"`
	SweepInterval string `yaml:"sweep_interval"`
	SweepBatch    int    `yaml:"sweep_batch"`
	User          string `yaml:"user,omitempty"`
}

// loadSettings reads config.yaml from configDir using viper. A missing file
// yields the defaults.
func loadSettings(configDir string) (settings, error) {
	v := viper.New()
	v.SetDefault(keyBackend, types.BackendSQLite)
	v.SetDefault(keyDataDir, "")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "text")
	v.SetDefault(keyOfferTTL, types.DefaultOfferTTL)
	v.SetDefault(keySweepInterval, types.DefaultSweepInterval)
	v.SetDefault(keySweepBatch, types.DefaultSweepBatch)
	v.SetDefault(keyUser, "")

	// data_dir has its own precedence in paths.ResolveDataDir.
	v.SetEnvPrefix(envPrefix)
	for _, key := range []string{keyBackend, keyLogLevel, keyLogFormat, keyOfferTTL, keySweepInterval, keySweepBatch, keyUser} {
		if err := v.BindEnv(key); err != nil {
			return settings{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	s := settings{
		Backend:       v.GetString(keyBackend),
		DataDir:       v.GetString(keyDataDir),
		LogLevel:      v.GetString(keyLogLevel),
		LogFormat:     v.GetString(keyLogFormat),
		OfferTTL:      v.GetDuration(keyOfferTTL),
		SweepInterval: v.GetDuration(keySweepInterval),
		SweepBatch:    v.GetInt(keySweepBatch),
		User:          v.GetString(keyUser),
	}
	if err := (types.Config{
		Backend:       s.Backend,
		OfferTTL:      s.OfferTTL,
		SweepInterval: s.SweepInterval,
		SweepBatch:    s.SweepBatch,
	}).Validate(); err != nil {
		return settings{}, usageError{fmt.Errorf("invalid config: %w", err)}
	}
	return s, nil
}

// defaultConfigFile is what init writes for a new workspace.
func defaultConfigFile(dataDir string) configFile {
	return configFile{
		Backend:       types.BackendSQLite,
		DataDir:       dataDir,
		LogLevel:      "info",
		LogFormat:     "text",
		OfferTTL:      types.DefaultOfferTTL.String(),
		SweepInterval: types.DefaultSweepInterval.String(),
		SweepBatch:    types.DefaultSweepBatch,
	}
}

// writeConfigIfMissing creates config.yaml in configDir unless it already
// exists. It reports whether a file was written.
func writeConfigIfMissing(configDir string, cfg configFile) (bool, error) {
	path := paths.ConfigFile(configDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
