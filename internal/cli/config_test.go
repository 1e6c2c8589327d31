package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{keyBackend, keyLogLevel, keyLogFormat, keyOfferTTL, keySweepInterval, keySweepBatch, keyUser} {
		// Viper treats an empty variable as unset.
		t.Setenv(envPrefix+"_"+strings.ToUpper(key), "")
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	clearEnv(t)
	s, err := loadSettings(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, types.BackendSQLite, s.Backend)
	assert.Equal(t, types.DefaultOfferTTL, s.OfferTTL)
	assert.Equal(t, types.DefaultSweepInterval, s.SweepInterval)
	assert.Equal(t, types.DefaultSweepBatch, s.SweepBatch)
	assert.Equal(t, "info", s.LogLevel)
	assert.Empty(t, s.DataDir)
}

func TestLoadSettingsFromFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg := defaultConfigFile("db")
	cfg.OfferTTL = "24h"
	cfg.User = "user-bob"
	written, err := writeConfigIfMissing(dir, cfg)
	require.NoError(t, err)
	require.True(t, written)

	written, err = writeConfigIfMissing(dir, defaultConfigFile("other"))
	require.NoError(t, err)
	assert.False(t, written, "an existing config is kept")

	s, err := loadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, "db", s.DataDir)
	assert.Equal(t, 24*time.Hour, s.OfferTTL)
	assert.Equal(t, "user-bob", s.User)
}

func TestLoadSettingsEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	_, err := writeConfigIfMissing(dir, defaultConfigFile(""))
	require.NoError(t, err)

	t.Setenv("VEILMARKET_OFFER_TTL", "90m")
	t.Setenv("VEILMARKET_USER", "user-carol")
	s, err := loadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, s.OfferTTL)
	assert.Equal(t, "user-carol", s.User)
}

func TestLoadSettingsRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("backend: dolt\n"), 0o644))
	_, err := loadSettings(dir)
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
	assert.Equal(t, exitUserError, exitCode(err))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("backend: [\n"), 0o644))
	_, err = loadSettings(dir)
	assert.Error(t, err, "malformed YAML")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "debug", "json")
	require.NoError(t, err)
	logger.Debug("hello", "event", "probe")
	assert.Contains(t, buf.String(), `"event":"probe"`)

	buf.Reset()
	logger, err = newLogger(&buf, "warn", "text")
	require.NoError(t, err)
	logger.Info("dropped")
	assert.Empty(t, buf.String())

	_, err = newLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = newLogger(&buf, "info", "xml")
	assert.Error(t, err)
}
