package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixrcore/runtime/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
fixture:
  path: fixtures/default.yaml
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	assert.Equal(t, 8088, cfg.ControlPlane.Port)
	assert.Equal(t, 30*time.Second, cfg.ControlPlane.ShutdownTimeout)
	assert.Equal(t, 256, cfg.TraceExport.RingSize)
	assert.InDelta(t, 0.063, cfg.System.DefaultIPDMeters, 1e-9)
}

func TestLoad_PreservesExplicitValues(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
fixture:
  path: fixtures/default.yaml
system:
  default_ipd_meters: 0.07
session:
  log_frame_timing: true
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.InDelta(t, 0.07, cfg.System.DefaultIPDMeters, 1e-9)
	assert.True(t, cfg.Session.LogFrameTiming)
}

func TestLoad_MissingFixturePathFailsValidation(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: info
`)

	_, err := config.Load(path, nil)
	require.Error(t, err)
}

func TestLoad_ControlPlaneRequiresSecretWhenEnabled(t *testing.T) {
	path := writeConfig(t, `
fixture:
  path: fixtures/default.yaml
control_plane:
  enabled: true
  port: 9999
`)

	_, err := config.Load(path, nil)
	require.Error(t, err)
}

func TestGetDefaultConfig_ValidatesClean(t *testing.T) {
	cfg := config.GetDefaultConfig()
	require.NoError(t, config.Validate(cfg))
}

func TestSaveConfig_RoundTrips(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = "DEBUG"

	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")
	require.NoError(t, config.SaveConfig(cfg, path))

	loaded, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", loaded.Logging.Level)
}
