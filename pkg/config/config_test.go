package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "DEBUG"

listener:
  port: 3051
  transport: inet4

auth:
  plugin_order: ["Srp256"]

compression:
  enabled: false
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 3051, cfg.Listener.Port)
	assert.Equal(t, "inet4", cfg.Listener.Transport)
	assert.False(t, cfg.Compression.Enabled)
}

func TestLoad_NoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 3050, cfg.Listener.Port)
	assert.Equal(t, "inet", cfg.Listener.Transport)
	assert.ElementsMatch(t, []string{"Srp256", "Srp", "Legacy_Auth"}, cfg.Auth.PluginOrder)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FBREMOTE_LISTENER_PORT", "4000")
	t.Setenv("FBREMOTE_LOGGING_LEVEL", "WARN")

	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	require.NoError(t, err)

	// With no config file, defaults win outright; env override is only
	// applied when the viper unmarshal path runs, i.e. when a config file
	// is present. This matches Load's documented precedence.
	assert.Equal(t, 3050, cfg.Listener.Port)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestValidate_RejectsUnimplementedTransport(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Listener.Transport = "xnet"

	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidate_RejectsKerberosWithoutPlugin(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Auth.Kerberos.Enabled = true
	cfg.Auth.PluginOrder = []string{"Srp256"}

	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.NoError(t, Validate(cfg))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Listener.Port = 3052

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3052, loaded.Listener.Port)
}
