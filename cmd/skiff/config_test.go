package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skiffhq/skiff/internal/core/flags"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"SKIFF_SERVER_HOST",
		"SKIFF_SERVER_PORT",
		"SKIFF_DATABASE_DSN",
		"SKIFF_ENGINE_TYPE",
		"SKIFF_ENGINE_REGION",
		"SKIFF_ENGINE_ACCESS_KEY_ID",
		"SKIFF_ENGINE_SECRET_ACCESS_KEY",
		"SKIFF_ENGINE_ARTIFACT_BUCKET",
		"SKIFF_APP_NAME",
		"SKIFF_APP_USE_MYSQL",
		"SKIFF_SECURITY_MASTER_SECRET",
		"SKIFF_LOG_LEVEL",
		"SKIFF_LOG_FORMAT",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "./data/skiff.db", cfg.Database.DSN)
	assert.Equal(t, "plan", cfg.Engine.Type)
	assert.Equal(t, flags.DefaultRegion, cfg.Engine.Region)
	assert.Equal(t, "app", cfg.App.Name)
	assert.Equal(t, flags.DefaultEnvironment, cfg.App.Environment)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
server:
  host: "127.0.0.1"
  port: 9000
  read_timeout: 60s
  shutdown_timeout: 15s

database:
  dsn: "/tmp/test.db"

engine:
  type: "aws"
  region: "eu-west-1"
  artifact_bucket: "my-artifacts"

app:
  name: "demo"
  environment: "staging"
  php_version: "8.3"
  use_mysql: true
  use_octane: true
  api_warm_rate: "rate(10 minutes)"

log:
  level: "debug"
  format: "text"
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/tmp/test.db", cfg.Database.DSN)
	assert.Equal(t, "aws", cfg.Engine.Type)
	assert.Equal(t, "eu-west-1", cfg.Engine.Region)
	assert.Equal(t, "my-artifacts", cfg.Engine.ArtifactBucket)
	assert.Equal(t, "demo", cfg.App.Name)
	assert.Equal(t, "staging", cfg.App.Environment)
	assert.True(t, cfg.App.UseMySQL)
	assert.True(t, cfg.App.UseOctane)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("SKIFF_SERVER_HOST", "192.168.1.1")
	t.Setenv("SKIFF_SERVER_PORT", "3000")
	t.Setenv("SKIFF_DATABASE_DSN", "/custom/path.db")
	t.Setenv("SKIFF_ENGINE_TYPE", "aws")
	t.Setenv("SKIFF_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.1", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/custom/path.db", cfg.Database.DSN)
	assert.Equal(t, "aws", cfg.Engine.Type)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_EnvOnlySecrets(t *testing.T) {
	// Secrets and credentials are commonly supplied only through the
	// environment, with no config file and no file entry at all.
	clearEnv(t)

	t.Setenv("SKIFF_SECURITY_MASTER_SECRET", "env-master-secret")
	t.Setenv("SKIFF_ENGINE_ACCESS_KEY_ID", "AKIAENVONLY")
	t.Setenv("SKIFF_ENGINE_SECRET_ACCESS_KEY", "env-secret-key")
	t.Setenv("SKIFF_ENGINE_ARTIFACT_BUCKET", "env-artifacts")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "env-master-secret", cfg.Security.MasterSecret)
	assert.Equal(t, "AKIAENVONLY", cfg.Engine.AccessKeyID)
	assert.Equal(t, "env-secret-key", cfg.Engine.SecretAccessKey)
	assert.Equal(t, "env-artifacts", cfg.Engine.ArtifactBucket)
}

func TestLoadConfig_FileNotFound_UsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	require.NoError(t, err) // Should not error, just use defaults

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid: yaml: content: [[["), 0644))

	_, err := LoadConfig(tmpFile)
	assert.Error(t, err)
}

// =============================================================================
// Flags Conversion Tests
// =============================================================================

func TestConfig_FeatureFlags(t *testing.T) {
	cfg := &Config{
		Engine: EngineConfig{Region: "ap-southeast-2"},
		App: AppConfig{
			Name:                "demo",
			Environment:         "staging",
			PHPVersion:          "8.3",
			UseMySQL:            true,
			UseArtisanScheduler: true,
			ArtisanScheduleRate: "rate(2 minutes)",
		},
	}

	f := cfg.FeatureFlags()
	assert.Equal(t, "demo", f.AppName)
	assert.Equal(t, "staging", f.Environment)
	assert.Equal(t, "ap-southeast-2", f.Region)
	assert.Equal(t, "8.3", f.PHPVersion)
	assert.True(t, f.UseMySQL)
	assert.True(t, f.UseArtisanScheduler)
	assert.Equal(t, "rate(2 minutes)", f.ArtisanScheduleRate)
	assert.True(t, f.NetworkRequired())
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger_JSONFormat(t *testing.T) {
	cfg := &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}

	logger := SetupLogger(cfg)
	assert.NotNil(t, logger)
}

func TestSetupLogger_TextFormat(t *testing.T) {
	cfg := &Config{
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
		},
	}

	logger := SetupLogger(cfg)
	assert.NotNil(t, logger)
}
