package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/skiffhq/skiff/internal/core/flags"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Engine   EngineConfig   `mapstructure:"engine"`
	App      AppConfig      `mapstructure:"app"`
	Security SecurityConfig `mapstructure:"security"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds state store configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// EngineConfig holds provisioning engine configuration.
type EngineConfig struct {
	// Type selects the provisioning engine: "plan" or "aws".
	Type            string `mapstructure:"type"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ArtifactBucket  string `mapstructure:"artifact_bucket"`
}

// AppConfig holds the deployment options for the composed application.
type AppConfig struct {
	Name                string `mapstructure:"name"`
	Environment         string `mapstructure:"environment"`
	PHPVersion          string `mapstructure:"php_version"`
	UseMySQL            bool   `mapstructure:"use_mysql"`
	UseVPC              bool   `mapstructure:"use_vpc"`
	UseOctane           bool   `mapstructure:"use_octane"`
	UseAPIWarmer        bool   `mapstructure:"use_api_warmer"`
	UseArtisanScheduler bool   `mapstructure:"use_artisan_scheduler"`
	APIWarmRate         string `mapstructure:"api_warm_rate"`
	ArtisanScheduleRate string `mapstructure:"artisan_schedule_rate"`
	CodeRef             string `mapstructure:"code_ref"`
}

// SecurityConfig holds secrets used by the CLI itself.
type SecurityConfig struct {
	// MasterSecret derives the key that seals database credentials at
	// rest. Set via SKIFF_SECURITY_MASTER_SECRET.
	MasterSecret string `mapstructure:"master_secret"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FeatureFlags converts the app section into composition flags.
func (c *Config) FeatureFlags() flags.FeatureFlags {
	return flags.FeatureFlags{
		AppName:             c.App.Name,
		Environment:         c.App.Environment,
		Region:              c.Engine.Region,
		PHPVersion:          c.App.PHPVersion,
		UseMySQL:            c.App.UseMySQL,
		UseVPC:              c.App.UseVPC,
		UseOctane:           c.App.UseOctane,
		UseAPIWarmer:        c.App.UseAPIWarmer,
		UseArtisanScheduler: c.App.UseArtisanScheduler,
		APIWarmRate:         c.App.APIWarmRate,
		ArtisanScheduleRate: c.App.ArtisanScheduleRate,
	}
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.dsn", "./data/skiff.db")
	v.SetDefault("engine.type", "plan")
	v.SetDefault("engine.region", flags.DefaultRegion)
	v.SetDefault("app.name", "app")
	v.SetDefault("app.environment", flags.DefaultEnvironment)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Secrets and credentials have no file defaults; register the keys so
	// environment-only values survive Unmarshal.
	v.SetDefault("engine.access_key_id", "")
	v.SetDefault("engine.secret_access_key", "")
	v.SetDefault("engine.artifact_bucket", "")
	v.SetDefault("security.master_secret", "")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("SKIFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
