package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rosterhq/roster/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Storage       StorageConfig       `yaml:"storage"`
	SSO           SSOConfig           `yaml:"sso"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Invites       InvitesConfig       `yaml:"invites"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds database configuration. Driver "none" runs the
// server on the in-memory stores.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// RedisConfig holds Redis configuration for the distributed rate limiter
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig holds avatar storage configuration
type StorageConfig struct {
	Type           string `yaml:"type"` // filesystem or s3
	FilesystemRoot string `yaml:"filesystem_root"`
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3Region       string `yaml:"s3_region"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`
}

// SSOConfig holds OpenID Connect sign-in configuration
type SSOConfig struct {
	Enabled      bool   `yaml:"enabled"`
	IssuerURL    string `yaml:"issuer_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// InvitesConfig holds invite lifecycle configuration
type InvitesConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupSchedule string        `yaml:"cleanup_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel `yaml:"-"`
	LogLevelName   string                 `yaml:"log_level"`
	MetricsEnabled bool                   `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// LoadConfig loads configuration with precedence: defaults, then the YAML
// file named by ROSTER_CONFIG_FILE (if any), then environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("ROSTER_CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	cfg.Observability.LogLevel = observability.ParseLogLevel(cfg.Observability.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			Driver:   "postgres",
			MaxConns: 25,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Storage: StorageConfig{
			Type:           "filesystem",
			FilesystemRoot: "/var/lib/roster/avatars",
			S3Region:       "us-east-1",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 600,
			Burst:             100,
		},
		Invites: InvitesConfig{
			TTL:             7 * 24 * time.Hour,
			CleanupSchedule: "@hourly",
		},
		Observability: ObservabilityConfig{
			LogLevelName:       "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "roster",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("ROSTER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("ROSTER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("ROSTER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("ROSTER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("ROSTER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("ROSTER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.HealthPort = getEnv("ROSTER_HEALTH_PORT", cfg.Server.HealthPort)

	cfg.Database.Driver = getEnv("ROSTER_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.URL = getEnv("ROSTER_DB_URL", cfg.Database.URL)
	cfg.Database.MaxConns = getEnvInt("ROSTER_DB_MAX_CONNS", cfg.Database.MaxConns)

	cfg.Redis.Enabled = getEnvBool("ROSTER_REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = getEnv("ROSTER_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("ROSTER_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("ROSTER_REDIS_DB", cfg.Redis.DB)

	cfg.Storage.Type = getEnv("ROSTER_STORAGE_TYPE", cfg.Storage.Type)
	cfg.Storage.FilesystemRoot = getEnv("ROSTER_FILESYSTEM_ROOT", cfg.Storage.FilesystemRoot)
	cfg.Storage.S3Endpoint = getEnv("ROSTER_S3_ENDPOINT", cfg.Storage.S3Endpoint)
	cfg.Storage.S3Region = getEnv("ROSTER_S3_REGION", cfg.Storage.S3Region)
	cfg.Storage.S3Bucket = getEnv("ROSTER_S3_BUCKET", cfg.Storage.S3Bucket)
	cfg.Storage.S3AccessKey = getEnv("ROSTER_S3_ACCESS_KEY", cfg.Storage.S3AccessKey)
	cfg.Storage.S3SecretKey = getEnv("ROSTER_S3_SECRET_KEY", cfg.Storage.S3SecretKey)
	cfg.Storage.S3UsePathStyle = getEnvBool("ROSTER_S3_USE_PATH_STYLE", cfg.Storage.S3UsePathStyle)

	cfg.SSO.Enabled = getEnvBool("ROSTER_SSO_ENABLED", cfg.SSO.Enabled)
	cfg.SSO.IssuerURL = getEnv("ROSTER_SSO_ISSUER_URL", cfg.SSO.IssuerURL)
	cfg.SSO.ClientID = getEnv("ROSTER_SSO_CLIENT_ID", cfg.SSO.ClientID)
	cfg.SSO.ClientSecret = getEnv("ROSTER_SSO_CLIENT_SECRET", cfg.SSO.ClientSecret)
	cfg.SSO.RedirectURL = getEnv("ROSTER_SSO_REDIRECT_URL", cfg.SSO.RedirectURL)

	cfg.RateLimit.Enabled = getEnvBool("ROSTER_RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMinute = getEnvInt("ROSTER_RATE_LIMIT_RPM", cfg.RateLimit.RequestsPerMinute)
	cfg.RateLimit.Burst = getEnvInt("ROSTER_RATE_LIMIT_BURST", cfg.RateLimit.Burst)

	cfg.Invites.TTL = getEnvDuration("ROSTER_INVITE_TTL", cfg.Invites.TTL)
	cfg.Invites.CleanupSchedule = getEnv("ROSTER_INVITE_CLEANUP_SCHEDULE", cfg.Invites.CleanupSchedule)

	cfg.Observability.LogLevelName = getEnv("ROSTER_LOG_LEVEL", cfg.Observability.LogLevelName)
	cfg.Observability.MetricsEnabled = getEnvBool("ROSTER_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.OTelEnabled = getEnvBool("ROSTER_OTEL_ENABLED", cfg.Observability.OTelEnabled)
	cfg.Observability.OTelEndpoint = getEnv("ROSTER_OTEL_ENDPOINT", cfg.Observability.OTelEndpoint)
	cfg.Observability.OTelServiceName = getEnv("ROSTER_OTEL_SERVICE_NAME", cfg.Observability.OTelServiceName)
	cfg.Observability.OTelServiceVersion = getEnv("ROSTER_OTEL_SERVICE_VERSION", cfg.Observability.OTelServiceVersion)
	cfg.Observability.OTelInsecure = getEnvBool("ROSTER_OTEL_INSECURE", cfg.Observability.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
		if c.Database.URL == "" {
			return fmt.Errorf("database URL is required for driver %s", c.Database.Driver)
		}
	case "none":
		// in-memory stores, nothing to validate
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres, sqlite3, or none)", c.Database.Driver)
	}

	switch c.Storage.Type {
	case "filesystem":
		if c.Storage.FilesystemRoot == "" {
			return fmt.Errorf("filesystem root is required for filesystem storage")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be filesystem or s3)", c.Storage.Type)
	}

	if c.SSO.Enabled {
		if c.SSO.IssuerURL == "" || c.SSO.ClientID == "" || c.SSO.ClientSecret == "" {
			return fmt.Errorf("SSO issuer URL, client ID and client secret are required when SSO is enabled")
		}
	}

	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
