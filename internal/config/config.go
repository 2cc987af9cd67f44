package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Tenant        TenantConfig
	CRM           CRMConfig
	Reminder      ReminderConfig
	Observability ObservabilityConfig
	Trigger       TriggerConfig
	RateLimit     RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// TenantConfig locates the tenant document for this deployment
type TenantConfig struct {
	ID  string
	Dir string
}

// CRMConfig holds CRM gateway client configuration.
// TokenTTL is a local approximation of the token lifetime; the upstream
// login response does not carry one, so expiry drift is corrected by the
// single 401 retry in the client.
type CRMConfig struct {
	TokenTTL       time.Duration
	RequestTimeout time.Duration
}

// ReminderConfig holds reminder scheduling configuration.
// MonthLength is the fixed 30-day month used for "N months from now".
type ReminderConfig struct {
	MonthLength      time.Duration
	SchedulerEnabled bool
	SchedulerTick    time.Duration
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
	SamplingRate   float64
}

// TriggerConfig holds the shared secret for the manual reminder trigger
type TriggerConfig struct {
	Secret string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "gateway"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "gateway"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(parseInt("DB_MAX_CONNS", 25)),
			MinConns: int32(parseInt("DB_MIN_CONNS", 2)),
		},
		Tenant: TenantConfig{
			ID:  getEnv("TENANT_ID", "vojd"),
			Dir: getEnv("TENANTS_DIR", "tenants"),
		},
		CRM: CRMConfig{
			TokenTTL:       parseDuration("CRM_TOKEN_TTL", "1h"),
			RequestTimeout: parseDuration("CRM_REQUEST_TIMEOUT", "20s"),
		},
		Reminder: ReminderConfig{
			MonthLength:      parseDuration("REMINDER_MONTH_LENGTH", "720h"),
			SchedulerEnabled: parseBool("REMINDER_SCHEDULER_ENABLED", true),
			SchedulerTick:    parseDuration("REMINDER_SCHEDULER_TICK", "1m"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "bot-gateway"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
			SamplingRate:   parseFloat("OTEL_SAMPLING_RATE", 1.0),
		},
		Trigger: TriggerConfig{
			Secret: getEnv("TRIGGER_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Tenant.ID == "" {
		return fmt.Errorf("TENANT_ID is required")
	}
	if c.Trigger.Secret == "" {
		return fmt.Errorf("TRIGGER_SECRET is required")
	}
	if c.CRM.TokenTTL <= 0 {
		return fmt.Errorf("CRM_TOKEN_TTL must be positive")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
