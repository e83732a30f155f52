package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ProviderConfig holds per-provider connection settings.
type ProviderConfig struct {
	Name     string
	BaseURL  string
	APIKey   string
	Enabled  bool
	Priority int
}

// Config holds all configuration for the rate service.
type Config struct {
	// Server
	HTTPPort int

	// Environment
	Environment string
	LogLevel    string

	// Observability
	MetricsEnabled  bool
	MetricsEndpoint string
	JaegerURL       string
	TracingEnabled  bool

	// Providers
	ActiveProvider string
	Providers      []ProviderConfig

	// Resilience
	RetryMaxAttempts int
	BreakerThreshold int
	BreakerCooldown  time.Duration

	// Cache
	CacheBackend string // "memory" or "redis"
	RedisAddr    string
	RedisPass    string
	RedisDB      int

	// TTL policy
	RateTimezone       string
	PublicationHour    int
	PublicationBuffer  time.Duration
	BusinessHoursStart int
	BusinessHoursEnd   int
	BusinessTTLCeiling time.Duration
	OffHoursTTLCeiling time.Duration

	// Conversion
	HomeCurrency       string
	ExcludedCurrencies []string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort: getEnvInt("HTTP_PORT", 8080),

		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		MetricsEndpoint: getEnv("METRICS_ENDPOINT", "/metrics"),
		JaegerURL:       getEnv("JAEGER_URL", "http://localhost:14268/api/traces"),
		TracingEnabled:  getEnvBool("TRACING_ENABLED", false),

		ActiveProvider: getEnv("ACTIVE_PROVIDER", "frankfurter"),
		Providers: []ProviderConfig{
			{
				Name:     "frankfurter",
				BaseURL:  getEnv("FRANKFURTER_BASE_URL", "https://api.frankfurter.app"),
				APIKey:   getEnv("FRANKFURTER_API_KEY", ""),
				Enabled:  getEnvBool("FRANKFURTER_ENABLED", true),
				Priority: getEnvInt("FRANKFURTER_PRIORITY", 1),
			},
			{
				Name:     "exchangerate-host",
				BaseURL:  getEnv("RATEHOST_BASE_URL", "https://api.exchangerate.host"),
				APIKey:   getEnv("RATEHOST_API_KEY", ""),
				Enabled:  getEnvBool("RATEHOST_ENABLED", true),
				Priority: getEnvInt("RATEHOST_PRIORITY", 2),
			},
			{
				Name:     "openexchange",
				BaseURL:  getEnv("OXR_BASE_URL", "https://openexchangerates.org/api"),
				APIKey:   getEnv("OXR_APP_ID", ""),
				Enabled:  getEnvBool("OXR_ENABLED", false),
				Priority: getEnvInt("OXR_PRIORITY", 3),
			},
		},

		RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		BreakerThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 3),
		BreakerCooldown:  getEnvDuration("BREAKER_COOLDOWN", 30*time.Second),

		CacheBackend: getEnv("CACHE_BACKEND", "memory"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:      getEnvInt("REDIS_DB", 0),

		RateTimezone:       getEnv("RATE_TIMEZONE", "Europe/Berlin"),
		PublicationHour:    getEnvInt("PUBLICATION_HOUR", 16),
		PublicationBuffer:  getEnvDuration("PUBLICATION_BUFFER", 5*time.Minute),
		BusinessHoursStart: getEnvInt("BUSINESS_HOURS_START", 8),
		BusinessHoursEnd:   getEnvInt("BUSINESS_HOURS_END", 18),
		BusinessTTLCeiling: getEnvDuration("BUSINESS_TTL_CEILING", 30*time.Minute),
		OffHoursTTLCeiling: getEnvDuration("OFF_HOURS_TTL_CEILING", 6*time.Hour),

		HomeCurrency:       getEnv("HOME_CURRENCY", "EUR"),
		ExcludedCurrencies: getEnvList("EXCLUDED_CURRENCIES", []string{"TRY", "RUB"}),
	}
}

// IsDevelopment returns true if running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// Provider returns the configuration for a named provider.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
