package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAppName           = "payvost-core-banking"
	defaultAppEnv            = "development"
	defaultPort              = "3001"
	defaultLogLevel          = "info"
	defaultShutdownDelay     = 10 * time.Second
	defaultIdempotencyTTL    = 24 * time.Hour
	defaultTransferTimeout   = 10 * time.Second
	defaultTransferRateLimit = 120
	idemTTLSecondsEnvVar     = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar         = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar    = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar   = "SHUTDOWN_TIMEOUT"
	transferTimeoutEnvVar    = "TRANSFER_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName           string
	AppEnv            string
	Port              string
	LogLevel          string
	DatabaseURL       string
	RedisURL          string
	APIKey            string
	ShutdownPeriod    time.Duration
	IdempotencyTTL    time.Duration
	TransferTimeout   time.Duration
	TransferRateLimit int
	MigrateOnStart    bool
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("TRANSFER_RATE_LIMIT", defaultTransferRateLimit)
	v.SetDefault("MIGRATE_ON_START", false)

	cfg := Config{
		AppName:           v.GetString("APP_NAME"),
		AppEnv:            strings.ToLower(v.GetString("APP_ENV")),
		Port:              v.GetString("PORT"),
		LogLevel:          strings.ToLower(v.GetString("LOG_LEVEL")),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		RedisURL:          v.GetString("REDIS_URL"),
		APIKey:            firstNonEmpty(v.GetString("INTERNAL_API_KEY"), v.GetString("CORE_BANKING_SERVICE_API_KEY")),
		TransferRateLimit: v.GetInt("TRANSFER_RATE_LIMIT"),
		MigrateOnStart:    v.GetBool("MIGRATE_ON_START"),
	}

	var err error
	if cfg.ShutdownPeriod, err = duration(v, shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = duration(v, idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.TransferTimeout, err = duration(v, "", transferTimeoutEnvVar, defaultTransferTimeout); err != nil {
		return Config{}, err
	}
	if cfg.TransferTimeout <= 0 {
		return Config{}, fmt.Errorf("invalid %s: must be positive", transferTimeoutEnvVar)
	}
	if cfg.TransferRateLimit < 0 {
		return Config{}, fmt.Errorf("invalid TRANSFER_RATE_LIMIT: must not be negative")
	}

	if cfg.DatabaseURL == "" && !cfg.IsDevelopment() {
		return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
	}
	if cfg.APIKey == "" && !cfg.IsDevelopment() {
		return Config{}, fmt.Errorf("INTERNAL_API_KEY or CORE_BANKING_SERVICE_API_KEY must be set when APP_ENV=%s", cfg.AppEnv)
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether the service runs in a local environment where
// an in-memory ledger is acceptable.
func (c Config) IsDevelopment() bool {
	switch c.AppEnv {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// duration reads a whole-seconds variable first and a Go duration string second.
func duration(v *viper.Viper, secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if raw := v.GetString(secondsKey); raw != "" {
			seconds, err := strconv.Atoi(raw)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if raw := v.GetString(durationKey); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
