package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAppName        = "TokenLedger"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultAccessTTL      = 15 * time.Minute
	defaultEventsChannel  = "token-events"
	defaultLoginLimit     = 5
	devJWTSecret          = "dev-only-secret"

	shutdownSecondsKey = "shutdown_timeout_seconds"
	shutdownKey        = "shutdown_timeout"
	idemSecondsKey     = "idempotency_ttl_seconds"
	idemKey            = "idempotency_ttl"
)

// Config captures application runtime configuration loaded from environment
// variables and an optional config file named by CONFIG_FILE.
type Config struct {
	AppName        string
	Env            string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	JWTSecret      string
	AccessTokenTTL time.Duration
	// OwnerAccount may point the ledger at its permission registry.
	OwnerAccount string
	// RegistryAccount operates the built-in permission registry.
	RegistryAccount string
	EventsChannel   string
	LoginRateLimit  int
}

var keys = []string{
	"app_name", "app_env", "port", "log_level", "database_url", "redis_url",
	shutdownSecondsKey, shutdownKey, idemSecondsKey, idemKey,
	"jwt_secret", "access_token_ttl", "owner_account", "registry_account",
	"events_channel", "login_rate_limit", "config_file",
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom populates a Config from v after registering defaults and environment bindings.
func LoadFrom(v *viper.Viper) (Config, error) {
	for _, key := range keys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	v.SetDefault("app_name", defaultAppName)
	v.SetDefault("app_env", defaultAppEnv)
	v.SetDefault("port", defaultPort)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("access_token_ttl", defaultAccessTTL)
	v.SetDefault("owner_account", "tokenowner")
	v.SetDefault("registry_account", "yrcregistry")
	v.SetDefault("events_channel", defaultEventsChannel)
	v.SetDefault("login_rate_limit", defaultLoginLimit)

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		AppName:         v.GetString("app_name"),
		Env:             v.GetString("app_env"),
		Port:            v.GetString("port"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),
		DatabaseURL:     v.GetString("database_url"),
		RedisURL:        v.GetString("redis_url"),
		JWTSecret:       v.GetString("jwt_secret"),
		AccessTokenTTL:  v.GetDuration("access_token_ttl"),
		OwnerAccount:    v.GetString("owner_account"),
		RegistryAccount: v.GetString("registry_account"),
		EventsChannel:   v.GetString("events_channel"),
		LoginRateLimit:  v.GetInt("login_rate_limit"),
	}

	var err error
	if cfg.ShutdownPeriod, err = duration(v, shutdownSecondsKey, shutdownKey, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = duration(v, idemSecondsKey, idemKey, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL <= 0 {
		return Config{}, fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}

	if cfg.IsDev() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = devJWTSecret
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}
	return cfg, nil
}

// duration prefers a whole-seconds setting over a Go duration string.
func duration(v *viper.Viper, secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if raw := v.GetString(secondsKey); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", strings.ToUpper(secondsKey), err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if raw := v.GetString(durationKey); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", strings.ToUpper(durationKey), err)
		}
		return d, nil
	}
	return fallback, nil
}

// IsDev reports whether the service runs in a development environment, where
// Postgres and Redis are optional.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
