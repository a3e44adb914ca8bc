package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "FaithConnectDevAPI"
	defaultAppEnv          = "development"
	defaultPort            = "8000"
	defaultServerLogLevel  = "info"
	defaultBasePath        = "/api/v3"
	defaultDevJWTSecret    = "dev-only-secret"
	defaultShutdownDelay   = 10 * time.Second
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 30 * 24 * time.Hour
	defaultOTPTTL          = 10 * time.Minute
	defaultOTPPerMinute    = 5
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// ServerConfig captures the development API configuration loaded from
// environment variables.
type ServerConfig struct {
	AppName         string
	AppEnv          string
	Port            string
	LogLevel        string
	BasePath        string
	DatabaseURL     string
	RedisURL        string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	OTPTTL          time.Duration
	OTPPerMinute    int
	ShutdownPeriod  time.Duration
}

// LoadServer reads configuration values for the development API.
func LoadServer() (ServerConfig, error) {
	_ = godotenv.Load()

	cfg := ServerConfig{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultServerLogLevel)),
		BasePath:        "/" + strings.Trim(getEnv("API_BASE_PATH", defaultBasePath), "/"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		AccessTokenTTL:  defaultAccessTokenTTL,
		RefreshTokenTTL: defaultRefreshTokenTTL,
		OTPTTL:          defaultOTPTTL,
		OTPPerMinute:    defaultOTPPerMinute,
		ShutdownPeriod:  defaultShutdownDelay,
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	for env, dst := range map[string]*time.Duration{
		"ACCESS_TOKEN_TTL":  &cfg.AccessTokenTTL,
		"REFRESH_TOKEN_TTL": &cfg.RefreshTokenTTL,
		"OTP_TTL":           &cfg.OTPTTL,
	} {
		if v := os.Getenv(env); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return ServerConfig{}, fmt.Errorf("invalid %s: %w", env, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("OTP_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("invalid OTP_REQUESTS_PER_MINUTE: %w", err)
		}
		cfg.OTPPerMinute = n
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			return ServerConfig{}, fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
		}
		cfg.JWTSecret = defaultDevJWTSecret
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c ServerConfig) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the server runs in a local development environment.
func (c ServerConfig) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
