package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultAPIURL           = "http://localhost:8000/api/v3"
	defaultLogLevel         = "warn"
	defaultProfile          = "default"
	defaultCountryCode      = "254"
	defaultRequestTimeout   = 30 * time.Second
	defaultRememberMeMaxAge = 30 * 24 * time.Hour
	stateDirName            = ".faithconnect"
	profileFileName         = "config.yml"

	apiURLEnvVar         = "NEXT_PUBLIC_API_URL"
	stateDirEnvVar       = "FAITH_STATE_DIR"
	storageURLEnvVar     = "FAITH_STORAGE_URL"
	profileEnvVar        = "FAITH_PROFILE"
	countryCodeEnvVar    = "FAITH_COUNTRY_CODE"
	requestTimeoutEnvVar = "REQUEST_TIMEOUT"
	rememberDaysEnvVar   = "REMEMBER_ME_DAYS"
	rememberMaxAgeEnvVar = "REMEMBER_ME_MAX_AGE"
)

// Config captures client runtime configuration. Values come from, in order of
// precedence, environment variables (a .env file is loaded first when present),
// the YAML profile file in the state directory, and built-in defaults.
type Config struct {
	APIURL           string
	LogLevel         string
	StateDir         string
	StorageURL       string
	Profile          string
	CountryCode      string
	RequestTimeout   time.Duration
	RememberMeMaxAge time.Duration
}

type fileConfig struct {
	APIURL           string `yaml:"api_url"`
	LogLevel         string `yaml:"log_level"`
	StorageURL       string `yaml:"storage_url"`
	Profile          string `yaml:"profile"`
	CountryCode      string `yaml:"country_code"`
	RequestTimeout   string `yaml:"request_timeout"`
	RememberMeMaxAge string `yaml:"remember_me_max_age"`
}

// Load reads client configuration.
func Load() (Config, error) {
	_ = godotenv.Load()

	stateDir := os.Getenv(stateDirEnvVar)
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home dir: %w", err)
		}
		stateDir = filepath.Join(home, stateDirName)
	}

	file, err := readProfileFile(filepath.Join(stateDir, profileFileName))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIURL:           strings.TrimRight(getEnv(apiURLEnvVar, or(file.APIURL, defaultAPIURL)), "/"),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", or(file.LogLevel, defaultLogLevel))),
		StateDir:         stateDir,
		Profile:          getEnv(profileEnvVar, or(file.Profile, defaultProfile)),
		CountryCode:      strings.TrimPrefix(getEnv(countryCodeEnvVar, or(file.CountryCode, defaultCountryCode)), "+"),
		RequestTimeout:   defaultRequestTimeout,
		RememberMeMaxAge: defaultRememberMeMaxAge,
	}
	cfg.StorageURL = getEnv(storageURLEnvVar, or(file.StorageURL, filepath.Join(stateDir, "storage", cfg.Profile+".json")))

	if file.RequestTimeout != "" {
		d, err := time.ParseDuration(file.RequestTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("invalid request_timeout in %s: %w", profileFileName, err)
		}
		cfg.RequestTimeout = d
	}
	if v := os.Getenv(requestTimeoutEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", requestTimeoutEnvVar, err)
		}
		cfg.RequestTimeout = d
	}

	if file.RememberMeMaxAge != "" {
		d, err := time.ParseDuration(file.RememberMeMaxAge)
		if err != nil {
			return Config{}, fmt.Errorf("invalid remember_me_max_age in %s: %w", profileFileName, err)
		}
		cfg.RememberMeMaxAge = d
	}
	if v := os.Getenv(rememberDaysEnvVar); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", rememberDaysEnvVar, err)
		}
		cfg.RememberMeMaxAge = time.Duration(days) * 24 * time.Hour
	} else if v := os.Getenv(rememberMaxAgeEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", rememberMaxAgeEnvVar, err)
		}
		cfg.RememberMeMaxAge = d
	}

	u, err := url.Parse(cfg.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Config{}, fmt.Errorf("%s must be an absolute http(s) URL, got %q", apiURLEnvVar, cfg.APIURL)
	}

	return cfg, nil
}

// SessionAreaPath returns the file backing the session-scoped storage area.
// It is keyed by the parent process so each terminal gets its own area.
func (c Config) SessionAreaPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("faithconnect-%s-%d.json", c.Profile, os.Getppid()))
}

func readProfileFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fc, nil
	}
	if err != nil {
		return fc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("decode %s: %w", path, err)
	}
	return fc, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
