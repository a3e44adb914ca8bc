package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearClientEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{apiURLEnvVar, "LOG_LEVEL", storageURLEnvVar, profileEnvVar, countryCodeEnvVar,
		requestTimeoutEnvVar, rememberDaysEnvVar, rememberMaxAgeEnvVar} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearClientEnv(t)
	dir := t.TempDir()
	t.Setenv(stateDirEnvVar, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != defaultAPIURL {
		t.Fatalf("expected default api url, got %q", cfg.APIURL)
	}
	if cfg.CountryCode != "254" || cfg.RememberMeMaxAge != 30*24*time.Hour {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if want := filepath.Join(dir, "storage", "default.json"); cfg.StorageURL != want {
		t.Fatalf("expected storage %q, got %q", want, cfg.StorageURL)
	}
	if !strings.Contains(cfg.SessionAreaPath(), "faithconnect-default-") {
		t.Fatalf("unexpected session path %q", cfg.SessionAreaPath())
	}
}

func TestLoadProfileFileAndEnvPrecedence(t *testing.T) {
	clearClientEnv(t)
	dir := t.TempDir()
	t.Setenv(stateDirEnvVar, dir)
	yml := "api_url: https://api.faithconnect.example/api/v3/\nprofile: work\nrequest_timeout: 5s\nremember_me_max_age: 48h\n"
	if err := os.WriteFile(filepath.Join(dir, profileFileName), []byte(yml), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "https://api.faithconnect.example/api/v3" || cfg.Profile != "work" {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.RequestTimeout != 5*time.Second || cfg.RememberMeMaxAge != 48*time.Hour {
		t.Fatalf("expected file durations, got %+v", cfg)
	}

	t.Setenv(apiURLEnvVar, "http://localhost:9000/api/v3")
	t.Setenv(rememberDaysEnvVar, "7")
	t.Setenv(countryCodeEnvVar, "+256")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://localhost:9000/api/v3" || cfg.RememberMeMaxAge != 7*24*time.Hour || cfg.CountryCode != "256" {
		t.Fatalf("expected env overrides, got %+v", cfg)
	}
}

func TestRememberMeDaysTakesPrecedenceOverMaxAge(t *testing.T) {
	clearClientEnv(t)
	t.Setenv(stateDirEnvVar, t.TempDir())

	t.Setenv(rememberMaxAgeEnvVar, "36h")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RememberMeMaxAge != 36*time.Hour {
		t.Fatalf("expected 36h, got %s", cfg.RememberMeMaxAge)
	}

	t.Setenv(rememberDaysEnvVar, "2")
	if cfg, err = Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RememberMeMaxAge != 48*time.Hour {
		t.Fatalf("expected days to win, got %s", cfg.RememberMeMaxAge)
	}

	t.Setenv(rememberDaysEnvVar, "two")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-numeric days")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearClientEnv(t)
	t.Setenv(stateDirEnvVar, t.TempDir())

	t.Setenv(apiURLEnvVar, "/api/v3")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for relative api url")
	}
	t.Setenv(apiURLEnvVar, "")
	t.Setenv(requestTimeoutEnvVar, "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad timeout")
	}
}

func TestLoadServer(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadServer(); err == nil {
		t.Fatalf("expected JWT_SECRET to be required outside dev")
	}

	t.Setenv("APP_ENV", "development")
	t.Setenv("API_BASE_PATH", "api/v3/")
	t.Setenv("OTP_TTL", "5m")
	t.Setenv("PORT", "9001")
	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("load server: %v", err)
	}
	if cfg.JWTSecret != defaultDevJWTSecret || cfg.BasePath != "/api/v3" || cfg.OTPTTL != 5*time.Minute {
		t.Fatalf("unexpected server config %+v", cfg)
	}
	if cfg.Address() != ":9001" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}
