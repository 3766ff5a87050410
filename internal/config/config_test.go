package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TBOOKERS_CONFIG", "TBOOKERS_API_BASE_URL", "TBOOKERS_STORAGE_BASE_URL",
		"TBOOKERS_REQUEST_TIMEOUT", "TBOOKERS_RATE_LIMIT", "TBOOKERS_RATE_BURST",
		"TBOOKERS_CREDENTIAL_STORE", "TBOOKERS_DATA_DIR", "TBOOKERS_CREDENTIAL_DATABASE_URL",
		"TBOOKERS_AGENT_ADDR", "TBOOKERS_AGENT_ALLOWED_ORIGIN", "TBOOKERS_REFRESH_INTERVAL",
		"TBOOKERS_MEDIA_MAX_SIZE", "TBOOKERS_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_RequiredVarSet_ReturnsConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("TBOOKERS_API_BASE_URL", "https://api.example.com/api/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APIBaseURL != "https://api.example.com/api" {
		t.Errorf("APIBaseURL = %q, want trailing slash trimmed", cfg.APIBaseURL)
	}
	if cfg.StorageBaseURL != "https://api.example.com/api/storage" {
		t.Errorf("StorageBaseURL = %q", cfg.StorageBaseURL)
	}
}

func TestLoad_MissingBaseURL_ReturnsError(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err == nil {
		t.Fatal("expected error for missing TBOOKERS_API_BASE_URL")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TBOOKERS_API_BASE_URL", "https://api.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v, want %v", cfg.RequestTimeout, 15*time.Second)
	}
	if cfg.RateLimit != 10 {
		t.Errorf("RateLimit = %v, want 10", cfg.RateLimit)
	}
	if cfg.RateBurst != 20 {
		t.Errorf("RateBurst = %d, want 20", cfg.RateBurst)
	}
	if cfg.CredentialStore != "file" {
		t.Errorf("CredentialStore = %q, want file", cfg.CredentialStore)
	}
	if cfg.AgentAddr != "127.0.0.1:8765" {
		t.Errorf("AgentAddr = %q", cfg.AgentAddr)
	}
	if cfg.RefreshInterval != 60*time.Second {
		t.Errorf("RefreshInterval = %v", cfg.RefreshInterval)
	}
	if cfg.MediaMaxSize != 25<<20 {
		t.Errorf("MediaMaxSize = %d", cfg.MediaMaxSize)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TBOOKERS_API_BASE_URL", "https://api.example.com")
	t.Setenv("TBOOKERS_STORAGE_BASE_URL", "https://cdn.example.com/")
	t.Setenv("TBOOKERS_REQUEST_TIMEOUT", "3s")
	t.Setenv("TBOOKERS_RATE_LIMIT", "2.5")
	t.Setenv("TBOOKERS_CREDENTIAL_STORE", "SQLite")
	t.Setenv("TBOOKERS_DATA_DIR", "/tmp/tb")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.StorageBaseURL != "https://cdn.example.com" {
		t.Errorf("StorageBaseURL = %q", cfg.StorageBaseURL)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.RateLimit != 2.5 {
		t.Errorf("RateLimit = %v", cfg.RateLimit)
	}
	if cfg.CredentialStore != "sqlite" {
		t.Errorf("CredentialStore = %q", cfg.CredentialStore)
	}
	if cfg.SQLitePath() != filepath.Join("/tmp/tb", "tbookers.db") {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath())
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TBOOKERS_API_BASE_URL", "https://api.example.com")
	t.Setenv("TBOOKERS_REQUEST_TIMEOUT", "soon")
	t.Setenv("TBOOKERS_RATE_BURST", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.RateBurst != 20 {
		t.Errorf("RateBurst = %d", cfg.RateBurst)
	}
}

func TestLoad_UnknownStore_ReturnsError(t *testing.T) {
	clearEnv(t)
	t.Setenv("TBOOKERS_API_BASE_URL", "https://api.example.com")
	t.Setenv("TBOOKERS_CREDENTIAL_STORE", "keychain")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown credential store")
	}
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("TBOOKERS_API_BASE_URL", "https://api.example.com")
	t.Setenv("TBOOKERS_CREDENTIAL_STORE", "postgres")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when postgres store has no database URL")
	}
}

func TestLoad_FileProvidesDefaultsAndEnvWins(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "tbookers.toml")
	content := `
api_base_url = "https://file.example.com"
request_timeout = "7s"
log_level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TBOOKERS_CONFIG", path)
	t.Setenv("TBOOKERS_LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APIBaseURL != "https://file.example.com" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.RequestTimeout != 7*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, env should win", cfg.LogLevel)
	}
}

func TestLoad_MissingConfigFile_ReturnsError(t *testing.T) {
	clearEnv(t)
	t.Setenv("TBOOKERS_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
