// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// API
	APIBaseURL     string
	StorageBaseURL string
	RequestTimeout time.Duration
	RateLimit      float64 // req/sec
	RateBurst      int

	// Credential
	CredentialStore       string // "file", "sqlite", "postgres", "memory"
	DataDir               string
	CredentialDatabaseURL string

	// Agent
	AgentAddr          string
	AgentAllowedOrigin string
	RefreshInterval    time.Duration

	// Media
	MediaMaxSize int64

	// Logging
	LogLevel string
}

// FileConfig はTOML設定ファイルの内容を表す。
// 環境変数が設定されている項目は環境変数が優先される。
type FileConfig struct {
	APIBaseURL            string  `toml:"api_base_url"`
	StorageBaseURL        string  `toml:"storage_base_url"`
	RequestTimeout        string  `toml:"request_timeout"`
	RateLimit             float64 `toml:"rate_limit"`
	RateBurst             int     `toml:"rate_burst"`
	CredentialStore       string  `toml:"credential_store"`
	DataDir               string  `toml:"data_dir"`
	CredentialDatabaseURL string  `toml:"credential_database_url"`
	AgentAddr             string  `toml:"agent_addr"`
	AgentAllowedOrigin    string  `toml:"agent_allowed_origin"`
	RefreshInterval       string  `toml:"refresh_interval"`
	MediaMaxSize          int64   `toml:"media_max_size"`
	LogLevel              string  `toml:"log_level"`
}

var validStores = map[string]bool{
	"file":     true,
	"sqlite":   true,
	"postgres": true,
	"memory":   true,
}

// Load は環境変数（およびTBOOKERS_CONFIGで指定されたTOMLファイル）からConfigを読み込む。
// 必須項目が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	var file FileConfig
	if path := os.Getenv("TBOOKERS_CONFIG"); path != "" {
		f, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		file = *f
	}

	cfg := &Config{}

	cfg.APIBaseURL = strings.TrimRight(getEnvString("TBOOKERS_API_BASE_URL", file.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("required setting is not set: [TBOOKERS_API_BASE_URL]")
	}

	cfg.StorageBaseURL = strings.TrimRight(getEnvString("TBOOKERS_STORAGE_BASE_URL",
		orDefault(file.StorageBaseURL, cfg.APIBaseURL+"/storage")), "/")
	cfg.RequestTimeout = getEnvDuration("TBOOKERS_REQUEST_TIMEOUT", parseDurationOr(file.RequestTimeout, 15*time.Second))
	cfg.RateLimit = getEnvFloat("TBOOKERS_RATE_LIMIT", orDefaultFloat(file.RateLimit, 10))
	cfg.RateBurst = getEnvInt("TBOOKERS_RATE_BURST", orDefaultInt(file.RateBurst, 20))

	cfg.CredentialStore = strings.ToLower(getEnvString("TBOOKERS_CREDENTIAL_STORE", orDefault(file.CredentialStore, "file")))
	if !validStores[cfg.CredentialStore] {
		return nil, fmt.Errorf("unknown credential store: %s", cfg.CredentialStore)
	}
	cfg.DataDir = getEnvString("TBOOKERS_DATA_DIR", orDefault(file.DataDir, defaultDataDir()))
	cfg.CredentialDatabaseURL = getEnvString("TBOOKERS_CREDENTIAL_DATABASE_URL", file.CredentialDatabaseURL)
	if cfg.CredentialStore == "postgres" && cfg.CredentialDatabaseURL == "" {
		return nil, fmt.Errorf("TBOOKERS_CREDENTIAL_DATABASE_URL is required for the postgres credential store")
	}

	cfg.AgentAddr = getEnvString("TBOOKERS_AGENT_ADDR", orDefault(file.AgentAddr, "127.0.0.1:8765"))
	cfg.AgentAllowedOrigin = getEnvString("TBOOKERS_AGENT_ALLOWED_ORIGIN", orDefault(file.AgentAllowedOrigin, "http://localhost:3000"))
	cfg.RefreshInterval = getEnvDuration("TBOOKERS_REFRESH_INTERVAL", parseDurationOr(file.RefreshInterval, 60*time.Second))
	cfg.MediaMaxSize = getEnvInt64("TBOOKERS_MEDIA_MAX_SIZE", orDefaultInt64(file.MediaMaxSize, 25<<20))
	cfg.LogLevel = getEnvString("TBOOKERS_LOG_LEVEL", orDefault(file.LogLevel, "info"))

	return cfg, nil
}

// ReadFile はTOML設定ファイルを読み込む。
func ReadFile(path string) (*FileConfig, error) {
	var fc FileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return &fc, nil
}

// CredentialFilePath はfileストアのクレデンシャル保存先を返す。
func (c *Config) CredentialFilePath() string {
	return filepath.Join(c.DataDir, "credential.age")
}

// IdentityFilePath はクレデンシャル暗号化用age鍵の保存先を返す。
func (c *Config) IdentityFilePath() string {
	return filepath.Join(c.DataDir, "identity.key")
}

// SQLitePath はsqliteストアのデータベースファイルを返す。
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "tbookers.db")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".tbookers"
	}
	return filepath.Join(home, ".tbookers")
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orDefaultInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orDefaultInt64(v, def int64) int64 {
	if v != 0 {
		return v
	}
	return def
}

func orDefaultFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}

func parseDurationOr(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
