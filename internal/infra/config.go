package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv                 string
	Port                   string
	BackendBaseURL         string
	BackendTimeout         time.Duration
	PollInterval           time.Duration
	DatabaseURL            string
	StoragePath            string
	StorageBaseURL         string
	CloudSyncUserID        string
	CloudSyncTimeout       time.Duration
	CloudSyncRequireUpload bool
	HTTPReadTimeout        time.Duration
	HTTPWriteTimeout       time.Duration
	HTTPIdleTimeout        time.Duration
	RateLimitPerMin        int
	CORSAllowedOrigins     []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:                 getEnv("APP_ENV", "development"),
		Port:                   port,
		BackendBaseURL:         strings.TrimRight(getEnv("ACESTEP_BASE_URL", "http://127.0.0.1:8000"), "/"),
		BackendTimeout:         time.Second * time.Duration(getEnvInt("ACESTEP_TIMEOUT_SECONDS", 30)),
		PollInterval:           time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", 1000)),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		StoragePath:            getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:         strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"), "/"),
		CloudSyncUserID:        strings.TrimSpace(os.Getenv("CLOUD_SYNC_USER_ID")),
		CloudSyncTimeout:       time.Second * time.Duration(getEnvInt("CLOUD_SYNC_TIMEOUT_SECONDS", 60)),
		CloudSyncRequireUpload: getEnvBool("CLOUD_SYNC_REQUIRE_UPLOAD", false),
		HTTPReadTimeout:        time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:       time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:        time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:        getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins:     getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	parsed, err := url.Parse(cfg.BackendBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("ACESTEP_BASE_URL must be an absolute url, got %q", cfg.BackendBaseURL)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if cfg.BackendTimeout <= 0 || cfg.CloudSyncTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be positive")
	}

	return cfg, nil
}

// CloudSyncEnabled reports whether completed tracks should be persisted.
func (c *Config) CloudSyncEnabled() bool {
	return c.DatabaseURL != "" && c.CloudSyncUserID != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
