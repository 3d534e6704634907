package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr      string
	PostgresDSN   string
	LogLevel      string
	PublicBaseURL string

	AdminAPIKey string

	SigningKeySeedHex string
	SigningKeyID      string

	PolicyBundlePath string
	PolicyBundleID   string

	ObjectStoreDir string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SweepIntervalSeconds  int
	NotifyBuffer          int
	VerifyCacheTTLSeconds int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		PublicBaseURL:          envDefault("PUBLIC_BASE_URL", "http://localhost:8080"),
		AdminAPIKey:            os.Getenv("ADMIN_API_KEY"),
		SigningKeySeedHex:      os.Getenv("SIGNING_KEY_SEED_HEX"),
		SigningKeyID:           os.Getenv("SIGNING_KEY_ID"),
		PolicyBundlePath:       os.Getenv("POLICY_BUNDLE_PATH"),
		PolicyBundleID:         envDefault("POLICY_BUNDLE_ID", "signing-policy"),
		ObjectStoreDir:         os.Getenv("OBJECT_STORE_DIR"),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:    envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
		SweepIntervalSeconds:   envIntDefault("SWEEP_INTERVAL_SECONDS", 60),
		NotifyBuffer:           envIntDefault("NOTIFY_BUFFER", 256),
		VerifyCacheTTLSeconds:  envIntDefault("VERIFY_CACHE_TTL_SECONDS", 300),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func (c Config) SweepInterval() time.Duration {
	if c.SweepIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c Config) VerifyCacheTTL() time.Duration {
	if c.VerifyCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.VerifyCacheTTLSeconds) * time.Second
}
