package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Env      string
	Server   ServerConfig
	API      APIConfig
	Session  SessionConfig
	Redis    RedisConfig
	AWS      AWSConfig
	Auth     AuthConfig
	Workflow WorkflowConfig
	Store    StoreConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
}

// APIConfig points at the upstream community platform REST API.
type APIConfig struct {
	BaseURL      string // versioned base, e.g. https://api.example.com/api/v1
	AssetBaseURL string // prefix for relative image paths returned by the API
	TimeoutSec   int
}

// SessionConfig controls where viewer sessions are persisted.
type SessionConfig struct {
	Backend    string // "redis" or "file"
	Dir        string // directory for the file backend
	Secret     string // sealing key material for the file backend
	CookieName string
	TTLHours   int
	Secure     bool
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AWSConfig holds AWS credentials and the bucket serving webinar images.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	AssetsBucket         string
	PresignExpireMinutes int
}

// AuthConfig holds upstream token handling settings.
type AuthConfig struct {
	UpstreamJWTSecret    string // optional; when set, upstream tokens are HMAC-validated
	OTPResendCooldownSec int
}

// WorkflowConfig holds registration workflow policy.
type WorkflowConfig struct {
	PaidQuestions string // "skip" or "collect"
}

// StoreConfig holds per-viewer store settings.
type StoreConfig struct {
	IdleTTLMinutes int
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:               getEnv("PORT", "8090"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		API: APIConfig{
			BaseURL:      strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080/api/v1"), "/"),
			AssetBaseURL: strings.TrimRight(getEnv("ASSET_BASE_URL", ""), "/"),
			TimeoutSec:   getEnvInt("API_TIMEOUT_SEC", 15),
		},
		Session: SessionConfig{
			Backend:    strings.ToLower(getEnv("SESSION_BACKEND", "redis")),
			Dir:        getEnv("SESSION_DIR", ""),
			Secret:     getEnv("SESSION_SECRET", "change-me-in-production"),
			CookieName: getEnv("SESSION_COOKIE", "portal_session"),
			TTLHours:   getEnvInt("SESSION_TTL_HOURS", 24),
			Secure:     getEnvBool("SESSION_COOKIE_SECURE", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			AssetsBucket:         getEnv("AWS_S3_ASSETS_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Auth: AuthConfig{
			UpstreamJWTSecret:    getEnv("UPSTREAM_JWT_SECRET", ""),
			OTPResendCooldownSec: getEnvInt("OTP_RESEND_COOLDOWN_SEC", 60),
		},
		Workflow: WorkflowConfig{
			PaidQuestions: strings.ToLower(getEnv("PAID_WEBINAR_QUESTIONS", "skip")),
		},
		Store: StoreConfig{
			IdleTTLMinutes: getEnvInt("STORE_IDLE_TTL_MINUTES", 30),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
