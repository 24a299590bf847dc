package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 環境種別
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// 資格情報プロバイダー種別
const (
	ProviderLocal           = "local"
	ProviderIdentityToolkit = "identitytoolkit"
)

// minJWTSecretLength はHS256署名鍵として受け付ける最小バイト数。
const minJWTSecretLength = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Environment
	AppEnv   string
	LogLevel string

	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Token
	JWTSecret string
	TokenTTL  time.Duration

	// Credential provider
	CredentialProvider string
	FirebaseAPIKey     string
	FirebaseProjectID  string
	FirebaseAdminToken string
	IdentityToolkitURL string
	ProviderTimeout    time.Duration
	BcryptCost         int

	// Initial admin
	InitialAdminEmail    string
	InitialAdminPassword string

	// Rate Limit
	RateLimitGeneral int
	RateLimitAuth    int
	RateLimitWindow  time.Duration

	// Login brute-force guard
	LoginMaxAttempts int
	LoginLockout     time.Duration

	// Messaging
	KafkaBrokers      []string
	KafkaBookingTopic string

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// IsProduction は本番環境かどうかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.CredentialProvider = strings.ToLower(getEnvString("CREDENTIAL_PROVIDER", ProviderLocal))
	cfg.FirebaseAPIKey = os.Getenv("FIREBASE_API_KEY")
	if cfg.CredentialProvider == ProviderIdentityToolkit && cfg.FirebaseAPIKey == "" {
		missing = append(missing, "FIREBASE_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.JWTSecret) < minJWTSecretLength {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength)
	}
	if cfg.CredentialProvider != ProviderLocal && cfg.CredentialProvider != ProviderIdentityToolkit {
		return nil, fmt.Errorf("unsupported CREDENTIAL_PROVIDER: %q", cfg.CredentialProvider)
	}

	// Optional fields with defaults
	cfg.AppEnv = strings.ToLower(getEnvString("APP_ENV", EnvDevelopment))
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 24*time.Hour)
	cfg.FirebaseProjectID = getEnvString("FIREBASE_PROJECT_ID", "")
	cfg.FirebaseAdminToken = getEnvString("FIREBASE_ADMIN_TOKEN", "")
	cfg.IdentityToolkitURL = getEnvString("IDENTITY_TOOLKIT_URL", "")
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 12)
	cfg.InitialAdminEmail = getEnvString("INITIAL_ADMIN_EMAIL", "")
	cfg.InitialAdminPassword = getEnvString("INITIAL_ADMIN_PASSWORD", "")

	// 本番では厳しく、開発では緩いレート制限を既定値とする
	generalDefault, authDefault := 1000, 200
	if cfg.IsProduction() {
		generalDefault, authDefault = 100, 20
	}
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", generalDefault)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", authDefault)
	cfg.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute)

	cfg.LoginMaxAttempts = getEnvInt("LOGIN_MAX_ATTEMPTS", 5)
	cfg.LoginLockout = getEnvDuration("LOGIN_LOCKOUT", 15*time.Minute)

	cfg.KafkaBrokers = getEnvList("KAFKA_BROKERS")
	cfg.KafkaBookingTopic = getEnvString("KAFKA_BOOKING_TOPIC", "booking-events")

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
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

// getEnvList はカンマ区切りの環境変数を空要素を除いたスライスとして返す。
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
