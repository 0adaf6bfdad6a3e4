// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Redis（プロフィールキャッシュ）
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ProfileTTL    time.Duration

	// 認証（Clerk）
	ClerkPEMPublicKey  string // セッションJWT検証用のRSA公開鍵（PEM）
	ClerkWebhookSecret string // IdentityWebhookのsvix署名シークレット

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeAPIVersion    string

	// S3（出品画像アップロード）
	S3Bucket        string
	UploadURLExpiry time.Duration

	// Email（Resend）
	ResendAPIKey    string
	MailFromAddress string

	// Rate Limit
	RateLimitGeneral  int // req/min/user
	RateLimitCheckout int // req/min/user

	// Worker
	CheckoutTimeout    time.Duration // CHECKOUT滞留の自動解放までの時間
	RecoveryInterval   time.Duration // 解放ジョブの実行間隔
	EventRetentionDays int           // stripe_eventsの保持日数

	// Server
	ServerPort  string
	MetricsPort string
	BaseURL     string

	// CORS
	CORSAllowedOrigin string
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

	cfg.ClerkPEMPublicKey = os.Getenv("CLERK_PEM_PUBLIC_KEY")
	if cfg.ClerkPEMPublicKey == "" {
		missing = append(missing, "CLERK_PEM_PUBLIC_KEY")
	}

	cfg.ClerkWebhookSecret = os.Getenv("CLERK_WEBHOOK_SECRET")
	if cfg.ClerkWebhookSecret == "" {
		missing = append(missing, "CLERK_WEBHOOK_SECRET")
	}

	cfg.StripeSecretKey = os.Getenv("STRIPE_SECRET_KEY")
	if cfg.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}

	cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	if cfg.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.ProfileTTL = getEnvDuration("PROFILE_CACHE_TTL", 10*time.Minute)
	cfg.StripeAPIVersion = getEnvString("STRIPE_API_VERSION", "2024-06-20")
	cfg.S3Bucket = getEnvString("S3_BUCKET", "thriftswipe-listing-images")
	cfg.UploadURLExpiry = getEnvDuration("UPLOAD_URL_EXPIRY", 15*time.Minute)
	cfg.ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	cfg.MailFromAddress = getEnvString("MAIL_FROM_ADDRESS", "ThriftSwipe <no-reply@thriftswipe.app>")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCheckout = getEnvInt("RATE_LIMIT_CHECKOUT", 10)
	cfg.CheckoutTimeout = getEnvDuration("CHECKOUT_TIMEOUT", 30*time.Minute)
	cfg.RecoveryInterval = getEnvDuration("RECOVERY_INTERVAL", 5*time.Minute)
	cfg.EventRetentionDays = getEnvInt("EVENT_RETENTION_DAYS", 90)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
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
