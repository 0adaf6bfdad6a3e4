// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/hitoshi/thriftswipe/internal/cache"
	"github.com/hitoshi/thriftswipe/internal/config"
	"github.com/hitoshi/thriftswipe/internal/database"
	"github.com/hitoshi/thriftswipe/internal/handler"
	"github.com/hitoshi/thriftswipe/internal/listing"
	"github.com/hitoshi/thriftswipe/internal/logger"
	"github.com/hitoshi/thriftswipe/internal/mail"
	"github.com/hitoshi/thriftswipe/internal/metrics"
	"github.com/hitoshi/thriftswipe/internal/middleware"
	"github.com/hitoshi/thriftswipe/internal/order"
	"github.com/hitoshi/thriftswipe/internal/payment"
	"github.com/hitoshi/thriftswipe/internal/repository"
	"github.com/hitoshi/thriftswipe/internal/security"
	"github.com/hitoshi/thriftswipe/internal/storage"
	"github.com/hitoshi/thriftswipe/internal/user"
	"github.com/hitoshi/thriftswipe/internal/worker/cleanup"
	"github.com/hitoshi/thriftswipe/internal/worker/recovery"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// newMailer はAPIキーの有無に応じてメール送信実装を選択する。
func newMailer(cfg *config.Config) mail.Sender {
	if cfg.ResendAPIKey == "" {
		slog.Warn("RESEND_API_KEY not set, mail sending disabled")
		return mail.NoopMailer{}
	}
	return mail.NewResendMailer(cfg.ResendAPIKey, cfg.MailFromAddress)
}

// runServe はAPIサーバーモードで起動する。
// DB・Redis・外部サービスの接続を開き、全依存関係をワイヤリングし、
// HTTPサーバーを起動する。SIGINTまたはSIGTERMシグナルを受信すると
// グレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. Redis接続（プロフィールキャッシュ）
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	listingRepo := repository.NewPostgresListingRepo(db)
	engagementRepo := repository.NewPostgresEngagementRepo(db)
	followRepo := repository.NewPostgresFollowRepo(db)
	orderRepo := repository.NewPostgresOrderRepo(db)
	eventRepo := repository.NewPostgresStripeEventRepo(db)

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. 横断サービスの初期化
	sanitizer := security.NewContentSanitizer()
	profileCache := cache.NewRedisProfileCache(redisClient, cfg.ProfileTTL)
	mailer := newMailer(cfg)

	// 6. ドメインサービスの初期化
	userService := user.NewService(userRepo, followRepo, profileCache, sanitizer, mailer, collector)
	listingService := listing.NewService(listingRepo, sanitizer)
	engagementService := listing.NewEngagementService(engagementRepo, listingRepo)
	orderService := order.NewService(orderRepo, listingRepo)

	// 7. 決済まわりの初期化
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeAPIVersion)
	orchestrator := payment.NewOrchestrator(
		userRepo, listingRepo, engagementRepo, orderRepo,
		orderService, gateway, collector,
	)
	webhookConsumer := payment.NewWebhookConsumer(
		eventRepo, orderRepo, listingRepo, engagementRepo, userRepo,
		mailer, collector,
	)

	// 8. S3プリサイナーの初期化
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}
	presigner := storage.NewS3Presigner(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.UploadURLExpiry)

	// 9. 認証ミドルウェア用の公開鍵
	publicKey, err := middleware.ParseRSAPublicKey(cfg.ClerkPEMPublicKey)
	if err != nil {
		return fmt.Errorf("failed to parse auth public key: %w", err)
	}

	// 10. Webhookハンドラーの構築
	stripeWebhookHandler := handler.NewStripeWebhookHandler(webhookConsumer, cfg.StripeWebhookSecret)
	identityWebhookHandler, err := handler.NewIdentityWebhookHandler(userService, cfg.ClerkWebhookSecret)
	if err != nil {
		return fmt.Errorf("failed to build identity webhook handler: %w", err)
	}

	// 11. レート制限の構築（configはreq/min単位、rate.Limitはreq/sec単位）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.CheckoutRate = rate.Limit(float64(cfg.RateLimitCheckout) / 60.0)
	rateLimiterCfg.CheckoutBurst = cfg.RateLimitCheckout
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 12. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		AuthPublicKey:     publicKey,
		UserResolver:      userRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		UserService:       userService,
		ListingService:    listingService,
		EngagementService: engagementService,
		OrderService:      orderService,
		CheckoutService:   orchestrator,
		Presigner:         presigner,

		StripeWebhookHandler:   stripeWebhookHandler,
		IdentityWebhookHandler: identityWebhookHandler,
	}

	router := handler.NewRouter(deps)

	// 13. メトリクスサーバーをバックグラウンドで起動
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// 14. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		slog.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 滞留チェックアウトの回収ジョブとイベントログのクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	listingRepo := repository.NewPostgresListingRepo(db)
	eventRepo := repository.NewPostgresStripeEventRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ジョブの初期化
	recoveryJob := recovery.NewRecoveryJob(listingRepo, slog.Default(), collector)
	recoveryJob.Timeout = cfg.CheckoutTimeout

	cleanupJob := cleanup.NewCleanupJob(eventRepo, slog.Default())
	cleanupJob.RetentionDays = cfg.EventRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// 5. メトリクスサーバーをバックグラウンドで起動
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting",
		slog.Duration("recovery_interval", cfg.RecoveryInterval),
		slog.Duration("checkout_timeout", cfg.CheckoutTimeout),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}
		cleanupJob.Start(ctx, 24*time.Hour)
	}()

	// 回収ジョブをメインgoroutineで実行（ブロッキング）
	recoveryJob.Start(ctx, cfg.RecoveryInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
