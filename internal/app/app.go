package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hitoshi/travelbook/internal/auth"
	"github.com/hitoshi/travelbook/internal/booking"
	"github.com/hitoshi/travelbook/internal/config"
	"github.com/hitoshi/travelbook/internal/credential"
	"github.com/hitoshi/travelbook/internal/database"
	"github.com/hitoshi/travelbook/internal/events"
	"github.com/hitoshi/travelbook/internal/handler"
	"github.com/hitoshi/travelbook/internal/logger"
	"github.com/hitoshi/travelbook/internal/metrics"
	"github.com/hitoshi/travelbook/internal/middleware"
	"github.com/hitoshi/travelbook/internal/model"
	"github.com/hitoshi/travelbook/internal/repository"
	"github.com/hitoshi/travelbook/internal/security"
	"github.com/hitoshi/travelbook/internal/token"
	"github.com/hitoshi/travelbook/internal/user"
	"github.com/hitoshi/travelbook/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// shutdownTimeout はグレースフルシャットダウンの猶予。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

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
		slog.String("environment", cfg.AppEnv),
		slog.String("port", cfg.ServerPort),
		slog.String("credential_provider", cfg.CredentialProvider),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandBootstrapAdmin:
		return runBootstrapAdmin(cfg)
	default:
		return runServe(cfg)
	}
}

// application はワイヤリング済みのコンポーネント一式。
type application struct {
	router    http.Handler
	auth      *auth.Service
	cleanup   *cleanup.CleanupJob
	limiter   *middleware.RateLimiter
	publisher events.Publisher
}

// close はバックグラウンド処理と外部接続を解放する。
func (a *application) close() {
	a.limiter.Stop()
	if err := a.publisher.Close(); err != nil {
		slog.Warn("failed to close event publisher", slog.String("error", err.Error()))
	}
}

// newApplication は設定とDB接続から全依存関係をワイヤリングする。
// DBへの接続は行わないため、DBが停止していても構築できる。
func newApplication(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) *application {
	log := slog.Default()

	// 1. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	bookingRepo := repository.NewPostgresBookingRepo(db)
	credentialRepo := repository.NewPostgresCredentialRepo(db)

	// 2. メトリクス
	collector := metrics.NewCollector(reg)

	// 3. 資格情報プロバイダーとトークン
	provider, purger := newCredentialProvider(cfg, credentialRepo, log)
	codec := token.NewCodec(token.CodecConfig{
		Secret: []byte(cfg.JWTSecret),
		TTL:    cfg.TokenTTL,
	})
	guard := auth.NewLoginGuard(auth.LoginGuardConfig{
		MaxAttempts: cfg.LoginMaxAttempts,
		Lockout:     cfg.LoginLockout,
	})

	// 4. イベント配信
	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaBookingTopic, log)

	// 5. ドメインサービス
	authService := auth.NewService(provider, userRepo, codec, guard, collector, auth.ServiceConfig{
		ExposeResetLink: !cfg.IsProduction(),
	})
	userService := user.NewService(userRepo, bookingRepo, provider)
	bookingService := booking.NewService(bookingRepo, publisher, security.NewTextSanitizer(), collector, booking.Config{
		EventTopic: cfg.KafkaBookingTopic,
	})

	// 6. ルーター
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfigFor(
		cfg.RateLimitGeneral, cfg.RateLimitAuth, cfg.RateLimitWindow,
	))
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		Production:        cfg.IsProduction(),
		Environment:       cfg.AppEnv,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		Gateway:           middleware.NewAuthGateway(codec, userRepo, collector, log),
		HTTPMetrics:       collector,
		MetricsHandler:    metrics.Handler(reg),
		DB:                db,

		AuthService:    authService,
		AdminService:   userService,
		BookingService: bookingService,
	})

	return &application{
		router:    router,
		auth:      authService,
		cleanup:   cleanup.NewCleanupJob(purger, guard, log),
		limiter:   limiter,
		publisher: publisher,
	}
}

// newCredentialProvider は設定に応じた資格情報プロバイダーを返す。
// ローカルプロバイダーの場合は期限切れリセットコードの破棄先も返す。
func newCredentialProvider(cfg *config.Config, store *repository.PostgresCredentialRepo, log *slog.Logger) (credential.Provider, cleanup.ResetCodePurger) {
	if cfg.CredentialProvider == config.ProviderIdentityToolkit {
		return credential.NewIdentityToolkitProvider(credential.IdentityToolkitConfig{
			APIKey:     cfg.FirebaseAPIKey,
			ProjectID:  cfg.FirebaseProjectID,
			AdminToken: cfg.FirebaseAdminToken,
			Timeout:    cfg.ProviderTimeout,
			BaseURL:    cfg.IdentityToolkitURL,
		}, nil, log), nil
	}
	return credential.NewLocalProvider(store, credential.LocalConfig{
		BcryptCost:   cfg.BcryptCost,
		ResetBaseURL: strings.TrimRight(cfg.BaseURL, "/") + "/reset-password",
	}), store
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("database connection established")
	return db, nil
}

// newRegistry はGo runtimeとプロセスのコレクタを登録したレジストリを返す。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	app := newApplication(cfg, db, newRegistry())
	defer app.close()

	// 初期管理者はINITIAL_ADMIN_EMAILが設定されている場合のみ作成する
	if cfg.InitialAdminEmail != "" {
		if err := ensureInitialAdmin(context.Background(), app.auth, cfg); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go app.cleanup.Start(ctx, cleanup.DefaultInterval)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      app.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// adminBootstrapper は初期管理者の作成に必要なインターフェース。
type adminBootstrapper interface {
	BootstrapAdmin(ctx context.Context, email, password string) (*model.User, bool, error)
}

// ensureInitialAdmin は設定された初期管理者が存在することを保証する。
// 既に存在する場合は何もしない。
func ensureInitialAdmin(ctx context.Context, svc adminBootstrapper, cfg *config.Config) error {
	if cfg.InitialAdminEmail == "" || cfg.InitialAdminPassword == "" {
		return errors.New("INITIAL_ADMIN_EMAIL and INITIAL_ADMIN_PASSWORD must both be set")
	}

	admin, created, err := svc.BootstrapAdmin(ctx, cfg.InitialAdminEmail, cfg.InitialAdminPassword)
	if err != nil {
		return fmt.Errorf("failed to bootstrap initial admin: %w", err)
	}
	if !created {
		slog.Info("initial admin already exists", slog.String("user_id", admin.ID))
		return nil
	}
	slog.Info("initial admin ready", slog.String("user_id", admin.ID))
	return nil
}

// runBootstrapAdmin は初期管理者アカウントを作成して終了する。
func runBootstrapAdmin(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	app := newApplication(cfg, db, prometheus.NewRegistry())
	defer app.close()

	return ensureInitialAdmin(context.Background(), app.auth, cfg)
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

	version, _, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
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
