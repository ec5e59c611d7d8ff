// Package app はサブコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/chatgate/internal/account"
	"github.com/hitoshi/chatgate/internal/config"
	"github.com/hitoshi/chatgate/internal/database"
	"github.com/hitoshi/chatgate/internal/handler"
	"github.com/hitoshi/chatgate/internal/intent"
	"github.com/hitoshi/chatgate/internal/llm"
	"github.com/hitoshi/chatgate/internal/logger"
	"github.com/hitoshi/chatgate/internal/mail"
	"github.com/hitoshi/chatgate/internal/metrics"
	"github.com/hitoshi/chatgate/internal/pipeline"
	"github.com/hitoshi/chatgate/internal/prompt"
	"github.com/hitoshi/chatgate/internal/repository"
	"github.com/hitoshi/chatgate/internal/security"
)

// 管理者作成に使う環境変数
const (
	envSuperuserEmail    = "SUPERUSER_EMAIL"
	envSuperuserPhone    = "SUPERUSER_PHONE"
	envSuperuserPassword = "SUPERUSER_PASSWORD"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
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
		slog.String("model", cfg.GroqModel),
		slog.Bool("accounts_enabled", cfg.AccountsEnabled()),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCreateSuperuser:
		return runCreateSuperuser(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	router, cleanup, err := buildRouter(ctx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(cfg.LLMTimeout),
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildRouter は全依存関係をワイヤリングしたHTTPハンドラーを構築する。
// DATABASE_URLが設定されている場合のみDB接続とアカウント機能を有効化する。
// 戻り値のcleanupは保持しているDB接続を閉じる。
func buildRouter(ctx context.Context, cfg *config.Config) (http.Handler, func(), error) {
	cleanup := func() {}

	// 1. LLMクライアントとパイプライン
	completer := llm.NewGroqClient(llm.GroqConfig{
		APIKey:  cfg.GroqAPIKey,
		Model:   cfg.GroqModel,
		BaseURL: cfg.GroqBaseURL,
		Timeout: cfg.LLMTimeout,
	})
	pipelines, err := pipeline.NewRegistry(completer, prompt.Personas()...)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to build pipelines: %w", err)
	}

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Pipelines:         pipelines,
		Gate:              intent.NewDefaultGate(),
		Metrics:           collector,
		MetricsGatherer:   registry,
	}

	// 3. アカウント機能（DB・メール送信）
	if cfg.AccountsEnabled() {
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to connect to database: %w", err)
		}
		cleanup = func() {
			if err := db.Close(); err != nil {
				slog.Warn("failed to close database", slog.String("error", err.Error()))
			}
		}
		slog.Info("database connection established")

		sender, err := newMailSender(ctx, cfg)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}

		accountService := account.NewService(
			repository.NewPostgresUserRepo(db),
			sender,
			security.NewTextSanitizer(),
			collector,
			account.Options{
				CodeTTL:  cfg.VerificationCodeTTL,
				HashCost: cfg.PasswordHashCost,
			},
		)

		deps.HealthChecker = db
		deps.AccountService = accountService
	}

	router, err := handler.NewRouter(deps)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("failed to build router: %w", err)
	}

	return router, cleanup, nil
}

// newMailSender は設定されたプロバイダーのメール送信クライアントを生成する。
func newMailSender(ctx context.Context, cfg *config.Config) (mail.Sender, error) {
	switch cfg.MailProvider {
	case config.MailProviderMailgun:
		return mail.NewMailgunSender(
			&http.Client{Timeout: 10 * time.Second},
			slog.Default(),
			cfg.MailgunAPIKey, cfg.MailgunDomain, cfg.MailFromName,
		), nil
	case config.MailProviderSES:
		sender, err := mail.NewSESSenderFromRegion(ctx, slog.Default(), cfg.AWSRegion, cfg.SESFromAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to create SES sender: %w", err)
		}
		return sender, nil
	default:
		return nil, fmt.Errorf("unsupported mail provider: %q", cfg.MailProvider)
	}
}

// writeTimeout はLLM呼び出しの待ち時間を含めたレスポンス書き込みのタイムアウトを返す。
func writeTimeout(llmTimeout time.Duration) time.Duration {
	const minTimeout = 60 * time.Second
	if llmTimeout+15*time.Second > minTimeout {
		return llmTimeout + 15*time.Second
	}
	return minTimeout
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if !cfg.AccountsEnabled() {
		return errors.New("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runCreateSuperuser は環境変数の資格情報から管理者ユーザーを作成する。
func runCreateSuperuser(cfg *config.Config) error {
	if !cfg.AccountsEnabled() {
		return errors.New("DATABASE_URL is required for createsuperuser")
	}

	in := superuserInputFromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// 管理者作成ではメールを送信しない
	service := account.NewService(
		repository.NewPostgresUserRepo(db),
		nil,
		security.NewTextSanitizer(),
		metrics.Nop{},
		account.Options{HashCost: cfg.PasswordHashCost},
	)

	user, err := service.CreateSuperuser(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to create superuser: %w", err)
	}

	slog.Info("superuser created",
		slog.String("user_id", user.ID),
	)
	return nil
}

func superuserInputFromEnv() account.SuperuserInput {
	return account.SuperuserInput{
		Email:       os.Getenv(envSuperuserEmail),
		PhoneNumber: os.Getenv(envSuperuserPhone),
		Password:    os.Getenv(envSuperuserPassword),
	}
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
