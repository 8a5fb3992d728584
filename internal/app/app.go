package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/habitman/internal/analytics"
	"github.com/hitoshi/habitman/internal/calendar"
	"github.com/hitoshi/habitman/internal/config"
	"github.com/hitoshi/habitman/internal/database"
	"github.com/hitoshi/habitman/internal/handler"
	"github.com/hitoshi/habitman/internal/ledger"
	"github.com/hitoshi/habitman/internal/logger"
	"github.com/hitoshi/habitman/internal/metrics"
	"github.com/hitoshi/habitman/internal/middleware"
	"github.com/hitoshi/habitman/internal/notification"
	"github.com/hitoshi/habitman/internal/predict"
	"github.com/hitoshi/habitman/internal/repository"
	"github.com/hitoshi/habitman/internal/security"
	"github.com/hitoshi/habitman/internal/snapshot"
	"github.com/hitoshi/habitman/internal/worker/cleanup"
	"github.com/hitoshi/habitman/internal/worker/retrain"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、設定に従って構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定に従ってロガーを再構成する
	logger.Configure(w, logger.Options{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
	})

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	if w == nil {
		w = os.Stdout
	}

	var cli CLI
	parser, err := newParser(&cli, w)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return kctx.Run(&runContext{out: w})
}

// env はDB接続とドメインサービス一式を保持する。
type env struct {
	db            *sql.DB
	clock         calendar.Clock
	sessions      *repository.SQLSessionRepo
	snapshot      *snapshot.Service
	ledger        *ledger.Service
	notifications *notification.Service
	analytics     *analytics.Service
	trainer       *predict.Trainer
	predictor     *predict.Predictor
	dispatcher    *retrain.Dispatcher
}

// openEnv はDB接続を開き、全ドメインサービスをワイヤリングする。
// mcがnilの場合はメトリクスを記録しない。
func openEnv(cfg *config.Config, mc metrics.MetricsCollector) (*env, error) {
	// 1. DB接続
	db, _, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	if mc == nil {
		mc = metrics.Noop{}
	}
	log := slog.Default()
	clock := calendar.NewClock(cfg.Location)

	// 2. リポジトリの初期化
	habitRepo := repository.NewSQLHabitRepo(db)
	snapshotRepo := repository.NewSQLSnapshotRepo(db)
	completionRepo := repository.NewSQLCompletionRepo(db)
	notificationRepo := repository.NewSQLNotificationRepo(db)
	sessionRepo := repository.NewSQLSessionRepo(db)

	// 3. 予測と再学習
	fitOpts := predict.DefaultFitOptions()
	fitOpts.Iterations = cfg.TrainIterations
	store := predict.NewFileModelStore(cfg.ModelDir)
	trainer := predict.NewTrainer(habitRepo, completionRepo, store, fitOpts, clock, log)
	dispatcher := retrain.NewDispatcher(completionRepo, trainer, mc, log, retrain.Options{
		Every:     cfg.RetrainEvery,
		Workers:   cfg.RetrainWorkers,
		QueueSize: cfg.RetrainQueueSize,
	})

	// 4. ドメインサービスの初期化
	snapshotSvc := snapshot.NewService(habitRepo, snapshotRepo, security.NewNameSanitizer(), clock, log)
	ledgerSvc := ledger.NewService(completionRepo, dispatcher, mc, log)
	notificationSvc := notification.NewService(notificationRepo, mc, log)
	analyticsSvc := analytics.NewService(snapshotSvc, ledgerSvc, notificationSvc, clock, log)
	predictor := predict.NewPredictor(snapshotSvc, completionRepo, store, mc, log)

	return &env{
		db:            db,
		clock:         clock,
		sessions:      sessionRepo,
		snapshot:      snapshotSvc,
		ledger:        ledgerSvc,
		notifications: notificationSvc,
		analytics:     analyticsSvc,
		trainer:       trainer,
		predictor:     predictor,
		dispatcher:    dispatcher,
	}, nil
}

func (e *env) close() {
	if err := e.db.Close(); err != nil {
		slog.Warn("failed to close database", slog.String("error", err.Error()))
	}
}

// runServe はAPIサーバーモードで起動する。
// 再学習ワーカーを開始し、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mc := metrics.NewCollector(reg)

	// 2. DBとサービス
	e, err := openEnv(cfg, mc)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 再学習ワーカーの起動
	e.dispatcher.Start(ctx)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitToggle),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           mc,
		MetricsHandler:    metrics.SetupMetricsRoute(reg),
		HealthChecker:     e.db,
		SessionFinder:     e.sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		HabitService:        e.snapshot,
		Ledger:              e.ledger,
		AnalyticsService:    e.analytics,
		NotificationService: e.notifications,
		Predictor:           e.predictor,
		Clock:               e.clock,
	})

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		e.dispatcher.Stop()
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := shutdownServer(shutdownCtx, server, e.dispatcher); err != nil {
		return err
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// stopper は停止時にキューを処理し切るワーカー。
type stopper interface {
	Stop()
}

// shutdownServer はHTTPサーバーを停止する。
// サーバーの停止に失敗しても、受け付け済みの再学習ジョブは最後まで実行する。
func shutdownServer(ctx context.Context, server *http.Server, workers stopper) error {
	defer workers.Stop()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除を定期実行し、シグナル受信で停止する。
func runWorker(cfg *config.Config) error {
	db, _, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established (worker)")

	cleanupJob := cleanup.NewCleanupJob(repository.NewSQLSessionRepo(db), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)

	// メインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

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
// SQLiteのファイルパスは認証情報を含まないためそのまま返す。
func maskDatabaseURL(url string) string {
	if strings.HasPrefix(url, "sqlite://") {
		return url
	}
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
