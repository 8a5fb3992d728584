package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/habitman/internal/calendar"
	"github.com/hitoshi/habitman/internal/metrics"
	"github.com/hitoshi/habitman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ドメインサービス
	HabitService        HabitServiceInterface
	Ledger              CompletionToggler
	AnalyticsService    AnalyticsServiceInterface
	NotificationService NotificationServiceInterface
	Predictor           NextDayPredictor
	Clock               calendar.Clock
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → CORS → SecurityHeaders
//	  → (/api) Session → RateLimit(General) [→ RateLimit(Toggle)]
//
// /health と /metrics は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	habitHandler := NewHabitHandler(deps.HabitService)
	completionHandler := NewCompletionHandler(deps.Ledger)
	monthHandler := NewMonthHandler(deps.AnalyticsService)
	notificationHandler := NewNotificationHandler(deps.NotificationService)
	predictHandler := NewPredictHandler(deps.Predictor, deps.Clock)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/habits", func(r chi.Router) {
			r.Post("/", habitHandler.CreateHabit)
			r.Put("/{id}", habitHandler.RenameHabit)
			r.Delete("/{id}", habitHandler.DeleteHabit)
		})

		// トグルは専用のレート制限を追加で適用する
		r.With(deps.RateLimiter.ToggleMiddleware()).Post("/completions/toggle", completionHandler.Toggle)

		r.Get("/month/{year}/{month}", monthHandler.GetMonth)
		r.Get("/stats/{year}/{month}", monthHandler.GetStats)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.ListNotifications)
			r.Post("/{id}/read", notificationHandler.MarkRead)
		})

		r.Get("/predict/nextday", predictHandler.NextDay)
	})

	return r
}
