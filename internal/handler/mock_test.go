package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/habitman/internal/analytics"
	"github.com/hitoshi/habitman/internal/calendar"
	"github.com/hitoshi/habitman/internal/ledger"
	"github.com/hitoshi/habitman/internal/middleware"
	"github.com/hitoshi/habitman/internal/model"
	"github.com/hitoshi/habitman/internal/predict"
)

// --- モック定義 ---

type mockSessionFinder struct{}

func (mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if id != "session-123" {
		return nil, nil
	}
	return &model.Session{ID: id, UserID: "user-123", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type mockHabitService struct {
	month    string
	addFn    func(ctx context.Context, userID, name, month string) (int64, error)
	renameFn func(ctx context.Context, userID string, habitID int64, name, month string) error
	removeFn func(ctx context.Context, userID string, habitID int64, month string) error
}

func (m *mockHabitService) CurrentMonth() string {
	if m.month == "" {
		return "2024-01"
	}
	return m.month
}

func (m *mockHabitService) AddHabit(ctx context.Context, userID, name, month string) (int64, error) {
	if m.addFn != nil {
		return m.addFn(ctx, userID, name, month)
	}
	return 1, nil
}

func (m *mockHabitService) RenameHabit(ctx context.Context, userID string, habitID int64, name, month string) error {
	if m.renameFn != nil {
		return m.renameFn(ctx, userID, habitID, name, month)
	}
	return nil
}

func (m *mockHabitService) RemoveHabit(ctx context.Context, userID string, habitID int64, month string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, userID, habitID, month)
	}
	return nil
}

type mockToggler struct {
	toggleFn func(ctx context.Context, userID string, habitID int64, date string) (ledger.ToggleResult, error)
}

func (m *mockToggler) Toggle(ctx context.Context, userID string, habitID int64, date string) (ledger.ToggleResult, error) {
	if m.toggleFn != nil {
		return m.toggleFn(ctx, userID, habitID, date)
	}
	return ledger.ToggleAdded, nil
}

type mockAnalyticsService struct {
	monthViewFn  func(ctx context.Context, userID string, year, month int) (*analytics.MonthView, error)
	monthStatsFn func(ctx context.Context, userID string, year, month int) (*analytics.MonthStats, error)
}

func (m *mockAnalyticsService) MonthView(ctx context.Context, userID string, year, month int) (*analytics.MonthView, error) {
	if m.monthViewFn != nil {
		return m.monthViewFn(ctx, userID, year, month)
	}
	return &analytics.MonthView{}, nil
}

func (m *mockAnalyticsService) MonthStats(ctx context.Context, userID string, year, month int) (*analytics.MonthStats, error) {
	if m.monthStatsFn != nil {
		return m.monthStatsFn(ctx, userID, year, month)
	}
	return &analytics.MonthStats{}, nil
}

type mockNotificationService struct {
	listFn     func(ctx context.Context, userID string) ([]model.Notification, error)
	markReadFn func(ctx context.Context, userID string, id int64) error
}

func (m *mockNotificationService) List(ctx context.Context, userID string) ([]model.Notification, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return []model.Notification{}, nil
}

func (m *mockNotificationService) MarkRead(ctx context.Context, userID string, id int64) error {
	if m.markReadFn != nil {
		return m.markReadFn(ctx, userID, id)
	}
	return nil
}

type mockPredictor struct {
	predictFn func(ctx context.Context, userID string, today time.Time) ([]predict.Prediction, error)
}

func (m *mockPredictor) PredictNextDay(ctx context.Context, userID string, today time.Time) ([]predict.Prediction, error) {
	if m.predictFn != nil {
		return m.predictFn(ctx, userID, today)
	}
	return []predict.Prediction{}, nil
}

type mockHealthChecker struct {
	err error
}

func (m mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- ヘルパー ---

var testToday = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

// newTestDeps は全依存をモックで埋めたRouterDepsを返す。
func newTestDeps(t *testing.T) *RouterDeps {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(1000, 1000))
	t.Cleanup(rl.Stop)
	return &RouterDeps{
		SessionFinder:       mockSessionFinder{},
		CORSAllowedOrigin:   "http://localhost:3000",
		RateLimiter:         rl,
		HabitService:        &mockHabitService{},
		Ledger:              &mockToggler{},
		AnalyticsService:    &mockAnalyticsService{},
		NotificationService: &mockNotificationService{},
		Predictor:           &mockPredictor{},
		Clock:               calendar.FixedClock(testToday),
	}
}

// doRequest はセッションCookie付きのリクエストをルーターに送る。
func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-123"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
