package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// requestAs はユーザーIDをコンテキストに持つリクエストを送る。
func requestAs(handler http.Handler, method, path, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if userID != "" {
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_AllowsBurstThenReturns429(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    3,
		ToggleRate:      1,
		ToggleBurst:     1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		if w := requestAs(handler, http.MethodGet, "/api/notifications", "user-1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := requestAs(handler, http.MethodGet, "/api/notifications", "user-1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if ra, err := strconv.Atoi(w.Header().Get("Retry-After")); err != nil || ra < 1 {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("429レスポンスがJSONではない: %v", err)
	}
	if body.Code != "RATE_LIMITED" || body.Category != "system" || body.Action == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestRateLimitMiddleware_IsolatesUsers(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 1, GeneralBurst: 1, ToggleRate: 1, ToggleBurst: 1})
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	requestAs(handler, http.MethodGet, "/", "user-1")
	if w := requestAs(handler, http.MethodGet, "/", "user-1"); w.Code != http.StatusTooManyRequests {
		t.Errorf("user-1 second request: status = %d, want 429", w.Code)
	}
	if w := requestAs(handler, http.MethodGet, "/", "user-2"); w.Code != http.StatusOK {
		t.Errorf("user-2 first request: status = %d, want 200", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

// 達成トグルの制限はAPI全般の制限と独立している
func TestToggleMiddleware_IndependentFromGeneral(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 1, GeneralBurst: 10, ToggleRate: 0.1, ToggleBurst: 2})
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(rl.ToggleMiddleware()(okHandler()))

	for i := 0; i < 2; i++ {
		if w := requestAs(handler, http.MethodPost, "/api/completions/toggle", "user-1"); w.Code != http.StatusOK {
			t.Fatalf("toggle %d: status = %d", i, w.Code)
		}
	}
	w := requestAs(handler, http.MethodPost, "/api/completions/toggle", "user-1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "10" {
		t.Errorf("Retry-After = %q, want 10", w.Header().Get("Retry-After"))
	}

	// API全般にはまだ余裕がある
	general := rl.GeneralMiddleware()(okHandler())
	if w := requestAs(general, http.MethodGet, "/api/notifications", "user-1"); w.Code != http.StatusOK {
		t.Errorf("general request: status = %d, want 200", w.Code)
	}
	if rl.ToggleLimiterCount() != 1 {
		t.Errorf("ToggleLimiterCount = %d, want 1", rl.ToggleLimiterCount())
	}
}

func TestRateLimitMiddleware_NoUserID_Returns401(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	for name, mw := range map[string]func(http.Handler) http.Handler{
		"general": rl.GeneralMiddleware(),
		"toggle":  rl.ToggleMiddleware(),
	} {
		t.Run(name, func(t *testing.T) {
			w := requestAs(mw(okHandler()), http.MethodGet, "/", "")
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate: 1, GeneralBurst: 1, ToggleRate: 1, ToggleBurst: 1,
		CleanupInterval: time.Hour,
	})
	defer rl.Stop()

	rl.general.get("stale", time.Now().Add(-3*time.Hour))
	rl.general.get("fresh", time.Now())
	rl.toggle.get("stale", time.Now().Add(-3*time.Hour))

	rl.cleanup()

	if rl.GeneralLimiterCount() != 1 {
		t.Errorf("GeneralLimiterCount = %d, want 1", rl.GeneralLimiterCount())
	}
	if rl.ToggleLimiterCount() != 0 {
		t.Errorf("ToggleLimiterCount = %d, want 0", rl.ToggleLimiterCount())
	}
}

func TestRateLimiterConfigPerMinute(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(120, 30)
	if cfg.GeneralRate != 2 || cfg.GeneralBurst != 120 {
		t.Errorf("general = %v/%d, want 2/120", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.ToggleRate != 0.5 || cfg.ToggleBurst != 30 {
		t.Errorf("toggle = %v/%d, want 0.5/30", cfg.ToggleRate, cfg.ToggleBurst)
	}

	def := DefaultRateLimiterConfig()
	if def.GeneralBurst != 120 || def.ToggleBurst != 60 || def.CleanupInterval != 5*time.Minute {
		t.Errorf("DefaultRateLimiterConfig = %+v", def)
	}
}
