package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/habitman/internal/analytics"
	"github.com/hitoshi/habitman/internal/middleware"
	"github.com/hitoshi/habitman/internal/model"
)

// AnalyticsServiceInterface は月表示・月次統計ハンドラーが必要とするサービスインターフェース。
type AnalyticsServiceInterface interface {
	MonthView(ctx context.Context, userID string, year, month int) (*analytics.MonthView, error)
	MonthStats(ctx context.Context, userID string, year, month int) (*analytics.MonthStats, error)
}

// MonthHandler は月単位の参照APIのHTTPハンドラー。
type MonthHandler struct {
	service AnalyticsServiceInterface
}

// NewMonthHandler はMonthHandlerを生成する。
func NewMonthHandler(service AnalyticsServiceInterface) *MonthHandler {
	return &MonthHandler{service: service}
}

// habitResponse は月の習慣一覧の1要素。
type habitResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// monthResponse は月表示のAPIレスポンス。
// completionsは日付をキーに、その日に達成した習慣IDを並べる。
type monthResponse struct {
	Month       string             `json:"month"`
	Habits      []habitResponse    `json:"habits"`
	Completions map[string][]int64 `json:"completions"`
}

type habitCountResponse struct {
	HabitID int64  `json:"habit_id"`
	Name    string `json:"name"`
	Count   int    `json:"count"`
}

// statsResponse は月次統計のAPIレスポンス。
type statsResponse struct {
	Month          string               `json:"month"`
	OverallPercent int                  `json:"overall_percent"`
	HabitCounts    []habitCountResponse `json:"habit_counts"`
	DailyTotals    []int                `json:"daily_totals"`
	Weekly         []int                `json:"weekly"`
	Habits         []habitResponse      `json:"habits"`
}

// GetMonth は月の習慣一覧と達成記録を返す。
// GET /api/month/{year}/{month}
func (h *MonthHandler) GetMonth(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	year, month, ok := parseYearMonth(w, r)
	if !ok {
		return
	}

	view, err := h.service.MonthView(r.Context(), userID, year, month)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	completions := view.Completions
	if completions == nil {
		completions = map[string][]int64{}
	}
	writeJSON(w, http.StatusOK, monthResponse{
		Month:       view.Month,
		Habits:      toHabitResponses(view.Habits),
		Completions: completions,
	})
}

// GetStats は月次統計を返す。副作用としてコーチング通知が生成される。
// GET /api/stats/{year}/{month}
func (h *MonthHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	year, month, ok := parseYearMonth(w, r)
	if !ok {
		return
	}

	st, err := h.service.MonthStats(r.Context(), userID, year, month)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	counts := make([]habitCountResponse, len(st.HabitCounts))
	for i, c := range st.HabitCounts {
		counts[i] = habitCountResponse{HabitID: c.ID, Name: c.Name, Count: c.Count}
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Month:          st.Month,
		OverallPercent: st.OverallPercent,
		HabitCounts:    counts,
		DailyTotals:    nonNilInts(st.DailyTotals),
		Weekly:         nonNilInts(st.Weekly),
		Habits:         toHabitResponses(st.Habits),
	})
}

func parseYearMonth(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	rawYear, rawMonth := chi.URLParam(r, "year"), chi.URLParam(r, "month")
	year, errY := strconv.Atoi(rawYear)
	month, errM := strconv.Atoi(rawMonth)
	if errY != nil || errM != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidMonthError(fmt.Sprintf("%s-%s", rawYear, rawMonth)))
		return 0, 0, false
	}
	return year, month, true
}

func toHabitResponses(habits []model.MonthHabit) []habitResponse {
	out := make([]habitResponse, len(habits))
	for i, h := range habits {
		out[i] = habitResponse{ID: h.ID, Name: h.Name}
	}
	return out
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
