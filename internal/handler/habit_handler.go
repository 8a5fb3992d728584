package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/habitman/internal/middleware"
	"github.com/hitoshi/habitman/internal/model"
)

// HabitServiceInterface は習慣ハンドラーが必要とするサービスインターフェース。
// 変更系の操作はすべて今月のスナップショットに対して行う。
type HabitServiceInterface interface {
	CurrentMonth() string
	AddHabit(ctx context.Context, userID, name, month string) (int64, error)
	RenameHabit(ctx context.Context, userID string, habitID int64, name, month string) error
	RemoveHabit(ctx context.Context, userID string, habitID int64, month string) error
}

// HabitHandler は習慣管理のHTTPハンドラー。
type HabitHandler struct {
	service HabitServiceInterface
}

// NewHabitHandler はHabitHandlerを生成する。
func NewHabitHandler(service HabitServiceInterface) *HabitHandler {
	return &HabitHandler{service: service}
}

// habitNameRequest は習慣の作成・名前変更リクエストのボディ。
type habitNameRequest struct {
	Name string `json:"name"`
}

// createHabitResponse は習慣作成のAPIレスポンス。
type createHabitResponse struct {
	Success bool  `json:"success"`
	HabitID int64 `json:"habit_id"`
}

// successResponse は結果を返さない変更系APIのレスポンス。
type successResponse struct {
	Success bool `json:"success"`
}

// CreateHabit は習慣を作成し、今月に追加する。
// POST /api/habits
func (h *HabitHandler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req habitNameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.service.AddHabit(r.Context(), userID, req.Name, h.service.CurrentMonth())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createHabitResponse{Success: true, HabitID: id})
}

// RenameHabit は今月の習慣の表示名を変更する。過去月の表示は変わらない。
// PUT /api/habits/{id}
func (h *HabitHandler) RenameHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	habitID, ok := parseHabitID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req habitNameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.RenameHabit(r.Context(), userID, habitID, req.Name, h.service.CurrentMonth()); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// DeleteHabit は今月から習慣を外す。
// DELETE /api/habits/{id}
func (h *HabitHandler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	habitID, ok := parseHabitID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.RemoveHabit(r.Context(), userID, habitID, h.service.CurrentMonth()); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func parseHabitID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidHabitIDError(raw))
		return 0, false
	}
	return id, true
}
