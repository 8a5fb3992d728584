package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/habitman/internal/ledger"
	"github.com/hitoshi/habitman/internal/middleware"
	"github.com/hitoshi/habitman/internal/model"
)

// CompletionToggler は達成トグルに必要なサービスインターフェース。
type CompletionToggler interface {
	Toggle(ctx context.Context, userID string, habitID int64, date string) (ledger.ToggleResult, error)
}

// CompletionHandler は達成記録のHTTPハンドラー。
type CompletionHandler struct {
	ledger CompletionToggler
}

// NewCompletionHandler はCompletionHandlerを生成する。
func NewCompletionHandler(ledger CompletionToggler) *CompletionHandler {
	return &CompletionHandler{ledger: ledger}
}

type toggleRequest struct {
	HabitID int64  `json:"habit_id"`
	Date    string `json:"date"`
}

type toggleResponse struct {
	Status string `json:"status"`
}

// Toggle は (習慣, 日付) の達成状態を反転する。
// POST /api/completions/toggle
func (h *CompletionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req toggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Date == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(req.Date))
		return
	}

	result, err := h.ledger.Toggle(r.Context(), userID, req.HabitID, req.Date)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toggleResponse{Status: string(result)})
}
