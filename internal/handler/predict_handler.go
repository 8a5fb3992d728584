package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/habitman/internal/calendar"
	"github.com/hitoshi/habitman/internal/predict"
)

// NextDayPredictor は翌日予測に必要なサービスインターフェース。
type NextDayPredictor interface {
	PredictNextDay(ctx context.Context, userID string, today time.Time) ([]predict.Prediction, error)
}

// PredictHandler は翌日予測のHTTPハンドラー。
type PredictHandler struct {
	predictor NextDayPredictor
	clock     calendar.Clock
}

// NewPredictHandler はPredictHandlerを生成する。
func NewPredictHandler(predictor NextDayPredictor, clock calendar.Clock) *PredictHandler {
	return &PredictHandler{predictor: predictor, clock: clock}
}

// predictionResponse は習慣ごとの翌日達成確率。モデル未学習の場合はnull。
type predictionResponse struct {
	HabitID            int64    `json:"habit_id"`
	Name               string   `json:"name"`
	ProbabilityNextDay *float64 `json:"probability_next_day"`
}

// NextDay は今月の習慣ごとに翌日の達成確率を返す。
// GET /api/predict/nextday
func (h *PredictHandler) NextDay(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	preds, err := h.predictor.PredictNextDay(r.Context(), userID, h.clock())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	out := make([]predictionResponse, len(preds))
	for i, p := range preds {
		out[i] = predictionResponse{HabitID: p.HabitID, Name: p.Name, ProbabilityNextDay: p.Probability}
	}
	writeJSON(w, http.StatusOK, out)
}
