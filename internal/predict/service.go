package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/habitman/internal/calendar"
	"github.com/hitoshi/habitman/internal/metrics"
	"github.com/hitoshi/habitman/internal/model"
	"github.com/hitoshi/habitman/internal/repository"
)

// ErrNotEnoughData は学習データが空のときに返される。
var ErrNotEnoughData = errors.New("not enough data to train")

// TrainResult は学習結果の概要。
type TrainResult struct {
	UserID    string
	Samples   int
	Accuracy  float64 // 学習に使ったサンプル上の正解率
	Path      string
	TrainedAt time.Time
}

// Trainer はユーザーの全履歴からモデルを学習して保存する。
type Trainer struct {
	habitRepo      repository.HabitRepository
	completionRepo repository.CompletionRepository
	store          ModelStore
	opts           FitOptions
	clock          calendar.Clock
	logger         *slog.Logger
}

// NewTrainer はTrainerを生成する。
func NewTrainer(
	habitRepo repository.HabitRepository,
	completionRepo repository.CompletionRepository,
	store ModelStore,
	opts FitOptions,
	clock calendar.Clock,
	logger *slog.Logger,
) *Trainer {
	return &Trainer{
		habitRepo:      habitRepo,
		completionRepo: completionRepo,
		store:          store,
		opts:           opts,
		clock:          clock,
		logger:         logger,
	}
}

// TrainForUser はユーザーのモデルを学習し直して保存する。
// 学習データが空の場合は ErrNotEnoughData を返し、既存のモデルはそのまま残す。
func (t *Trainer) TrainForUser(ctx context.Context, userID string) (*TrainResult, error) {
	habitIDs, err := t.habitRepo.ListIDsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("習慣IDの取得に失敗しました: %w", err)
	}
	history, err := t.completionRepo.ListAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("達成履歴の取得に失敗しました: %w", err)
	}

	samples := BuildDataset(habitIDs, history)
	if len(samples) == 0 {
		return nil, ErrNotEnoughData
	}

	start := time.Now()
	m := Fit(samples, t.opts)
	m.TrainedAt = t.clock().UTC()

	if err := t.store.Save(ctx, userID, m); err != nil {
		return nil, fmt.Errorf("モデルの保存に失敗しました: %w", err)
	}

	res := &TrainResult{
		UserID:    userID,
		Samples:   len(samples),
		Accuracy:  m.Accuracy(samples),
		TrainedAt: m.TrainedAt,
	}
	if fileStore, ok := t.store.(*FileModelStore); ok {
		res.Path = fileStore.Path(userID)
	}

	t.logger.Info("model trained",
		slog.String("user_id", userID),
		slog.Int("samples", len(samples)),
		slog.Float64("train_accuracy", res.Accuracy),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// HabitLister は月の習慣一覧を返すインターフェース。
type HabitLister interface {
	HabitsForMonth(ctx context.Context, userID, month string) ([]model.MonthHabit, error)
}

// Prediction は習慣ごとの翌日達成確率。モデルがない場合 Probability は nil。
type Prediction struct {
	HabitID     int64
	Name        string
	Probability *float64
}

// Predictor は今月の習慣について翌日の達成確率を返す。
type Predictor struct {
	habits         HabitLister
	completionRepo repository.CompletionRepository
	store          ModelStore
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
}

// NewPredictor はPredictorを生成する。
func NewPredictor(
	habits HabitLister,
	completionRepo repository.CompletionRepository,
	store ModelStore,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
) *Predictor {
	if mc == nil {
		mc = metrics.Noop{}
	}
	return &Predictor{
		habits:         habits,
		completionRepo: completionRepo,
		store:          store,
		metrics:        mc,
		logger:         logger,
	}
}

// PredictNextDay は today が属する月の習慣ごとに翌日の達成確率を返す。
// 習慣が0件の場合はモデルを読み込まずに空の結果を返す。
func (p *Predictor) PredictNextDay(ctx context.Context, userID string, today time.Time) ([]Prediction, error) {
	habits, err := p.habits.HabitsForMonth(ctx, userID, calendar.FormatMonth(today))
	if err != nil {
		return nil, err
	}
	if len(habits) == 0 {
		p.metrics.RecordPrediction(metrics.PredictionOutcomeEmpty)
		return []Prediction{}, nil
	}

	end := calendar.FormatDate(today)
	start := calendar.AddDays(end, -predictionWindowDays)
	days, err := p.completionRepo.ListInRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("達成記録の取得に失敗しました: %w", err)
	}
	ix := model.NewCompletionIndex(days)

	m, err := p.store.Load(ctx, userID)
	if err != nil {
		// 壊れたモデルは「予測なし」として扱う
		p.logger.Warn("failed to load model",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		m = nil
	}

	out := make([]Prediction, len(habits))
	for i, h := range habits {
		out[i] = Prediction{HabitID: h.ID, Name: h.Name}
		if m == nil {
			continue
		}
		prob := m.Probability(NextDayFeatures(h.ID, ix, today))
		out[i].Probability = &prob
	}

	if m == nil {
		p.metrics.RecordPrediction(metrics.PredictionOutcomeNoModel)
	} else {
		p.metrics.RecordPrediction(metrics.PredictionOutcomeScored)
	}
	return out, nil
}
