// Package analytics は月表示と月次統計のユースケースを組み立てる。
// スナップショット・台帳・統計・通知の各コンポーネントをつなぐだけで、独自の状態を持たない。
package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/habitman/internal/calendar"
	"github.com/hitoshi/habitman/internal/model"
	"github.com/hitoshi/habitman/internal/notification"
	"github.com/hitoshi/habitman/internal/stats"
)

// HabitSource は月ごとの習慣一覧を提供するインターフェース。
type HabitSource interface {
	EnsureMonth(ctx context.Context, userID, month string) (bool, error)
	HabitsForMonth(ctx context.Context, userID, month string) ([]model.MonthHabit, error)
}

// CompletionSource は期間内の達成記録を提供するインターフェース。
type CompletionSource interface {
	CompletionsInRange(ctx context.Context, userID, start, end string) ([]model.DayCompletions, error)
}

// NotificationSink は生成した通知を保存するインターフェース。
type NotificationSink interface {
	Persist(ctx context.Context, userID string, generated []notification.Generated) (notification.PersistResult, error)
}

// MonthView は月表示のデータ。
type MonthView struct {
	Month       string
	Habits      []model.MonthHabit
	Completions map[string][]int64
}

// MonthStats は月次統計のデータ。
type MonthStats struct {
	stats.Result
	Month  string
	Habits []model.MonthHabit
}

// Service は月表示と月次統計を提供する。
type Service struct {
	habits        HabitSource
	completions   CompletionSource
	notifications NotificationSink
	clock         calendar.Clock
	logger        *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	habits HabitSource,
	completions CompletionSource,
	notifications NotificationSink,
	clock calendar.Clock,
	logger *slog.Logger,
) *Service {
	return &Service{
		habits:        habits,
		completions:   completions,
		notifications: notifications,
		clock:         clock,
		logger:        logger,
	}
}

// MonthView は指定月の習慣一覧と達成記録を返す。
func (s *Service) MonthView(ctx context.Context, userID string, year, month int) (*MonthView, error) {
	m, habits, days, err := s.loadMonth(ctx, userID, year, month)
	if err != nil {
		return nil, err
	}

	completions := make(map[string][]int64, len(days))
	for _, d := range days {
		completions[d.Date] = d.HabitIDs
	}

	return &MonthView{Month: m, Habits: habits, Completions: completions}, nil
}

// MonthStats は指定月の統計を計算し、その月の達成記録から生成した通知を重複なく保存する。
// 通知の基準日は月にかかわらず今日とする。
func (s *Service) MonthStats(ctx context.Context, userID string, year, month int) (*MonthStats, error) {
	m, habits, days, err := s.loadMonth(ctx, userID, year, month)
	if err != nil {
		return nil, err
	}

	dates, err := calendar.MonthDates(m)
	if err != nil {
		return nil, err
	}
	ix := model.NewCompletionIndex(days)
	result := stats.Compute(habits, ix, dates)

	today := calendar.FormatDate(s.clock())
	generated := notification.Generate(habits, ix, today)
	if len(generated) > 0 {
		res, err := s.notifications.Persist(ctx, userID, generated)
		if err != nil {
			return nil, fmt.Errorf("通知の保存に失敗しました: %w", err)
		}
		s.logger.Debug("notifications persisted",
			slog.String("user_id", userID),
			slog.String("month", m),
			slog.Int("created", res.Created),
			slog.Int("suppressed", res.Suppressed),
		)
	}

	return &MonthStats{Result: result, Month: m, Habits: habits}, nil
}

func (s *Service) loadMonth(ctx context.Context, userID string, year, month int) (string, []model.MonthHabit, []model.DayCompletions, error) {
	m, err := calendar.MonthOf(year, month)
	if err != nil {
		return "", nil, nil, err
	}

	if _, err := s.habits.EnsureMonth(ctx, userID, m); err != nil {
		return "", nil, nil, err
	}
	habits, err := s.habits.HabitsForMonth(ctx, userID, m)
	if err != nil {
		return "", nil, nil, err
	}

	start, end, err := calendar.MonthRange(m)
	if err != nil {
		return "", nil, nil, err
	}
	days, err := s.completions.CompletionsInRange(ctx, userID, start, end)
	if err != nil {
		return "", nil, nil, err
	}

	return m, habits, days, nil
}
