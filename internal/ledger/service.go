// Package ledger は習慣の達成記録（台帳）を管理する。
//
// トグルは「あれば削除、なければ挿入」で、同じ組への並行トグルは一意制約で直列化される。
// 挿入に成功したときだけ再学習トリガーへユーザーIDを渡す。
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/habitman/internal/calendar"
	"github.com/hitoshi/habitman/internal/metrics"
	"github.com/hitoshi/habitman/internal/model"
	"github.com/hitoshi/habitman/internal/repository"
)

// ToggleResult はトグル操作の結果を表す。
type ToggleResult string

const (
	// ToggleAdded は達成記録が追加されたことを示す。
	ToggleAdded ToggleResult = "added"
	// ToggleRemoved は達成記録が削除されたことを示す。
	ToggleRemoved ToggleResult = "removed"
)

// RetrainNotifier は達成記録の追加を再学習トリガーに伝えるインターフェース。
// 実装は呼び出し元をブロックしてはならない。
type RetrainNotifier interface {
	Notify(userID string)
}

// Service は達成記録台帳のサービス層。
type Service struct {
	completionRepo repository.CompletionRepository
	notifier       RetrainNotifier
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// notifierがnilの場合は再学習トリガーを送らない。
func NewService(
	completionRepo repository.CompletionRepository,
	notifier RetrainNotifier,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if mc == nil {
		mc = metrics.Noop{}
	}
	return &Service{
		completionRepo: completionRepo,
		notifier:       notifier,
		metrics:        mc,
		logger:         logger,
	}
}

// Toggle は (ユーザー, 習慣, 日付) の達成状態を反転する。
// 習慣IDや日付が不正な場合は状態を変えずに検証エラーを返す。
func (s *Service) Toggle(ctx context.Context, userID string, habitID int64, date string) (ToggleResult, error) {
	if habitID <= 0 {
		return "", model.NewInvalidHabitIDError(fmt.Sprint(habitID))
	}
	if _, err := calendar.ParseDate(date); err != nil {
		return "", err
	}

	removed, err := s.completionRepo.Delete(ctx, userID, habitID, date)
	if err != nil {
		return "", fmt.Errorf("達成記録の削除に失敗しました: %w", err)
	}
	if removed {
		s.metrics.RecordToggle(string(ToggleRemoved))
		return ToggleRemoved, nil
	}

	inserted, err := s.completionRepo.Insert(ctx, userID, habitID, date)
	if err != nil {
		return "", fmt.Errorf("達成記録の追加に失敗しました: %w", err)
	}
	s.metrics.RecordToggle(string(ToggleAdded))

	// 並行トグルに負けた場合は既に記録済みのため、再学習は勝った側に任せる
	if inserted && s.notifier != nil {
		s.notifier.Notify(userID)
	} else if !inserted {
		s.logger.Debug("completion insert lost race",
			slog.String("user_id", userID),
			slog.Int64("habit_id", habitID),
			slog.String("date", date),
		)
	}

	return ToggleAdded, nil
}

// CompletionsInRange は [start, end] の達成記録を日付昇順で返す。
func (s *Service) CompletionsInRange(ctx context.Context, userID, start, end string) ([]model.DayCompletions, error) {
	if _, err := calendar.ParseDate(start); err != nil {
		return nil, err
	}
	if _, err := calendar.ParseDate(end); err != nil {
		return nil, err
	}
	if start > end {
		return nil, model.NewInvalidRangeError(start, end)
	}

	days, err := s.completionRepo.ListInRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("達成記録の取得に失敗しました: %w", err)
	}
	return days, nil
}
