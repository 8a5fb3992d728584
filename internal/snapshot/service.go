// Package snapshot は習慣の月次スナップショット管理を提供する。
//
// 習慣の名前変更と削除は指定された月の行だけに作用し、過去月の表示は変わらない。
// 行が1件もない月は「習慣なし」として扱い、前月からの補完は行わない。
package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/habitman/internal/calendar"
	"github.com/hitoshi/habitman/internal/model"
	"github.com/hitoshi/habitman/internal/repository"
	"github.com/hitoshi/habitman/internal/security"
)

// Service はスナップショットストアのサービス層。
type Service struct {
	habitRepo    repository.HabitRepository
	snapshotRepo repository.SnapshotRepository
	sanitizer    security.NameSanitizer
	clock        calendar.Clock
	logger       *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	habitRepo repository.HabitRepository,
	snapshotRepo repository.SnapshotRepository,
	sanitizer security.NameSanitizer,
	clock calendar.Clock,
	logger *slog.Logger,
) *Service {
	return &Service{
		habitRepo:    habitRepo,
		snapshotRepo: snapshotRepo,
		sanitizer:    sanitizer,
		clock:        clock,
		logger:       logger,
	}
}

// CurrentMonth は設定タイムゾーンにおける今月の月文字列を返す。
func (s *Service) CurrentMonth() string {
	return calendar.FormatMonth(s.clock())
}

// EnsureMonth は指定月にスナップショット行が存在するかを返す。
// 行がない場合も前月からのコピーは行わない。
func (s *Service) EnsureMonth(ctx context.Context, userID, month string) (bool, error) {
	if _, err := calendar.ParseMonth(month); err != nil {
		return false, err
	}

	count, err := s.snapshotRepo.CountByMonth(ctx, userID, month)
	if err != nil {
		return false, fmt.Errorf("スナップショットの確認に失敗しました: %w", err)
	}
	return count > 0, nil
}

// AddHabit は習慣を作成し、指定月のスナップショットを1行作成する。
// 名前はHTMLを除去して保存する。空になった場合は検証エラーを返す。
func (s *Service) AddHabit(ctx context.Context, userID, name, month string) (int64, error) {
	if _, err := calendar.ParseMonth(month); err != nil {
		return 0, err
	}

	cleaned := s.sanitizer.Sanitize(name)
	if cleaned == "" {
		return 0, model.NewHabitNameRequiredError()
	}

	id, err := s.habitRepo.CreateWithSnapshot(ctx, userID, cleaned, month, s.clock())
	if err != nil {
		return 0, fmt.Errorf("習慣の作成に失敗しました: %w", err)
	}

	s.logger.Info("習慣を作成しました",
		slog.String("user_id", userID),
		slog.Int64("habit_id", id),
		slog.String("month", month),
	)
	return id, nil
}

// RenameHabit は指定月の表示名のみを変更する。対象行がない場合は何もしない。
func (s *Service) RenameHabit(ctx context.Context, userID string, habitID int64, name, month string) error {
	if err := validateHabitID(habitID); err != nil {
		return err
	}
	if _, err := calendar.ParseMonth(month); err != nil {
		return err
	}

	cleaned := s.sanitizer.Sanitize(name)
	if cleaned == "" {
		return model.NewHabitNameRequiredError()
	}

	updated, err := s.snapshotRepo.UpdateDisplayName(ctx, userID, habitID, month, cleaned)
	if err != nil {
		return fmt.Errorf("習慣名の変更に失敗しました: %w", err)
	}
	if !updated {
		s.logger.Debug("rename skipped: snapshot not found",
			slog.String("user_id", userID),
			slog.Int64("habit_id", habitID),
			slog.String("month", month),
		)
	}
	return nil
}

// RemoveHabit は指定月のスナップショット行のみを削除する。
// 習慣本体と達成記録は残る。対象行がない場合は何もしない。
func (s *Service) RemoveHabit(ctx context.Context, userID string, habitID int64, month string) error {
	if err := validateHabitID(habitID); err != nil {
		return err
	}
	if _, err := calendar.ParseMonth(month); err != nil {
		return err
	}

	removed, err := s.snapshotRepo.Delete(ctx, userID, habitID, month)
	if err != nil {
		return fmt.Errorf("習慣の削除に失敗しました: %w", err)
	}
	if removed {
		s.logger.Info("習慣を月から削除しました",
			slog.String("user_id", userID),
			slog.Int64("habit_id", habitID),
			slog.String("month", month),
		)
	}
	return nil
}

// HabitsForMonth は指定月の習慣一覧を習慣ID昇順で返す。
func (s *Service) HabitsForMonth(ctx context.Context, userID, month string) ([]model.MonthHabit, error) {
	if _, err := calendar.ParseMonth(month); err != nil {
		return nil, err
	}

	snapshots, err := s.snapshotRepo.ListByMonth(ctx, userID, month)
	if err != nil {
		return nil, fmt.Errorf("習慣一覧の取得に失敗しました: %w", err)
	}

	habits := make([]model.MonthHabit, len(snapshots))
	for i, snap := range snapshots {
		habits[i] = model.MonthHabit{ID: snap.HabitID, Name: snap.DisplayName}
	}
	return habits, nil
}

func validateHabitID(id int64) error {
	if id <= 0 {
		return model.NewInvalidHabitIDError(fmt.Sprint(id))
	}
	return nil
}
