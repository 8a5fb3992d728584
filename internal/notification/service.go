package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/habitman/internal/metrics"
	"github.com/hitoshi/habitman/internal/model"
	"github.com/hitoshi/habitman/internal/repository"
)

// PersistResult は保存結果の件数。
type PersistResult struct {
	Created    int
	Suppressed int
}

// Service は通知の保存と参照を担当する。
type Service struct {
	repo    repository.NotificationRepository
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.NotificationRepository, mc metrics.MetricsCollector, logger *slog.Logger) *Service {
	if mc == nil {
		mc = metrics.Noop{}
	}
	return &Service{repo: repo, metrics: mc, logger: logger}
}

// Persist は生成された通知を保存する。
// 同じユーザーに同一メッセージの通知が既にある場合は作成しない。
func (s *Service) Persist(ctx context.Context, userID string, generated []Generated) (PersistResult, error) {
	var res PersistResult
	for _, g := range generated {
		created, err := s.repo.CreateIfAbsent(ctx, userID, g.Message)
		if err != nil {
			s.metrics.RecordNotifications(res.Created, res.Suppressed)
			return res, fmt.Errorf("通知の保存に失敗しました: %w", err)
		}
		if created {
			res.Created++
			s.logger.Info("notification created",
				slog.String("user_id", userID),
				slog.String("type", g.Type),
			)
		} else {
			res.Suppressed++
		}
	}
	s.metrics.RecordNotifications(res.Created, res.Suppressed)
	return res, nil
}

// List はユーザーの通知を新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]model.Notification, error) {
	list, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗しました: %w", err)
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}

// MarkRead は通知を既読にする。存在しない通知や他ユーザーの通知は何もしない。
func (s *Service) MarkRead(ctx context.Context, userID string, id int64) error {
	if id <= 0 {
		return model.NewInvalidRequestError()
	}
	updated, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}
	if !updated {
		s.logger.Debug("notification not found for mark read",
			slog.String("user_id", userID),
			slog.Int64("notification_id", id),
		)
	}
	return nil
}
