package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/habitman/internal/model"
)

// SQLNotificationRepo は通知のリポジトリ。
type SQLNotificationRepo struct {
	db *sql.DB
}

// NewSQLNotificationRepo はSQLNotificationRepoを生成する。
func NewSQLNotificationRepo(db *sql.DB) *SQLNotificationRepo {
	return &SQLNotificationRepo{db: db}
}

// CreateIfAbsent は (user_id, message) の一意インデックスに衝突しない場合のみ通知を作成する。
func (r *SQLNotificationRepo) CreateIfAbsent(ctx context.Context, userID, message string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, message)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		userID, message,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert notification: %w", err)
	}
	return affected(result)
}

// ListByUserID はユーザーの通知を新しい順に返す。
func (r *SQLNotificationRepo) ListByUserID(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, message, created_at, is_read
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.CreatedAt, &n.IsRead); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return notifications, nil
}

// MarkRead は通知を既読にする。他ユーザーの通知は対象外。
func (r *SQLNotificationRepo) MarkRead(ctx context.Context, userID string, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return affected(result)
}

// compile-time interface check
var _ NotificationRepository = (*SQLNotificationRepo)(nil)
