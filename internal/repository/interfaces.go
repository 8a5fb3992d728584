// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/habitman/internal/model"
)

// HabitRepository は習慣と月次スナップショットの永続化インターフェース。
type HabitRepository interface {
	// CreateWithSnapshot は習慣と作成月のスナップショットを同一トランザクションで作成し、習慣IDを返す。
	CreateWithSnapshot(ctx context.Context, userID, name, month string, createdAt time.Time) (int64, error)

	// ListIDsByUserID はユーザーが作成した全習慣のIDを昇順で返す。
	ListIDsByUserID(ctx context.Context, userID string) ([]int64, error)
}

// SnapshotRepository は月次スナップショットの永続化インターフェース。
type SnapshotRepository interface {
	// CountByMonth は指定月のスナップショット行数を返す。
	CountByMonth(ctx context.Context, userID, month string) (int, error)

	// ListByMonth は指定月のスナップショットをhabit_id昇順で返す。
	ListByMonth(ctx context.Context, userID, month string) ([]model.HabitSnapshot, error)

	// UpdateDisplayName は指定月の表示名を更新する。対象行があった場合はtrueを返す。
	UpdateDisplayName(ctx context.Context, userID string, habitID int64, month, name string) (bool, error)

	// Delete は指定月のスナップショット行を削除する。対象行があった場合はtrueを返す。
	Delete(ctx context.Context, userID string, habitID int64, month string) (bool, error)
}

// CompletionRepository は達成記録の永続化インターフェース。
type CompletionRepository interface {
	// Insert は達成記録を挿入する。一意制約に衝突した場合は何もせずfalseを返す。
	Insert(ctx context.Context, userID string, habitID int64, date string) (bool, error)

	// Delete は達成記録を削除する。対象行があった場合はtrueを返す。
	Delete(ctx context.Context, userID string, habitID int64, date string) (bool, error)

	// ListInRange は [start, end] の達成記録を日付昇順・習慣ID昇順でまとめて返す。
	ListInRange(ctx context.Context, userID, start, end string) ([]model.DayCompletions, error)

	// ListAll はユーザーの全達成記録を日付昇順でまとめて返す。
	ListAll(ctx context.Context, userID string) ([]model.DayCompletions, error)

	// CountByUserID はユーザーの達成記録の総数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)
}

// NotificationRepository は通知の永続化インターフェース。
type NotificationRepository interface {
	// CreateIfAbsent は同一ユーザーに同一メッセージの通知がない場合のみ作成する。
	// 作成した場合はtrueを返す。
	CreateIfAbsent(ctx context.Context, userID, message string) (bool, error)

	// ListByUserID はユーザーの通知を新しい順に返す。
	ListByUserID(ctx context.Context, userID string) ([]model.Notification, error)

	// MarkRead は通知を既読にする。対象行があった場合はtrueを返す。
	MarkRead(ctx context.Context, userID string, id int64) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// groupByDate は (date, habit_id) の昇順に並んだ行をDayCompletionsにまとめる。
func groupByDate(rows *sql.Rows) ([]model.DayCompletions, error) {
	var result []model.DayCompletions
	for rows.Next() {
		var date string
		var habitID int64
		if err := rows.Scan(&date, &habitID); err != nil {
			return nil, err
		}
		if n := len(result); n > 0 && result[n-1].Date == date {
			result[n-1].HabitIDs = append(result[n-1].HabitIDs, habitID)
			continue
		}
		result = append(result, model.DayCompletions{Date: date, HabitIDs: []int64{habitID}})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
