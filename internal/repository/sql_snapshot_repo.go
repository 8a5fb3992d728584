package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/habitman/internal/model"
)

// SQLSnapshotRepo は月次スナップショットのリポジトリ。
type SQLSnapshotRepo struct {
	db *sql.DB
}

// NewSQLSnapshotRepo はSQLSnapshotRepoを生成する。
func NewSQLSnapshotRepo(db *sql.DB) *SQLSnapshotRepo {
	return &SQLSnapshotRepo{db: db}
}

// CountByMonth は指定月のスナップショット行数を返す。
func (r *SQLSnapshotRepo) CountByMonth(ctx context.Context, userID, month string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM habit_snapshots WHERE user_id = $1 AND month = $2`,
		userID, month,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// ListByMonth は指定月のスナップショットをhabit_id昇順で返す。
func (r *SQLSnapshotRepo) ListByMonth(ctx context.Context, userID, month string) ([]model.HabitSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, habit_id, month, display_name
		 FROM habit_snapshots
		 WHERE user_id = $1 AND month = $2
		 ORDER BY habit_id`,
		userID, month,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []model.HabitSnapshot
	for rows.Next() {
		var s model.HabitSnapshot
		if err := rows.Scan(&s.UserID, &s.HabitID, &s.Month, &s.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	return snapshots, nil
}

// UpdateDisplayName は指定月の表示名のみを更新する。
func (r *SQLSnapshotRepo) UpdateDisplayName(ctx context.Context, userID string, habitID int64, month, name string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE habit_snapshots SET display_name = $1
		 WHERE user_id = $2 AND habit_id = $3 AND month = $4`,
		name, userID, habitID, month,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update snapshot: %w", err)
	}
	return affected(result)
}

// Delete は指定月のスナップショット行のみを削除する。
func (r *SQLSnapshotRepo) Delete(ctx context.Context, userID string, habitID int64, month string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM habit_snapshots
		 WHERE user_id = $1 AND habit_id = $2 AND month = $3`,
		userID, habitID, month,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return affected(result)
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ SnapshotRepository = (*SQLSnapshotRepo)(nil)
