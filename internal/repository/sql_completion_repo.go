package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/habitman/internal/model"
)

// SQLCompletionRepo は達成記録のリポジトリ。
// 冪等性は (user_id, habit_id, date) の一意制約に委ねる。
type SQLCompletionRepo struct {
	db *sql.DB
}

// NewSQLCompletionRepo はSQLCompletionRepoを生成する。
func NewSQLCompletionRepo(db *sql.DB) *SQLCompletionRepo {
	return &SQLCompletionRepo{db: db}
}

// Insert は達成記録を挿入する。既に存在する場合はfalseを返す。
func (r *SQLCompletionRepo) Insert(ctx context.Context, userID string, habitID int64, date string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO completions (user_id, habit_id, date)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		userID, habitID, date,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert completion: %w", err)
	}
	return affected(result)
}

// Delete は達成記録を削除する。
func (r *SQLCompletionRepo) Delete(ctx context.Context, userID string, habitID int64, date string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM completions
		 WHERE user_id = $1 AND habit_id = $2 AND date = $3`,
		userID, habitID, date,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete completion: %w", err)
	}
	return affected(result)
}

// ListInRange は [start, end] の達成記録を返す。日付は文字列比較で絞り込む。
func (r *SQLCompletionRepo) ListInRange(ctx context.Context, userID, start, end string) ([]model.DayCompletions, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, habit_id FROM completions
		 WHERE user_id = $1 AND date >= $2 AND date <= $3
		 ORDER BY date, habit_id`,
		userID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	defer rows.Close()

	days, err := groupByDate(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan completions: %w", err)
	}
	return days, nil
}

// ListAll はユーザーの全達成記録を返す。
func (r *SQLCompletionRepo) ListAll(ctx context.Context, userID string) ([]model.DayCompletions, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, habit_id FROM completions
		 WHERE user_id = $1
		 ORDER BY date, habit_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	defer rows.Close()

	days, err := groupByDate(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan completions: %w", err)
	}
	return days, nil
}

// CountByUserID はユーザーの達成記録の総数を返す。
func (r *SQLCompletionRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM completions WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completions: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ CompletionRepository = (*SQLCompletionRepo)(nil)
