package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLHabitRepo はPostgreSQL/SQLite共通のSQLで実装した習慣リポジトリ。
type SQLHabitRepo struct {
	db *sql.DB
}

// NewSQLHabitRepo はSQLHabitRepoを生成する。
func NewSQLHabitRepo(db *sql.DB) *SQLHabitRepo {
	return &SQLHabitRepo{db: db}
}

// CreateWithSnapshot は習慣と作成月のスナップショットを同一トランザクションで作成する。
func (r *SQLHabitRepo) CreateWithSnapshot(ctx context.Context, userID, name, month string, createdAt time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var habitID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO habits (user_id, name, created_at)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		userID, name, createdAt.UTC(),
	).Scan(&habitID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert habit: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO habit_snapshots (user_id, habit_id, month, display_name)
		 VALUES ($1, $2, $3, $4)`,
		userID, habitID, month, name,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert habit snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return habitID, nil
}

// ListIDsByUserID はユーザーが作成した全習慣のIDを昇順で返す。
func (r *SQLHabitRepo) ListIDsByUserID(ctx context.Context, userID string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM habits WHERE user_id = $1 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan habit id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate habits: %w", err)
	}

	return ids, nil
}

// compile-time interface check
var _ HabitRepository = (*SQLHabitRepo)(nil)
