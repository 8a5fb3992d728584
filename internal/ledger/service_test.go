package ledger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/hitoshi/habitman/internal/database/dbtest"
	"github.com/hitoshi/habitman/internal/model"
	"github.com/hitoshi/habitman/internal/repository"
)

// --- モック ---

type mockCompletionRepo struct {
	insertFn func(ctx context.Context, userID string, habitID int64, date string) (bool, error)
	deleteFn func(ctx context.Context, userID string, habitID int64, date string) (bool, error)
}

func (m *mockCompletionRepo) Insert(ctx context.Context, userID string, habitID int64, date string) (bool, error) {
	if m.insertFn != nil {
		return m.insertFn(ctx, userID, habitID, date)
	}
	return true, nil
}
func (m *mockCompletionRepo) Delete(ctx context.Context, userID string, habitID int64, date string) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, habitID, date)
	}
	return false, nil
}
func (m *mockCompletionRepo) ListInRange(ctx context.Context, userID, start, end string) ([]model.DayCompletions, error) {
	return nil, nil
}
func (m *mockCompletionRepo) ListAll(ctx context.Context, userID string) ([]model.DayCompletions, error) {
	return nil, nil
}
func (m *mockCompletionRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	return 0, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) Notify(userID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, userID)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func newTestLogger() *slog.Logger {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil))
}

// --- テスト ---

// ADDED → REMOVED → ADDED の順に結果が返ること
func TestToggle_Cycle(t *testing.T) {
	db := dbtest.Open(t)
	notifier := &recordingNotifier{}
	svc := NewService(repository.NewSQLCompletionRepo(db), notifier, nil, newTestLogger())
	ctx := context.Background()

	want := []ToggleResult{ToggleAdded, ToggleRemoved, ToggleAdded}
	for i, w := range want {
		got, err := svc.Toggle(ctx, "user-1", 1, "2024-01-01")
		if err != nil {
			t.Fatalf("toggle %d failed: %v", i, err)
		}
		if got != w {
			t.Errorf("toggle %d = %q, want %q", i, got, w)
		}
	}

	// 追加は2回、削除では通知しない
	if notifier.count() != 2 {
		t.Errorf("notify calls = %d, want 2", notifier.count())
	}
}

func TestToggle_Validation_NoStateChange(t *testing.T) {
	repo := &mockCompletionRepo{
		insertFn: func(ctx context.Context, userID string, habitID int64, date string) (bool, error) {
			t.Error("Insert should not be called")
			return false, nil
		},
		deleteFn: func(ctx context.Context, userID string, habitID int64, date string) (bool, error) {
			t.Error("Delete should not be called")
			return false, nil
		},
	}
	svc := NewService(repo, nil, nil, newTestLogger())
	ctx := context.Background()

	tests := []struct {
		name    string
		habitID int64
		date    string
		code    string
	}{
		{name: "習慣IDが0", habitID: 0, date: "2024-01-01", code: model.ErrCodeInvalidHabitID},
		{name: "習慣IDが負", habitID: -3, date: "2024-01-01", code: model.ErrCodeInvalidHabitID},
		{name: "日付が空", habitID: 1, date: "", code: model.ErrCodeInvalidDate},
		{name: "日付形式が不正", habitID: 1, date: "01/01/2024", code: model.ErrCodeInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Toggle(ctx, "user-1", tt.habitID, tt.date)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != tt.code {
				t.Errorf("err = %v, want code %s", err, tt.code)
			}
		})
	}
}

// 並行トグルで挿入に負けた場合もADDEDを返し、再学習は通知しないこと
func TestToggle_LostInsertRace_ReportsAddedWithoutNotify(t *testing.T) {
	repo := &mockCompletionRepo{
		deleteFn: func(ctx context.Context, userID string, habitID int64, date string) (bool, error) {
			return false, nil
		},
		insertFn: func(ctx context.Context, userID string, habitID int64, date string) (bool, error) {
			return false, nil
		},
	}
	notifier := &recordingNotifier{}
	svc := NewService(repo, notifier, nil, newTestLogger())

	got, err := svc.Toggle(context.Background(), "user-1", 1, "2024-01-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != ToggleAdded {
		t.Errorf("result = %q, want added", got)
	}
	if notifier.count() != 0 {
		t.Errorf("notify calls = %d, want 0", notifier.count())
	}
}

func TestToggle_RepositoryError_IsWrapped(t *testing.T) {
	dbErr := errors.New("disk full")
	repo := &mockCompletionRepo{
		insertFn: func(ctx context.Context, userID string, habitID int64, date string) (bool, error) {
			return false, dbErr
		},
	}
	notifier := &recordingNotifier{}
	svc := NewService(repo, notifier, nil, newTestLogger())

	_, err := svc.Toggle(context.Background(), "user-1", 1, "2024-01-01")
	if !errors.Is(err, dbErr) {
		t.Errorf("expected wrapped error, got %v", err)
	}
	if notifier.count() != 0 {
		t.Error("failed insert must not trigger retrain")
	}
}

func TestCompletionsInRange_Validation(t *testing.T) {
	svc := NewService(&mockCompletionRepo{}, nil, nil, newTestLogger())
	ctx := context.Background()

	_, err := svc.CompletionsInRange(ctx, "user-1", "2024-02-01", "2024-01-01")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRange {
		t.Errorf("err = %v, want INVALID_RANGE", err)
	}

	if _, err := svc.CompletionsInRange(ctx, "user-1", "bad", "2024-01-01"); err == nil {
		t.Error("expected error for invalid start date")
	}
}

func TestCompletionsInRange_InclusiveBounds(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(repository.NewSQLCompletionRepo(db), nil, nil, newTestLogger())
	ctx := context.Background()

	for _, d := range []string{"2023-12-31", "2024-01-01", "2024-01-31", "2024-02-01"} {
		if _, err := svc.Toggle(ctx, "user-1", 1, d); err != nil {
			t.Fatalf("seed toggle failed: %v", err)
		}
	}

	days, err := svc.CompletionsInRange(ctx, "user-1", "2024-01-01", "2024-01-31")
	if err != nil {
		t.Fatalf("CompletionsInRange failed: %v", err)
	}
	if len(days) != 2 || days[0].Date != "2024-01-01" || days[1].Date != "2024-01-31" {
		t.Errorf("days = %+v", days)
	}
}
