package predict

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/habitman/internal/calendar"
	"github.com/hitoshi/habitman/internal/database/dbtest"
	"github.com/hitoshi/habitman/internal/model"
	"github.com/hitoshi/habitman/internal/repository"
)

// --- モック ---

type mockModelStore struct {
	saveFn func(ctx context.Context, userID string, m *Model) error
	loadFn func(ctx context.Context, userID string) (*Model, error)
	loads  int
}

func (m *mockModelStore) Save(ctx context.Context, userID string, mdl *Model) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, userID, mdl)
	}
	return nil
}

func (m *mockModelStore) Load(ctx context.Context, userID string) (*Model, error) {
	m.loads++
	if m.loadFn != nil {
		return m.loadFn(ctx, userID)
	}
	return nil, nil
}

type mockHabitLister struct {
	habits []model.MonthHabit
	month  string
}

func (m *mockHabitLister) HabitsForMonth(ctx context.Context, userID, month string) ([]model.MonthHabit, error) {
	m.month = month
	return m.habits, nil
}

func newTestLogger() *slog.Logger {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil))
}

var testNow = time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)

func seedHabits(t *testing.T, habitRepo *repository.SQLHabitRepo, names ...string) []int64 {
	t.Helper()
	var ids []int64
	for _, name := range names {
		id, err := habitRepo.CreateWithSnapshot(context.Background(), "user-1", name, "2024-01", testNow)
		if err != nil {
			t.Fatalf("CreateWithSnapshot failed: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

// --- テスト ---

func TestTrainForUser_NotEnoughData(t *testing.T) {
	db := dbtest.Open(t)
	habitRepo := repository.NewSQLHabitRepo(db)
	completionRepo := repository.NewSQLCompletionRepo(db)
	ids := seedHabits(t, habitRepo, "A", "B")

	// 観測日が1日しかない
	for _, id := range ids {
		if _, err := completionRepo.Insert(context.Background(), "user-1", id, "2024-01-10"); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	store := &mockModelStore{
		saveFn: func(ctx context.Context, userID string, m *Model) error {
			t.Error("Save must not be called without data")
			return nil
		},
	}
	trainer := NewTrainer(habitRepo, completionRepo, store, DefaultFitOptions(), calendar.FixedClock(testNow), newTestLogger())

	_, err := trainer.TrainForUser(context.Background(), "user-1")
	if !errors.Is(err, ErrNotEnoughData) {
		t.Errorf("err = %v, want ErrNotEnoughData", err)
	}
}

func TestTrainForUser_SavesModel(t *testing.T) {
	db := dbtest.Open(t)
	habitRepo := repository.NewSQLHabitRepo(db)
	completionRepo := repository.NewSQLCompletionRepo(db)
	ids := seedHabits(t, habitRepo, "A", "B")

	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"} {
		if _, err := completionRepo.Insert(context.Background(), "user-1", ids[0], d); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	store := NewFileModelStore(filepath.Join(t.TempDir(), "models"))
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))
	trainer := NewTrainer(habitRepo, completionRepo, store, FitOptions{Iterations: 100}, calendar.FixedClock(testNow), logger)

	res, err := trainer.TrainForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("TrainForUser failed: %v", err)
	}
	if res.Accuracy < 0 || res.Accuracy > 1 {
		t.Errorf("Accuracy = %v, want within [0, 1]", res.Accuracy)
	}
	if !strings.Contains(logBuf.String(), `"train_accuracy"`) {
		t.Errorf("log does not contain train_accuracy: %s", logBuf.String())
	}
	// 2習慣 x (4観測日 - 1)
	if res.Samples != 6 {
		t.Errorf("Samples = %d, want 6", res.Samples)
	}
	if res.Path != store.Path("user-1") {
		t.Errorf("Path = %q", res.Path)
	}

	m, err := store.Load(context.Background(), "user-1")
	if err != nil || m == nil {
		t.Fatalf("Load = %v, %v", m, err)
	}
	if !m.TrainedAt.Equal(testNow) || len(m.Weights) != FeatureCount {
		t.Errorf("model = %+v", m)
	}
}

func TestTrainForUser_SaveError(t *testing.T) {
	db := dbtest.Open(t)
	habitRepo := repository.NewSQLHabitRepo(db)
	completionRepo := repository.NewSQLCompletionRepo(db)
	ids := seedHabits(t, habitRepo, "A")
	for _, d := range []string{"2024-01-01", "2024-01-02"} {
		if _, err := completionRepo.Insert(context.Background(), "user-1", ids[0], d); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	saveErr := errors.New("read-only file system")
	store := &mockModelStore{
		saveFn: func(ctx context.Context, userID string, m *Model) error { return saveErr },
	}
	trainer := NewTrainer(habitRepo, completionRepo, store, DefaultFitOptions(), calendar.FixedClock(testNow), newTestLogger())

	if _, err := trainer.TrainForUser(context.Background(), "user-1"); !errors.Is(err, saveErr) {
		t.Errorf("err = %v, want wrapped save error", err)
	}
}

// 習慣のない月はモデルを読み込まずに空の結果を返す
func TestPredictNextDay_EmptyMonthSkipsModel(t *testing.T) {
	db := dbtest.Open(t)
	store := &mockModelStore{
		loadFn: func(ctx context.Context, userID string) (*Model, error) {
			t.Error("Load must not be called for an empty month")
			return nil, nil
		},
	}
	lister := &mockHabitLister{}
	p := NewPredictor(lister, repository.NewSQLCompletionRepo(db), store, nil, newTestLogger())

	got, err := p.PredictNextDay(context.Background(), "user-1", testNow)
	if err != nil {
		t.Fatalf("PredictNextDay failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty slice", got)
	}
	if store.loads != 0 {
		t.Errorf("loads = %d, want 0", store.loads)
	}
	if lister.month != "2024-01" {
		t.Errorf("month = %q, want 2024-01", lister.month)
	}
}

func TestPredictNextDay_NoModel(t *testing.T) {
	db := dbtest.Open(t)
	lister := &mockHabitLister{habits: []model.MonthHabit{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}}
	p := NewPredictor(lister, repository.NewSQLCompletionRepo(db), &mockModelStore{}, nil, newTestLogger())

	got, err := p.PredictNextDay(context.Background(), "user-1", testNow)
	if err != nil {
		t.Fatalf("PredictNextDay failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, pr := range got {
		if pr.Probability != nil {
			t.Errorf("habit %d probability = %v, want nil", pr.HabitID, *pr.Probability)
		}
	}
}

func TestPredictNextDay_CorruptModelTreatedAsMissing(t *testing.T) {
	db := dbtest.Open(t)
	lister := &mockHabitLister{habits: []model.MonthHabit{{ID: 1, Name: "A"}}}
	store := &mockModelStore{
		loadFn: func(ctx context.Context, userID string) (*Model, error) {
			return nil, errors.New("unexpected EOF")
		},
	}
	p := NewPredictor(lister, repository.NewSQLCompletionRepo(db), store, nil, newTestLogger())

	got, err := p.PredictNextDay(context.Background(), "user-1", testNow)
	if err != nil {
		t.Fatalf("PredictNextDay failed: %v", err)
	}
	if got[0].Probability != nil {
		t.Errorf("probability = %v, want nil", *got[0].Probability)
	}
}

func TestPredictNextDay_Scored(t *testing.T) {
	db := dbtest.Open(t)
	completionRepo := repository.NewSQLCompletionRepo(db)
	for _, d := range []string{"2024-01-18", "2024-01-19", "2024-01-20"} {
		if _, err := completionRepo.Insert(context.Background(), "user-1", 1, d); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	var seen []float64
	// streak の重みだけを持つモデル
	weights := make([]float64, FeatureCount)
	weights[1] = 1
	store := &mockModelStore{
		loadFn: func(ctx context.Context, userID string) (*Model, error) {
			return &Model{Weights: weights}, nil
		},
	}
	lister := &mockHabitLister{habits: []model.MonthHabit{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}}
	p := NewPredictor(lister, completionRepo, store, nil, newTestLogger())

	got, err := p.PredictNextDay(context.Background(), "user-1", testNow)
	if err != nil {
		t.Fatalf("PredictNextDay failed: %v", err)
	}
	for _, pr := range got {
		if pr.Probability == nil {
			t.Fatalf("habit %d has no probability", pr.HabitID)
		}
		seen = append(seen, *pr.Probability)
	}
	// 習慣1は3日連続なので習慣2より高い
	if seen[0] <= seen[1] {
		t.Errorf("probabilities = %v", seen)
	}
	if seen[1] != 0.5 {
		t.Errorf("habit without history = %v, want 0.5", seen[1])
	}
}
