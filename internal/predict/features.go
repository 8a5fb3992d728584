// Package predict は達成履歴から特徴量を作り、ユーザーごとのロジスティック回帰モデルで
// 翌日の達成確率を予測する。
package predict

import (
	"sort"
	"time"

	"github.com/hitoshi/habitman/internal/calendar"
	"github.com/hitoshi/habitman/internal/model"
)

// FeatureCount は特徴量ベクトルの次元数。[recent7, streak, dow_0..dow_6]
const FeatureCount = 9

const (
	recentWindow = 7
	// predictionWindowDays は予測時に参照する過去日数（今日を含まない）。
	predictionWindowDays = 30
)

// Sample は学習用の1行。
type Sample struct {
	HabitID  int64
	Date     string
	Features []float64
	Label    float64
}

// FeatureVector は学習と予測で共通の特徴量ベクトルを組み立てる。
// dowは月曜=0の曜日番号で、one-hotに展開する。
func FeatureVector(recent7 float64, streak int, dow int) []float64 {
	x := make([]float64, FeatureCount)
	x[0] = recent7
	x[1] = float64(streak)
	if dow >= 0 && dow < 7 {
		x[2+dow] = 1
	}
	return x
}

// BuildDataset は全履歴から学習データを作る。
//
// 観測日は何らかの達成がある日付の昇順列で、recent7 と streak はこの観測日の列上で数える。
// ラベルは同じ習慣の次の観測日の達成有無で、習慣ごとの最後の行は捨てる。
// 観測日が2日未満なら結果は空になる。
func BuildDataset(habitIDs []int64, history []model.DayCompletions) []Sample {
	ix := model.NewCompletionIndex(history)
	dates := ix.Dates()
	if len(dates) < 2 {
		return nil
	}

	ids := make([]int64, len(habitIDs))
	copy(ids, habitIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	dows := make([]int, len(dates))
	for i, d := range dates {
		t, err := time.Parse(calendar.DateLayout, d)
		if err != nil {
			dows[i] = -1
			continue
		}
		dows[i] = calendar.Weekday(t)
	}

	samples := make([]Sample, 0, len(ids)*(len(dates)-1))
	for _, id := range ids {
		for i := 0; i < len(dates)-1; i++ {
			done := 0
			for j := i; j >= 0 && j > i-recentWindow; j-- {
				if ix.Has(dates[j], id) {
					done++
				}
			}
			window := min(i+1, recentWindow)

			streak := 0
			for k := i; k >= 0 && ix.Has(dates[k], id); k-- {
				streak++
			}

			label := 0.0
			if ix.Has(dates[i+1], id) {
				label = 1
			}

			samples = append(samples, Sample{
				HabitID:  id,
				Date:     dates[i],
				Features: FeatureVector(float64(done)/float64(window), streak, dows[i]),
				Label:    label,
			})
		}
	}
	return samples
}

// NextDayFeatures は today 時点の翌日予測用特徴量を作る。
// 直近7暦日の達成率、today で終わる連続達成日数、翌日の曜日を使う。
func NextDayFeatures(habitID int64, ix model.CompletionIndex, today time.Time) []float64 {
	day := calendar.FormatDate(today)

	done := 0
	for i := 0; i < recentWindow; i++ {
		if ix.Has(calendar.AddDays(day, -i), habitID) {
			done++
		}
	}

	streak := 0
	for k := 0; k <= predictionWindowDays && ix.Has(calendar.AddDays(day, -k), habitID); k++ {
		streak++
	}

	return FeatureVector(float64(done)/recentWindow, streak, calendar.Weekday(today.AddDate(0, 0, 1)))
}
