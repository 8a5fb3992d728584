// Package stats は月次の達成統計を計算する。
// すべての関数は純粋関数で、ストレージにはアクセスしない。
package stats

import "github.com/hitoshi/habitman/internal/model"

// weekLength は週次チャンクの日数。
const weekLength = 7

// HabitCount は習慣ごとの達成日数。
type HabitCount struct {
	ID    int64
	Name  string
	Count int
}

// Result は統計の計算結果。
type Result struct {
	HabitCounts    []HabitCount
	DailyTotals    []int
	OverallPercent int
	Weekly         []int
}

// Compute は習慣一覧・達成インデックス・日付列から統計を計算する。
//
// 日別合計と週次は習慣一覧で絞り込まない。その月のスナップショットにない習慣の達成も数える。
// 全体のパーセントは習慣ごとの達成日数の合計から求めるため、100を超えない。
// パーセントはすべて整数演算で切り捨てる。
func Compute(habits []model.MonthHabit, completions model.CompletionIndex, dates []string) Result {
	res := Result{
		HabitCounts: make([]HabitCount, 0, len(habits)),
		DailyTotals: make([]int, 0, len(dates)),
		Weekly:      []int{},
	}

	total := 0
	for _, h := range habits {
		n := 0
		for _, d := range dates {
			if completions.Has(d, h.ID) {
				n++
			}
		}
		res.HabitCounts = append(res.HabitCounts, HabitCount{ID: h.ID, Name: h.Name, Count: n})
		total += n
	}

	for _, d := range dates {
		res.DailyTotals = append(res.DailyTotals, completions.Count(d))
	}

	denom := max(1, len(habits))
	if len(dates) > 0 {
		res.OverallPercent = percent(total, len(dates)*denom)
	}

	for start := 0; start < len(res.DailyTotals); start += weekLength {
		end := min(start+weekLength, len(res.DailyTotals))
		sum := 0
		for _, c := range res.DailyTotals[start:end] {
			sum += c
		}
		res.Weekly = append(res.Weekly, percent(sum, (end-start)*denom))
	}

	return res
}

// percent は floor(100*num/den) を返す。den は正であること。
func percent(num, den int) int {
	return 100 * num / den
}
