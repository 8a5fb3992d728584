package model

import "sort"

// Completion は (ユーザー, 習慣, 日付) の達成記録を表す。
// 行が存在することが「達成」を意味する。
type Completion struct {
	UserID  string
	HabitID int64
	Date    string // YYYY-MM-DD
}

// DayCompletions はある日付に達成された習慣IDの集合を表す。
// HabitIDsは昇順に並ぶ。
type DayCompletions struct {
	Date     string
	HabitIDs []int64
}

// CompletionIndex は日付ごとの達成集合を参照するための読み取り専用インデックス。
// ゼロ値は空のインデックスとして扱える。
type CompletionIndex struct {
	days  map[string]map[int64]struct{}
	dates []string
}

// NewCompletionIndex はDayCompletionsの列からCompletionIndexを構築する。
// 同じ日付が複数回現れた場合は集合を合併する。
func NewCompletionIndex(days []DayCompletions) CompletionIndex {
	ix := CompletionIndex{days: make(map[string]map[int64]struct{}, len(days))}
	for _, d := range days {
		set, ok := ix.days[d.Date]
		if !ok {
			set = make(map[int64]struct{}, len(d.HabitIDs))
			ix.days[d.Date] = set
			ix.dates = append(ix.dates, d.Date)
		}
		for _, id := range d.HabitIDs {
			set[id] = struct{}{}
		}
	}
	sort.Strings(ix.dates)
	return ix
}

// Has は指定日に指定習慣が達成されているかを返す。
func (ix CompletionIndex) Has(date string, habitID int64) bool {
	_, ok := ix.days[date][habitID]
	return ok
}

// Count は指定日の達成数（習慣一覧によるフィルタなし）を返す。
func (ix CompletionIndex) Count(date string) int {
	return len(ix.days[date])
}

// Dates はインデックスに含まれる日付を昇順で返す。
func (ix CompletionIndex) Dates() []string {
	out := make([]string, len(ix.dates))
	copy(out, ix.dates)
	return out
}

// Len はインデックスに含まれる日付の数を返す。
func (ix CompletionIndex) Len() int {
	return len(ix.dates)
}
