// Package notification は達成状況から通知を生成し、重複を抑止して保存する。
package notification

import (
	"fmt"

	"github.com/hitoshi/habitman/internal/calendar"
	"github.com/hitoshi/habitman/internal/model"
)

// 通知種別
const (
	TypeMissedHabit    = "missed_habit"
	TypeLowConsistency = "low_consistency"
)

const (
	missedWindowDays  = 3
	historyWindowDays = 14
	lowConsistencyPct = 40
)

// Generated は生成された通知を表す。Messageは保存時の重複判定キーになる。
type Generated struct {
	Type    string
	Message string
}

// Generate は基準日における通知を生成する純粋関数。
//
// 基準日当日は判定に含めない。直近3日間すべて未達成かつ直近14日に1回以上の達成がある習慣に
// missed_habit を出し、インデックス内の全日付での達成率が40%未満なら low_consistency を出す。
// referenceDate は検証済みの YYYY-MM-DD であること。
func Generate(habits []model.MonthHabit, completions model.CompletionIndex, referenceDate string) []Generated {
	var notes []Generated

	for _, h := range habits {
		hist := 0
		for i := 1; i <= historyWindowDays; i++ {
			if completions.Has(calendar.AddDays(referenceDate, -i), h.ID) {
				hist++
			}
		}
		missing := 0
		for i := 1; i <= missedWindowDays; i++ {
			if !completions.Has(calendar.AddDays(referenceDate, -i), h.ID) {
				missing++
			}
		}
		if missing >= missedWindowDays && hist > 0 {
			notes = append(notes, Generated{
				Type:    TypeMissedHabit,
				Message: missedHabitMessage(h.Name, missing),
			})
		}
	}

	dates := completions.Dates()
	if len(dates) > 0 && len(habits) > 0 {
		done := 0
		for _, d := range dates {
			done += completions.Count(d)
		}
		overall := 100 * done / (len(dates) * len(habits))
		if overall < lowConsistencyPct {
			notes = append(notes, Generated{
				Type:    TypeLowConsistency,
				Message: lowConsistencyMessage(overall),
			})
		}
	}

	return notes
}

func missedHabitMessage(name string, missing int) string {
	return fmt.Sprintf("You missed '%s' for %d days. Try making it smaller (5 min) or set a reminder.", name, missing)
}

func lowConsistencyMessage(overall int) string {
	return fmt.Sprintf("Consistency is low this period (%d%%). Try focusing on 2-3 habits.", overall)
}
