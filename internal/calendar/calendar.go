// Package calendar は日付文字列(YYYY-MM-DD)と月文字列(YYYY-MM)の解析と列挙を提供する。
// 日付はすべて暦日として扱い、タイムゾーンの解釈はClockに閉じ込める。
package calendar

import (
	"fmt"
	"time"

	"github.com/hitoshi/habitman/internal/model"
)

const (
	// DateLayout は日付文字列の形式。
	DateLayout = "2006-01-02"
	// MonthLayout は月文字列の形式。
	MonthLayout = "2006-01"
)

// Clock は現在時刻を返す関数。テストでは固定時刻を返す関数に差し替える。
type Clock func() time.Time

// NewClock は指定タイムゾーンの現在時刻を返すClockを生成する。
// locがnilの場合はUTCを使用する。
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return func() time.Time {
		return time.Now().In(loc)
	}
}

// FixedClock は常に同じ時刻を返すClockを生成する。
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// ParseDate は YYYY-MM-DD 形式の日付を検証して解析する。
func ParseDate(s string) (time.Time, error) {
	if len(s) != len(DateLayout) {
		return time.Time{}, model.NewInvalidDateError(s)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, model.NewInvalidDateError(s)
	}
	return t, nil
}

// ParseMonth は YYYY-MM 形式の月を検証して解析する。
// 返り値はその月の1日(UTC)。
func ParseMonth(s string) (time.Time, error) {
	if len(s) != len(MonthLayout) {
		return time.Time{}, model.NewInvalidMonthError(s)
	}
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return time.Time{}, model.NewInvalidMonthError(s)
	}
	return t, nil
}

// MonthOf は年と月から月文字列を生成する。
func MonthOf(year, month int) (string, error) {
	if month < 1 || month > 12 || year < 1 || year > 9999 {
		return "", model.NewInvalidMonthError(fmt.Sprintf("%d-%d", year, month))
	}
	return fmt.Sprintf("%04d-%02d", year, month), nil
}

// FormatDate は時刻の暦日部分を日付文字列にする。
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatMonth は時刻の年月部分を月文字列にする。
func FormatMonth(t time.Time) string {
	return t.Format(MonthLayout)
}

// MonthDates は指定月の全日付を昇順で返す。
func MonthDates(month string) ([]string, error) {
	first, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}
	next := first.AddDate(0, 1, 0)
	var dates []string
	for d := first; d.Before(next); d = d.AddDate(0, 0, 1) {
		dates = append(dates, FormatDate(d))
	}
	return dates, nil
}

// MonthRange は指定月の初日と末日を返す。
func MonthRange(month string) (start, end string, err error) {
	first, err := ParseMonth(month)
	if err != nil {
		return "", "", err
	}
	last := first.AddDate(0, 1, -1)
	return FormatDate(first), FormatDate(last), nil
}

// AddDays は日付文字列にn日を加算した日付文字列を返す。
// dateは検証済みであることを前提とする。
func AddDays(date string, n int) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return FormatDate(t.AddDate(0, 0, n))
}

// Weekday は日付の曜日を月曜=0、日曜=6 の番号で返す。
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
