package model

import "time"

// Habit はユーザーが作成した習慣を表す。
// 一度作成された習慣は削除されず、月ごとの表示はHabitSnapshotで管理する。
type Habit struct {
	ID        int64
	UserID    string
	Name      string
	CreatedAt time.Time
}

// HabitSnapshot は特定の月における習慣の表示情報を表す。
// (UserID, HabitID, Month) の組で一意。
type HabitSnapshot struct {
	UserID      string
	HabitID     int64
	Month       string // YYYY-MM
	DisplayName string
}

// MonthHabit は月の習慣一覧の1要素。統計・通知・予測の入力として使う。
type MonthHabit struct {
	ID   int64
	Name string
}

// Session はユーザーのログインセッションを表す。
// セッションの発行は外部の認証基盤が行い、本サービスは参照と期限切れ削除のみを行う。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
