package model

import "time"

// Notification はユーザーに表示するコーチングメッセージを表す。
// 同一ユーザー内ではMessageの文字列そのものが重複判定キーになる。
type Notification struct {
	ID        int64
	UserID    string
	Message   string
	CreatedAt time.Time
	IsRead    bool
}
