// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, habit, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeHabitNameRequired = "HABIT_NAME_REQUIRED"
	ErrCodeInvalidHabitID    = "INVALID_HABIT_ID"
	ErrCodeInvalidDate       = "INVALID_DATE"
	ErrCodeInvalidMonth      = "INVALID_MONTH"
	ErrCodeInvalidRange      = "INVALID_RANGE"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// IsValidation はエラーが入力検証エラーかどうかを判定する。
func (e *APIError) IsValidation() bool {
	return e.Category == "validation"
}

// NewInvalidRequestError はリクエストボディ不正エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewHabitNameRequiredError は習慣名が空の場合のエラーを生成する。
func NewHabitNameRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeHabitNameRequired,
		Message:  "習慣名を入力してください。",
		Category: "validation",
		Action:   "1文字以上の習慣名を指定してください。",
	}
}

// NewInvalidHabitIDError は習慣IDが不正な場合のエラーを生成する。
func NewInvalidHabitIDError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidHabitID,
		Message:  fmt.Sprintf("無効な習慣IDです: %s", raw),
		Category: "validation",
		Action:   "正の整数の習慣IDを指定してください。",
	}
}

// NewInvalidDateError は日付形式が不正な場合のエラーを生成する。
func NewInvalidDateError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("無効な日付です: %q", raw),
		Category: "validation",
		Action:   "日付は YYYY-MM-DD 形式で指定してください。",
	}
}

// NewInvalidMonthError は月の形式が不正な場合のエラーを生成する。
func NewInvalidMonthError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMonth,
		Message:  fmt.Sprintf("無効な月です: %q", raw),
		Category: "validation",
		Action:   "月は YYYY-MM 形式で指定してください。",
	}
}

// NewInvalidRangeError は期間の開始日が終了日より後の場合のエラーを生成する。
func NewInvalidRangeError(start, end string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRange,
		Message:  fmt.Sprintf("期間が不正です: %s > %s", start, end),
		Category: "validation",
		Action:   "開始日には終了日以前の日付を指定してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
