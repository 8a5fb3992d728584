// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizer は習慣名などのユーザー入力テキストからHTMLを除去する。
// 習慣名はAPI応答やレポートにそのまま表示されるため、保存前にプレーンテキスト化する。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxNameLength は習慣名として保存する最大文字数（rune数）。
const MaxNameLength = 100

// NameSanitizer は表示名をプレーンテキストに正規化する。
type NameSanitizer interface {
	// Sanitize はHTMLタグを除去し、前後の空白を取り除いた文字列を返す。
	// 結果が空の場合は空文字列を返す。
	Sanitize(raw string) string
}

// nameSanitizer はNameSanitizerの実装。
// bluemondayのStrictPolicyは全タグを除去し、スレッドセーフに利用できる。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// maxUnescapePasses はエンティティを展開してタグ除去を繰り返す上限回数。
const maxUnescapePasses = 4

// NewNameSanitizer はNameSanitizerの新しいインスタンスを生成する。
func NewNameSanitizer() NameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
// エンティティで書かれたタグも展開後に除去する。展開結果が変わらなくなるまで繰り返し、
// 上限に達した場合はエスケープされたままの値を使う。
func (s *nameSanitizer) Sanitize(raw string) string {
	cleaned := s.plainText(raw)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if utf8.RuneCountInString(cleaned) > MaxNameLength {
		runes := []rune(cleaned)
		cleaned = strings.TrimSpace(string(runes[:MaxNameLength]))
	}
	return cleaned
}

func (s *nameSanitizer) plainText(raw string) string {
	cur := raw
	for range maxUnescapePasses {
		next := html.UnescapeString(s.policy.Sanitize(cur))
		if next == cur {
			return next
		}
		cur = next
	}
	return s.policy.Sanitize(cur)
}
