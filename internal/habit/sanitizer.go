package habit

import "github.com/microcosm-cc/bluemonday"

// TextSanitizer はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
// 習慣の名前と説明の保存前に使用される。
type TextSanitizer interface {
	// Sanitize は入力テキストからHTMLマークアップを全て除去して返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
// StrictPolicyは一切のタグ・属性を許可しないため、
// 習慣名や説明に埋め込まれたscriptタグ等は全て除去される。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力テキストからHTMLマークアップを全て除去して返す。
func (s *textSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
