// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は出品説明文やプロフィール自己紹介などの
// ユーザー入力テキストをサニタイズし、XSS攻撃からほかの閲覧者を保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 最小限の装飾タグのみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
// 出品説明文・プロフィール自己紹介の保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize は入力をサニタイズして安全なテキストを返す。
	// 許可タグ（p, br, strong, em）のみを通過させ、
	// script, iframe, style タグおよび on* イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 出品説明文は装飾をほぼ必要としないため、許可タグは最小限に絞る。
// script, iframe, style等は許可リストに含めないことで自動的に除去される。
// on*イベント属性はbluemondayのデフォルトで許可されないため除去される。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("p", "br", "strong", "em")

	return &contentSanitizer{policy: p}
}

// Sanitize は入力テキストをサニタイズして返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return s.policy.Sanitize(raw)
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)
