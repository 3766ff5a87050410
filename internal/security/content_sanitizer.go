// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer はサーバーから受け取った投稿本文やコメントを取り込み時に無害化し、
// 端末表示用のプレーンテキストに変換する。
// bluemondayの許可リストで段落構造のみを残し、x/net/htmlのトークナイザで文字列化する。
package security

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// ContentSanitizerService はユーザー投稿コンテンツの無害化機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Text は任意のHTML/テキストを無害化し、プレーンテキストを返す。
	// script, style, iframe 等は内容ごと除去される。
	// 段落と改行は改行文字として保持される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Text(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフに処理する。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 属性はすべて除去し、段落構造を表すタグのみ通過させる。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "div", "ul", "ol", "li", "blockquote", "pre")
	return &contentSanitizer{policy: p}
}

// Text はコンテンツを無害化してプレーンテキストに変換する。
func (s *contentSanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	return PlainText(s.policy.Sanitize(raw))
}

// blockTags は終了時に改行を入れる要素。
var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "blockquote": true, "pre": true, "ul": true, "ol": true,
}

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// PlainText は無害化済みHTMLをプレーンテキストに変換する。
// 文字参照はデコードされ、br と段落の終わりは改行になる。
func PlainText(sanitized string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(sanitized))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF を含め、トークン化の終了
			out := excessNewlines.ReplaceAllString(b.String(), "\n\n")
			return strings.TrimSpace(out)
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				b.WriteByte('\n')
			}
			if string(name) == "li" {
				b.WriteString("- ")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] {
				b.WriteByte('\n')
			}
		}
	}
}
