package security

import (
	"strings"
	"testing"
)

// TestText_PlainInputIsUnchanged はタグを含まない文字列がそのまま返ることを検証する。
func TestText_PlainInputIsUnchanged(t *testing.T) {
	s := NewContentSanitizer()
	if got := s.Text("数学の宿題を共有します"); got != "数学の宿題を共有します" {
		t.Errorf("Text = %q", got)
	}
}

// TestText_RemovesDangerousContent は危険な要素が除去されることを検証する。
func TestText_RemovesDangerousContent(t *testing.T) {
	s := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
	}{
		{"scriptタグが内容ごと除去される", `hello<script>alert("x")</script>`, []string{"script", "alert"}},
		{"styleタグが内容ごと除去される", `<style>body{}</style>hi`, []string{"style", "body{}"}},
		{"イベント属性が除去される", `<p onclick="steal()">text</p>`, []string{"onclick", "steal"}},
		{"iframeが除去される", `<iframe src="https://evil.example"></iframe>ok`, []string{"iframe", "evil"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Text(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Text(%q) = %q, should not contain %q", tt.input, got, absent)
				}
			}
		})
	}
}

// TestText_KeepsParagraphBreaks は段落と改行が改行文字に変換されることを検証する。
func TestText_KeepsParagraphBreaks(t *testing.T) {
	s := NewContentSanitizer()
	got := s.Text("<p>one</p><p>two</p>three<br>four")
	want := "one\ntwo\nthree\nfour"
	if got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}
}

// TestText_DecodesEntities は文字参照がデコードされることを検証する。
func TestText_DecodesEntities(t *testing.T) {
	s := NewContentSanitizer()
	if got := s.Text("a &amp; b < c"); got != "a & b < c" {
		t.Errorf("Text = %q, want %q", got, "a & b < c")
	}
}

// TestText_ListItems はリスト項目に記号が付くことを検証する。
func TestText_ListItems(t *testing.T) {
	s := NewContentSanitizer()
	got := s.Text("<ul><li>x</li><li>y</li></ul>")
	if !strings.Contains(got, "- x") || !strings.Contains(got, "- y") {
		t.Errorf("Text = %q, want list markers", got)
	}
}

// TestText_Idempotent は同一入力に同一出力を返すことを検証する。
func TestText_Idempotent(t *testing.T) {
	s := NewContentSanitizer()
	in := `<p>x<b>y</b></p>`
	if s.Text(in) != s.Text(in) {
		t.Error("Text should be deterministic")
	}
	if s.Text("") != "" {
		t.Error("empty input should return empty output")
	}
}

// TestPlainText_CollapsesBlankLines は3行以上の空行が2行にまとめられることを検証する。
func TestPlainText_CollapsesBlankLines(t *testing.T) {
	got := PlainText("<p>a</p><p></p><p></p><p>b</p>")
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("PlainText = %q, should not contain 3 consecutive newlines", got)
	}
}
