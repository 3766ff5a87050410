package apiclient

import (
	"encoding/json"
	"testing"

	"github.com/kojeffi/tbookers/internal/model"
)

func TestFlexPaths_Shapes(t *testing.T) {
	tests := []struct {
		name string
		json string
		want []string
	}{
		{"単一文字列", `"posts/a.png"`, []string{"posts/a.png"}},
		{"配列", `["posts/a.png","posts/b.mp4"]`, []string{"posts/a.png", "posts/b.mp4"}},
		{"JSON配列文字列", `"[\"posts/a.png\",\"posts/b.pdf\"]"`, []string{"posts/a.png", "posts/b.pdf"}},
		{"null", `null`, nil},
		{"空文字列", `""`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p flexPaths
			if err := json.Unmarshal([]byte(tt.json), &p); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if len(p) != len(tt.want) {
				t.Fatalf("len = %d, want %d (%v)", len(p), len(tt.want), p)
			}
			for i := range tt.want {
				if p[i] != tt.want[i] {
					t.Errorf("[%d] = %q, want %q", i, p[i], tt.want[i])
				}
			}
		})
	}
}

// TestWirePost_SingleStringMediaBecomesOneRef は文字列のmedia_pathが
// 1要素のメディア列に正規化されることを検証する。
func TestWirePost_SingleStringMediaBecomesOneRef(t *testing.T) {
	var w wirePost
	if err := json.Unmarshal([]byte(`{"id":1,"content":"hi","media_path":"posts/v.mp4"}`), &w); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	p := w.toModel()
	if len(p.Media) != 1 {
		t.Fatalf("len(Media) = %d, want 1", len(p.Media))
	}
	if p.Media[0].Kind != model.MediaKindVideo {
		t.Errorf("Kind = %q, want video", p.Media[0].Kind)
	}
}

func TestWirePost_Repost(t *testing.T) {
	body := `{
		"id": 2,
		"user": {"id": 9, "name": "Reposter"},
		"original_post": {
			"id": 1,
			"content": "original",
			"user": {"id": 5, "name": "Author", "profile_picture": "u/5.png", "user_type": "teacher"},
			"likes_count": "3",
			"is_liked": 1
		}
	}`
	var w wirePost
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	p := w.toModel()

	if !p.IsRepost() {
		t.Fatal("リポストとして認識されるべき")
	}
	if p.EffectiveID() != "1" {
		t.Errorf("EffectiveID = %q, want 1", p.EffectiveID())
	}
	if p.Reposter == nil || p.Reposter.Name != "Reposter" {
		t.Errorf("Reposter = %+v", p.Reposter)
	}
	d := p.Display()
	if d.Author.Name != "Author" || d.Author.Kind != "teacher" || d.Author.Picture != "u/5.png" {
		t.Errorf("Display().Author = %+v", d.Author)
	}
	if d.LikeCount != 3 || !d.ViewerHasLiked {
		t.Errorf("LikeCount=%d ViewerHasLiked=%v", d.LikeCount, d.ViewerHasLiked)
	}
}

func TestWirePost_RepostOriginalZeroCountersWin(t *testing.T) {
	body := `{
		"id": 2,
		"user": {"id": 9, "name": "Reposter"},
		"likes_count": 5,
		"is_liked": true,
		"comments_count": 4,
		"original_post": {
			"id": 1,
			"user": {"id": 5, "name": "Author"},
			"likes_count": 0,
			"is_liked": false,
			"comments_count": 0
		}
	}`
	var w wirePost
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	p := w.toModel()
	d := p.Display()
	if d.LikeCount != 0 || d.ViewerHasLiked {
		t.Errorf("LikeCount=%d ViewerHasLiked=%v, want 0/false", d.LikeCount, d.ViewerHasLiked)
	}
	if d.CommentCount != 0 {
		t.Errorf("CommentCount = %d, want 0", d.CommentCount)
	}
}

func TestWirePost_RepostOriginalWithoutCountersFallsBack(t *testing.T) {
	body := `{
		"id": 2,
		"likes_count": 5,
		"liked": 1,
		"reposts_count": 3,
		"original_post": {"id": 1, "content": "hi", "likes_count": null}
	}`
	var w wirePost
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	p := w.toModel()
	d := p.Display()
	if d.LikeCount != 5 || !d.ViewerHasLiked || d.RepostCount != 3 {
		t.Errorf("LikeCount=%d ViewerHasLiked=%v RepostCount=%d, want 5/true/3",
			d.LikeCount, d.ViewerHasLiked, d.RepostCount)
	}
}

func TestDecodeList_Envelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"配列", `[{"id":1},{"id":2}]`},
		{"data", `{"data":[{"id":1},{"id":2}]}`},
		{"posts", `{"posts":[{"id":1},{"id":2}]}`},
		{"ページネーション", `{"data":{"current_page":1,"data":[{"id":1},{"id":2}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := decodeList([]byte(tt.body), "posts")
			if err != nil {
				t.Fatalf("decodeList: %v", err)
			}
			if len(items) != 2 {
				t.Errorf("len = %d, want 2", len(items))
			}
		})
	}
}

func TestDecodeList_MissingList(t *testing.T) {
	_, err := decodeList([]byte(`{"message":"ok"}`), "posts")
	if model.Classify(err) != model.CategoryTransport {
		t.Errorf("Classify = %q, want transport", model.Classify(err))
	}
}

func TestDecodeToken(t *testing.T) {
	for _, body := range []string{
		`{"token":"t1"}`,
		`{"access_token":"t1","token_type":"Bearer"}`,
		`{"data":{"token":"t1"}}`,
	} {
		got, err := decodeToken([]byte(body))
		if err != nil {
			t.Errorf("decodeToken(%s): %v", body, err)
			continue
		}
		if got != "t1" {
			t.Errorf("decodeToken(%s) = %q, want t1", body, got)
		}
	}

	if _, err := decodeToken([]byte(`{"user":{}}`)); err == nil {
		t.Error("トークンがない場合はエラーになるべき")
	}
}

func TestDecodeProfile(t *testing.T) {
	body := `{"user":{"id":7,"name":"Ana","email":"a@example.com","type":"student","followers_count":4,"unread_notifications_count":2}}`
	p, err := decodeProfile([]byte(body))
	if err != nil {
		t.Fatalf("decodeProfile: %v", err)
	}
	if p.ID != "7" || p.Name != "Ana" || p.Kind != "student" {
		t.Errorf("profile = %+v", p)
	}
	if p.FollowersCount != 4 || p.NotificationCount != 2 {
		t.Errorf("counts = %d/%d", p.FollowersCount, p.NotificationCount)
	}
	if len(p.Raw) == 0 {
		t.Error("Rawが保持されていない")
	}

	if _, err := decodeProfile([]byte(`{"name":"no id"}`)); err == nil {
		t.Error("IDのないプロフィールはエラーになるべき")
	}
}

func TestServerMessage(t *testing.T) {
	if got := serverMessage([]byte(`{"message":"The given data was invalid.","errors":{"content":["The content field is required."]}}`)); got != "The content field is required." {
		t.Errorf("serverMessage = %q", got)
	}
	if got := serverMessage([]byte(`{"error":"Post not found"}`)); got != "Post not found" {
		t.Errorf("serverMessage = %q", got)
	}
	if got := serverMessage([]byte(`<html>`)); got != "" {
		t.Errorf("serverMessage = %q, want empty", got)
	}
	// 複数フィールドのエラーはサーバーの順序で最初のものを毎回返す
	multi := []byte(`{"message":"invalid","errors":{"email":["The email has already been taken."],"password":["The password is too short."],"name":["The name field is required."]}}`)
	for i := 0; i < 20; i++ {
		if got := serverMessage(multi); got != "The email has already been taken." {
			t.Fatalf("serverMessage = %q, want the email error", got)
		}
	}
	if got := serverMessage([]byte(`{"message":"invalid","errors":{"content":[],"media":"Too large."}}`)); got != "Too large." {
		t.Errorf("serverMessage = %q, want Too large.", got)
	}
	if got := serverMessage([]byte(`{"message":"invalid","errors":[]}`)); got != "invalid" {
		t.Errorf("serverMessage = %q, want invalid", got)
	}
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2025-01-02T03:04:05.000000Z", "2025-01-02 03:04:05", "2025-01-02T03:04:05+09:00"} {
		if parseTime(s).IsZero() {
			t.Errorf("parseTime(%q) is zero", s)
		}
	}
	if !parseTime("yesterday").IsZero() {
		t.Error("解釈できない値はゼロ値になるべき")
	}
}
