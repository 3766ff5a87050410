// Package model はドメインモデルを定義する。
package model

import (
	"path"
	"strings"
	"time"
)

// AuthorSummary は投稿・コメントの作成者の表示用サマリー。
type AuthorSummary struct {
	ID      string
	Name    string
	Picture string // ストレージ相対パスまたは絶対URL
	Kind    string // プロフィール種別（student, teacher, institution 等）
}

// MediaKind はメディア参照の種別を表す。
type MediaKind string

const (
	// MediaKindImage は画像メディア。
	MediaKindImage MediaKind = "image"
	// MediaKindVideo は動画メディア。
	MediaKindVideo MediaKind = "video"
	// MediaKindDocument は画像・動画以外のファイル。
	MediaKindDocument MediaKind = "document"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true, ".heic": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".webm": true, ".mkv": true, ".avi": true, ".3gp": true,
}

// InferMediaKind はファイルパスの拡張子からメディア種別を推定する。
// クエリ文字列は無視する。判定できない場合はドキュメントとして扱う。
func InferMediaKind(p string) MediaKind {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := strings.ToLower(path.Ext(p))
	switch {
	case imageExts[ext]:
		return MediaKindImage
	case videoExts[ext]:
		return MediaKindVideo
	default:
		return MediaKindDocument
	}
}

// MediaRef は投稿に添付されたメディアへの参照。
type MediaRef struct {
	Path string
	Kind MediaKind
}

// NewMediaRefs はパス列から順序を保ったままMediaRef列を生成する。空のパスは除外する。
func NewMediaRefs(paths []string) []MediaRef {
	refs := make([]MediaRef, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		refs = append(refs, MediaRef{Path: p, Kind: InferMediaKind(p)})
	}
	return refs
}

// Comment は投稿へのコメントを表す。
type Comment struct {
	ID        string
	Author    AuthorSummary
	Content   string
	CreatedAt time.Time
}

// Post はフィードに表示される投稿を表す。
// リポストの場合はRepostOfに元投稿、Reposterにリポストしたユーザーを保持する。
// サーバーの応答形式の違いは取り込み時に正規化され、以降の処理は形を分岐しない。
type Post struct {
	ID             string
	Author         AuthorSummary
	Body           string
	Media          []MediaRef
	CreatedAt      time.Time
	LikeCount      int
	ViewerHasLiked bool
	CommentCount   int
	RepostCount    int
	Comments       []Comment // 展開時に遅延取得される
	RepostOf       *Post
	Reposter       *AuthorSummary
}

// IsRepost は投稿がリポストかどうかを返す。
func (p *Post) IsRepost() bool {
	return p.RepostOf != nil
}

// EffectiveID は重複排除に使う同一性キーを返す。
// リポストの場合は元投稿のID、それ以外は自身のID。
func (p *Post) EffectiveID() string {
	if p.RepostOf != nil && p.RepostOf.ID != "" {
		return p.RepostOf.ID
	}
	return p.ID
}

// Display は表示用の投稿を返す。
// カウンタといいね状態は元投稿の値をそのまま使う（いいね操作の対象が元投稿のため）。
// 作成者・本文・メディア・日時・コメントは元投稿側が空の場合のみ自身の値で補う。
// IDとリポスト情報は自身のものを保持する（操作対象は表示中のエントリ）。
func (p *Post) Display() Post {
	if p.RepostOf == nil {
		d := *p
		return d
	}
	o := p.RepostOf
	d := Post{
		ID:             p.ID,
		Author:         o.Author,
		Body:           firstNonEmpty(o.Body, p.Body),
		Media:          o.Media,
		CreatedAt:      o.CreatedAt,
		LikeCount:      o.LikeCount,
		ViewerHasLiked: o.ViewerHasLiked,
		CommentCount:   o.CommentCount,
		RepostCount:    o.RepostCount,
		Comments:       o.Comments,
		RepostOf:       o,
		Reposter:       p.Reposter,
	}
	if d.Author.Name == "" {
		d.Author = p.Author
	}
	if len(d.Media) == 0 {
		d.Media = p.Media
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = p.CreatedAt
	}
	if len(d.Comments) == 0 {
		d.Comments = p.Comments
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
