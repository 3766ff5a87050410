package apiclient

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/kojeffi/tbookers/internal/model"
)

// NewPost は投稿作成の入力。MediaPathsはローカルファイルパス。
type NewPost struct {
	Content    string
	MediaPaths []string
}

// Feed はフィードを取得する。重複排除は行わずサーバーの順序のまま返す。
func (c *Client) Feed(ctx context.Context) ([]model.Post, error) {
	body, err := c.get(ctx, "/feed", "GET /feed")
	if err != nil {
		return nil, err
	}
	items, err := decodeList(body, "posts", "feed")
	if err != nil {
		return nil, err
	}

	posts := make([]model.Post, 0, len(items))
	for _, raw := range items {
		var w wirePost
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, model.NewUnexpectedResponseError("feed entry is malformed")
		}
		posts = append(posts, w.toModel())
	}
	return posts, nil
}

// CreatePost は投稿を作成する。メディアはmedia[]として添付する。
func (c *Client) CreatePost(ctx context.Context, in NewPost) error {
	files := make([]formFile, 0, len(in.MediaPaths))
	for _, p := range in.MediaPaths {
		files = append(files, formFile{field: "media[]", path: p})
	}
	r, err := multipartRequest("/posts", "POST /posts", []formField{{"content", in.Content}}, files)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, r)
	return err
}

// Comment は投稿にコメントする。
func (c *Client) Comment(ctx context.Context, postID, content string) error {
	_, err := c.post(ctx, "/comment", "POST /comment", map[string]string{
		"post_id": postID,
		"content": content,
	})
	return err
}

// Comments は投稿のコメント一覧を取得する。
func (c *Client) Comments(ctx context.Context, postID string) ([]model.Comment, error) {
	body, err := c.get(ctx, "/posts/"+url.PathEscape(postID)+"/comments", "GET /posts/{id}/comments")
	if err != nil {
		return nil, err
	}
	items, err := decodeList(body, "comments")
	if err != nil {
		return nil, err
	}

	comments := make([]model.Comment, 0, len(items))
	for _, raw := range items {
		var w wireComment
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, model.NewUnexpectedResponseError("comment is malformed")
		}
		comments = append(comments, w.toModel())
	}
	return comments, nil
}

// Like は投稿に「いいね」する。
func (c *Client) Like(ctx context.Context, postID string) error {
	_, err := c.post(ctx, "/post/"+url.PathEscape(postID)+"/like", "POST /post/{id}/like", nil)
	return err
}

// Unlike は投稿の「いいね」を取り消す。
func (c *Client) Unlike(ctx context.Context, postID string) error {
	_, err := c.post(ctx, "/post/"+url.PathEscape(postID)+"/unlike", "POST /post/{id}/unlike", nil)
	return err
}

// Repost は投稿をリポストする。
func (c *Client) Repost(ctx context.Context, postID string) error {
	_, err := c.post(ctx, "/posts/"+url.PathEscape(postID)+"/repost", "POST /posts/{id}/repost", nil)
	return err
}

// DeletePost は投稿を削除する。
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	_, err := c.post(ctx, "/post/"+url.PathEscape(postID)+"/delete", "POST /post/{id}/delete", nil)
	return err
}

// Follow はユーザーをフォローする。
func (c *Client) Follow(ctx context.Context, userID string) error {
	_, err := c.post(ctx, "/users/"+url.PathEscape(userID)+"/follow", "POST /users/{id}/follow", nil)
	return err
}
