package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kojeffi/tbookers/internal/feed"
	"github.com/kojeffi/tbookers/internal/media"
	"github.com/kojeffi/tbookers/internal/middleware"
	"github.com/kojeffi/tbookers/internal/model"
)

// FeedModelInterface はフィードハンドラーが必要とするフィードモデルのインターフェース。
type FeedModelInterface interface {
	Load(ctx context.Context) error
	Snapshot() feed.State
	Like(ctx context.Context, postID string) error
	Unlike(ctx context.Context, postID string) error
	Repost(ctx context.Context, postID string) error
	Delete(ctx context.Context, postID string) error
	Follow(ctx context.Context, postID string) error
	Comment(ctx context.Context, postID, content string) error
	SubmitDraft(ctx context.Context, postID string) error
	ExpandComments(ctx context.Context, postID string) error
	CollapseComments(postID string)
	SetDraft(postID, text string)
	ToggleMenu(postID string)
}

// PostCreator は投稿作成のサービスインターフェース。
type PostCreator interface {
	Create(ctx context.Context, content string, mediaPaths []string) error
}

// FeedHandler はフィード操作のHTTPハンドラー。
// 変更系の操作は成功後のフィード状態を返す。
type FeedHandler struct {
	model   FeedModelInterface
	creator PostCreator
	present presenter
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(model FeedModelInterface, creator PostCreator, media MediaURLResolver) *FeedHandler {
	return &FeedHandler{
		model:   model,
		creator: creator,
		present: presenter{media: media},
	}
}

type createPostRequest struct {
	Content    string   `json:"content"`
	MediaPaths []string `json:"media_paths"`
}

type commentRequest struct {
	// nilの場合は保存済みの下書きを送信する
	Content *string `json:"content"`
}

type draftRequest struct {
	Text string `json:"text"`
}

type mediaPageResponse struct {
	Items   []mediaResponse `json:"items"`
	Page    int             `json:"page"`
	HasMore bool            `json:"has_more"`
}

func (h *FeedHandler) writeState(w http.ResponseWriter, status int) {
	writeJSON(w, status, h.present.feed(h.model.Snapshot()))
}

// GetFeed は現在のフィード状態を返す。未取得の場合は取得してから返す。
// GET /api/feed
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	st := h.model.Snapshot()
	if len(st.Posts) == 0 && !st.Loading {
		if err := h.model.Load(r.Context()); err != nil {
			middleware.WriteError(w, err)
			return
		}
	}
	h.writeState(w, http.StatusOK)
}

// Refresh はフィードを再取得する。
// POST /api/feed/refresh
func (h *FeedHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.model.Load(r.Context()); err != nil {
		middleware.WriteError(w, err)
		return
	}
	h.writeState(w, http.StatusOK)
}

// CreatePost は投稿を作成する。media_pathsはエージェントと同じマシン上のファイルパス。
// POST /api/posts
func (h *FeedHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.creator.Create(r.Context(), req.Content, req.MediaPaths); err != nil {
		middleware.WriteError(w, err)
		return
	}
	h.writeState(w, http.StatusCreated)
}

// postAction は投稿IDを取る変更系操作をハンドラーに変換する。
func (h *FeedHandler) postAction(fn func(ctx context.Context, postID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context(), chi.URLParam(r, "id")); err != nil {
			middleware.WriteError(w, err)
			return
		}
		h.writeState(w, http.StatusOK)
	}
}

// Like は投稿にいいねする。
// POST /api/posts/{id}/like
func (h *FeedHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.postAction(h.model.Like)(w, r)
}

// Unlike は投稿のいいねを取り消す。
// POST /api/posts/{id}/unlike
func (h *FeedHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.postAction(h.model.Unlike)(w, r)
}

// Repost は投稿をリポストする。処理中の重複リクエストは409になる。
// POST /api/posts/{id}/repost
func (h *FeedHandler) Repost(w http.ResponseWriter, r *http.Request) {
	h.postAction(h.model.Repost)(w, r)
}

// Delete は投稿を削除する。
// POST /api/posts/{id}/delete
func (h *FeedHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.postAction(h.model.Delete)(w, r)
}

// Follow は投稿者をフォローする。
// POST /api/posts/{id}/follow
func (h *FeedHandler) Follow(w http.ResponseWriter, r *http.Request) {
	h.postAction(h.model.Follow)(w, r)
}

// ExpandComments はコメント欄を開いてコメント一覧を取得する。
// GET /api/posts/{id}/comments
func (h *FeedHandler) ExpandComments(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	if err := h.model.ExpandComments(r.Context(), postID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	for _, v := range h.model.Snapshot().Posts {
		if v.Post.ID == postID {
			writeJSON(w, http.StatusOK, h.present.post(v))
			return
		}
	}
	middleware.WriteError(w, model.NewNotFoundError(""))
}

// CollapseComments はコメント欄を閉じる。
// DELETE /api/posts/{id}/comments
func (h *FeedHandler) CollapseComments(w http.ResponseWriter, r *http.Request) {
	h.model.CollapseComments(chi.URLParam(r, "id"))
	h.writeState(w, http.StatusOK)
}

// Comment はコメントを送信する。contentを省略した場合は下書きを送信する。
// POST /api/posts/{id}/comments
func (h *FeedHandler) Comment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	postID := chi.URLParam(r, "id")

	var err error
	if req.Content == nil {
		err = h.model.SubmitDraft(r.Context(), postID)
	} else {
		err = h.model.Comment(r.Context(), postID, *req.Content)
	}
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	h.writeState(w, http.StatusCreated)
}

// SetDraft はコメントの下書きを保存する。
// PUT /api/posts/{id}/draft
func (h *FeedHandler) SetDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.model.SetDraft(chi.URLParam(r, "id"), req.Text)
	w.WriteHeader(http.StatusNoContent)
}

// ToggleMenu は投稿のアクションメニューを開閉する。
// POST /api/posts/{id}/menu
func (h *FeedHandler) ToggleMenu(w http.ResponseWriter, r *http.Request) {
	h.model.ToggleMenu(chi.URLParam(r, "id"))
	h.writeState(w, http.StatusOK)
}

// MediaPage は投稿の添付メディアをページ単位で返す。
// GET /api/posts/{id}/media?page=0&size=4
func (h *FeedHandler) MediaPage(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 0)
	if err != nil || page < 0 {
		middleware.WriteBadRequest(w, "pageには0以上の整数を指定してください。")
		return
	}
	size, err := queryInt(r, "size", 4)
	if err != nil || size < 1 || size > 50 {
		middleware.WriteBadRequest(w, "sizeには1から50の整数を指定してください。")
		return
	}

	postID := chi.URLParam(r, "id")
	for _, v := range h.model.Snapshot().Posts {
		if v.Post.ID != postID {
			continue
		}
		items, hasMore := media.Page(v.Display.Media, page, size)
		writeJSON(w, http.StatusOK, mediaPageResponse{
			Items:   h.present.mediaList(items),
			Page:    page,
			HasMore: hasMore,
		})
		return
	}
	middleware.WriteError(w, model.NewNotFoundError(""))
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
