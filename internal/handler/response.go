package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kojeffi/tbookers/internal/feed"
	"github.com/kojeffi/tbookers/internal/middleware"
	"github.com/kojeffi/tbookers/internal/model"
	"github.com/kojeffi/tbookers/internal/session"
)

// MediaURLResolver はメディア参照を表示用の絶対URLに変換する。
type MediaURLResolver interface {
	Ref(ref model.MediaRef) string
}

// maxBodyBytes はJSONリクエストボディの上限。
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをデコードする。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: model.CategoryValidation,
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return false
	}
	return true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// errorResponse はスナップショットに含める直近のエラー。
type errorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action,omitempty"`
}

func toErrorResponse(err error) *errorResponse {
	apiErr := model.AsAPIError(err)
	if apiErr == nil {
		return nil
	}
	return &errorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: string(apiErr.Category),
		Action:   apiErr.Action,
	}
}

type authorResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PictureURL string `json:"picture_url,omitempty"`
	Kind       string `json:"kind,omitempty"`
}

type mediaResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

type commentResponse struct {
	ID        string         `json:"id"`
	Author    authorResponse `json:"author"`
	Content   string         `json:"content"`
	CreatedAt string         `json:"created_at,omitempty"`
}

type postResponse struct {
	ID               string            `json:"id"`
	EffectiveID      string            `json:"effective_id"`
	Author           authorResponse    `json:"author"`
	Reposter         *authorResponse   `json:"reposter,omitempty"`
	Body             string            `json:"body"`
	Media            []mediaResponse   `json:"media"`
	CreatedAt        string            `json:"created_at,omitempty"`
	LikeCount        int               `json:"like_count"`
	ViewerHasLiked   bool              `json:"viewer_has_liked"`
	CommentCount     int               `json:"comment_count"`
	RepostCount      int               `json:"repost_count"`
	MenuOpen         bool              `json:"menu_open"`
	CommentsExpanded bool              `json:"comments_expanded"`
	Comments         []commentResponse `json:"comments,omitempty"`
	Draft            string            `json:"draft,omitempty"`
	Reposting        bool              `json:"reposting"`
}

type feedResponse struct {
	Posts     []postResponse `json:"posts"`
	Loading   bool           `json:"loading"`
	LastError *errorResponse `json:"last_error,omitempty"`
}

type profileResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	PictureURL     string `json:"picture_url,omitempty"`
	Kind           string `json:"kind,omitempty"`
	Bio            string `json:"bio,omitempty"`
	FollowersCount int    `json:"followers_count"`
	FollowingCount int    `json:"following_count"`
	PostsCount     int    `json:"posts_count"`
}

// sessionResponse はセッション状態のレスポンス。クレデンシャルは含めない。
type sessionResponse struct {
	LoggedIn          bool             `json:"logged_in"`
	Profile           *profileResponse `json:"profile,omitempty"`
	IsLoading         bool             `json:"is_loading"`
	NotificationCount int              `json:"notification_count"`
	LastError         *errorResponse   `json:"last_error,omitempty"`
}

type presenter struct {
	media MediaURLResolver
}

func (p presenter) pictureURL(path string) string {
	if path == "" {
		return ""
	}
	return p.media.Ref(model.MediaRef{Path: path, Kind: model.MediaKindImage})
}

func (p presenter) author(a model.AuthorSummary) authorResponse {
	return authorResponse{
		ID:         a.ID,
		Name:       a.Name,
		PictureURL: p.pictureURL(a.Picture),
		Kind:       a.Kind,
	}
}

func (p presenter) mediaList(refs []model.MediaRef) []mediaResponse {
	out := make([]mediaResponse, 0, len(refs))
	for _, ref := range refs {
		out = append(out, mediaResponse{
			Path: ref.Path,
			URL:  p.media.Ref(ref),
			Kind: string(ref.Kind),
		})
	}
	return out
}

func (p presenter) comments(cs []model.Comment) []commentResponse {
	if len(cs) == 0 {
		return nil
	}
	out := make([]commentResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, commentResponse{
			ID:        c.ID,
			Author:    p.author(c.Author),
			Content:   c.Content,
			CreatedAt: formatTime(c.CreatedAt),
		})
	}
	return out
}

func (p presenter) post(v feed.PostView) postResponse {
	d := v.Display
	resp := postResponse{
		ID:               v.Post.ID,
		EffectiveID:      v.Post.EffectiveID(),
		Author:           p.author(d.Author),
		Body:             d.Body,
		Media:            p.mediaList(d.Media),
		CreatedAt:        formatTime(d.CreatedAt),
		LikeCount:        d.LikeCount,
		ViewerHasLiked:   d.ViewerHasLiked,
		CommentCount:     d.CommentCount,
		RepostCount:      d.RepostCount,
		MenuOpen:         v.MenuOpen,
		CommentsExpanded: v.CommentsExpanded,
		Comments:         p.comments(v.Comments),
		Draft:            v.Draft,
		Reposting:        v.Reposting,
	}
	if d.Reposter != nil {
		r := p.author(*d.Reposter)
		resp.Reposter = &r
	}
	return resp
}

func (p presenter) feed(st feed.State) feedResponse {
	posts := make([]postResponse, 0, len(st.Posts))
	for _, v := range st.Posts {
		posts = append(posts, p.post(v))
	}
	return feedResponse{
		Posts:     posts,
		Loading:   st.Loading,
		LastError: toErrorResponse(st.LastError),
	}
}

func (p presenter) session(s session.Snapshot) sessionResponse {
	resp := sessionResponse{
		LoggedIn:          s.LoggedIn,
		IsLoading:         s.IsLoading,
		NotificationCount: s.NotificationCount,
		LastError:         toErrorResponse(s.LastError),
	}
	if s.Profile != nil {
		resp.Profile = &profileResponse{
			ID:             s.Profile.ID,
			Name:           s.Profile.Name,
			Email:          s.Profile.Email,
			PictureURL:     p.pictureURL(s.Profile.Picture),
			Kind:           s.Profile.Kind,
			Bio:            s.Profile.Bio,
			FollowersCount: s.Profile.FollowersCount,
			FollowingCount: s.Profile.FollowingCount,
			PostsCount:     s.Profile.PostsCount,
		}
	}
	return resp
}
