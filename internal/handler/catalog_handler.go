package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kojeffi/tbookers/internal/middleware"
	"github.com/kojeffi/tbookers/internal/model"
)

// CatalogServiceInterface はグループ・ライブ授業・教材・通知のサービスインターフェース。
type CatalogServiceInterface interface {
	Groups(ctx context.Context) ([]model.Group, error)
	JoinGroup(ctx context.Context, slug string) error
	LiveClasses(ctx context.Context) ([]model.LiveClass, error)
	RegisterLiveClass(ctx context.Context, id string) error
	LearningResources(ctx context.Context) ([]model.LearningResource, error)
	Notifications(ctx context.Context) ([]model.Notification, error)
}

// CatalogHandler はカタログ系一覧のHTTPハンドラー。
type CatalogHandler struct {
	service CatalogServiceInterface
	present presenter
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface, media MediaURLResolver) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		present: presenter{media: media},
	}
}

type groupResponse struct {
	ID           string `json:"id"`
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	MembersCount int    `json:"members_count"`
	IsMember     bool   `json:"is_member"`
}

type liveClassResponse struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Instructor   authorResponse `json:"instructor"`
	StartsAt     string         `json:"starts_at,omitempty"`
	Capacity     int            `json:"capacity"`
	IsRegistered bool           `json:"is_registered"`
}

type resourceResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Price       float64        `json:"price"`
	Currency    string         `json:"currency,omitempty"`
	Author      authorResponse `json:"author"`
	File        *mediaResponse `json:"file,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty"`
}

type notificationResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at,omitempty"`
}

type notificationListResponse struct {
	Notifications []notificationResponse `json:"notifications"`
	Unread        int                    `json:"unread"`
}

// Groups はグループ一覧を返す。
// GET /api/groups
func (h *CatalogHandler) Groups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.Groups(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupResponse{
			ID:           g.ID,
			Slug:         g.Slug,
			Name:         g.Name,
			Description:  g.Description,
			MembersCount: g.MembersCount,
			IsMember:     g.IsMember,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": out})
}

// JoinGroup はグループに参加する。
// POST /api/groups/{slug}/join
func (h *CatalogHandler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.service.JoinGroup(r.Context(), chi.URLParam(r, "slug")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LiveClasses はライブ授業一覧を返す。
// GET /api/live-classes
func (h *CatalogHandler) LiveClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.service.LiveClasses(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	out := make([]liveClassResponse, 0, len(classes))
	for _, c := range classes {
		resp := liveClassResponse{
			ID:           c.ID,
			Title:        c.Title,
			Description:  c.Description,
			Instructor:   h.present.author(c.Instructor),
			Capacity:     c.Capacity,
			IsRegistered: c.IsRegistered,
		}
		if c.StartsAt != nil {
			resp.StartsAt = c.StartsAt.UTC().Format(time.RFC3339)
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"live_classes": out})
}

// RegisterLiveClass はライブ授業に参加登録する。
// POST /api/live-classes/{id}/register
func (h *CatalogHandler) RegisterLiveClass(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RegisterLiveClass(r.Context(), chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LearningResources は教材一覧を返す。
// GET /api/learning-resources
func (h *CatalogHandler) LearningResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.service.LearningResources(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	out := make([]resourceResponse, 0, len(resources))
	for _, lr := range resources {
		resp := resourceResponse{
			ID:          lr.ID,
			Title:       lr.Title,
			Description: lr.Description,
			Price:       lr.Price,
			Currency:    lr.Currency,
			Author:      h.present.author(lr.Author),
			CreatedAt:   formatTime(lr.CreatedAt),
		}
		if lr.File != nil {
			f := h.present.mediaList([]model.MediaRef{*lr.File})[0]
			resp.File = &f
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"learning_resources": out})
}

// Notifications は通知一覧を返す。取得と同時にセッションの未読数も更新される。
// GET /api/notifications
func (h *CatalogHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	ns, err := h.service.Notifications(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	out := make([]notificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, notificationResponse{
			ID:        n.ID,
			Kind:      n.Kind,
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: formatTime(n.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, notificationListResponse{
		Notifications: out,
		Unread:        model.CountUnread(ns),
	})
}
