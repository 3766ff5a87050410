package handler

import (
	"context"
	"net/http"

	"github.com/kojeffi/tbookers/internal/middleware"
	"github.com/kojeffi/tbookers/internal/model"
)

// UserServiceInterface はプロフィール編集のサービスインターフェース。
type UserServiceInterface interface {
	UpdateProfile(ctx context.Context, in model.ProfileUpdate) error
}

// UserHandler はプロフィール編集のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	session SessionReader
	present presenter
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, session SessionReader, media MediaURLResolver) *UserHandler {
	return &UserHandler{
		service: service,
		session: session,
		present: presenter{media: media},
	}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
// 省略したフィールドは変更しない。
type updateProfileRequest struct {
	Name        *string `json:"name"`
	Bio         *string `json:"bio"`
	Kind        *string `json:"type"`
	PicturePath string  `json:"picture_path"`
}

// UpdateProfile はプロフィールを更新し、再取得後のセッション状態を返す。
// POST /api/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.service.UpdateProfile(r.Context(), model.ProfileUpdate{
		Name:        req.Name,
		Bio:         req.Bio,
		Kind:        req.Kind,
		PicturePath: req.PicturePath,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.session(h.session.Snapshot()))
}
