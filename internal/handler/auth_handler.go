package handler

import (
	"context"
	"net/http"

	"github.com/kojeffi/tbookers/internal/apiclient"
	"github.com/kojeffi/tbookers/internal/middleware"
	"github.com/kojeffi/tbookers/internal/session"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, in apiclient.RegisterRequest) error
	Logout(ctx context.Context) error
}

// SessionReader はセッション状態の参照に必要なインターフェース。
type SessionReader interface {
	LoggedIn() bool
	Snapshot() session.Snapshot
}

// AuthHandler はセッション管理のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	session SessionReader
	present presenter
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, session SessionReader, media MediaURLResolver) *AuthHandler {
	return &AuthHandler{
		service: service,
		session: session,
		present: presenter{media: media},
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Kind     string `json:"type"`
}

// Session は現在のセッション状態を返す。
// GET /api/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.present.session(h.session.Snapshot()))
}

// Login はログインしてセッション状態を返す。
// POST /api/session/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.service.Login(r.Context(), req.Email, req.Password); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.session(h.session.Snapshot()))
}

// Register はアカウントを作成してログインする。
// POST /api/session/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.service.Register(r.Context(), apiclient.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Kind:     req.Kind,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present.session(h.session.Snapshot()))
}

// Logout はログアウトする。未ログインでも成功する。
// POST /api/session/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
