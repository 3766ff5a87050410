// Package handler はローカルの画面が利用するエージェントAPIを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kojeffi/tbookers/internal/metrics"
	"github.com/kojeffi/tbookers/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	CSRFToken         *middleware.CSRFToken
	RateLimiter       *middleware.RateLimiter
	Gatherer          prometheus.Gatherer

	// セッション
	Session     SessionReader
	AuthService AuthServiceInterface

	// フィード
	Feed        FeedModelInterface
	PostCreator PostCreator

	// カタログ
	CatalogService CatalogServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// メディア
	MediaResolver MediaURLResolver
	MediaFetcher  MediaFetcher
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → Logging → SecurityHeaders → CORS → CSRF → RateLimit(General)
//
// ログイン中のみ有効なルートにはさらにSessionMiddlewareを適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Session, deps.MediaResolver)
	feedHandler := NewFeedHandler(deps.Feed, deps.PostCreator, deps.MediaResolver)
	catalogHandler := NewCatalogHandler(deps.CatalogService, deps.MediaResolver)
	userHandler := NewUserHandler(deps.UserService, deps.Session, deps.MediaResolver)
	mediaHandler := NewMediaHandler(deps.MediaFetcher, deps.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFToken, deps.Logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// --- 認証不要のルート ---
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFToken))
		r.Route("/session", func(r chi.Router) {
			r.Get("/", authHandler.Session)
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
			r.Post("/logout", authHandler.Logout)
		})

		// --- ログインが必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.Session))

			r.Get("/feed", feedHandler.GetFeed)
			r.Post("/feed/refresh", feedHandler.Refresh)

			r.Route("/posts", func(r chi.Router) {
				r.With(deps.RateLimiter.PostingMiddleware()).Post("/", feedHandler.CreatePost)

				r.Route("/{id}", func(r chi.Router) {
					r.Post("/like", feedHandler.Like)
					r.Post("/unlike", feedHandler.Unlike)
					r.Post("/repost", feedHandler.Repost)
					r.Post("/delete", feedHandler.Delete)
					r.Post("/follow", feedHandler.Follow)
					r.Get("/comments", feedHandler.ExpandComments)
					r.With(deps.RateLimiter.PostingMiddleware()).Post("/comments", feedHandler.Comment)
					r.Delete("/comments", feedHandler.CollapseComments)
					r.Put("/draft", feedHandler.SetDraft)
					r.Post("/menu", feedHandler.ToggleMenu)
					r.Get("/media", feedHandler.MediaPage)
				})
			})

			r.Get("/groups", catalogHandler.Groups)
			r.Post("/groups/{slug}/join", catalogHandler.JoinGroup)
			r.Get("/live-classes", catalogHandler.LiveClasses)
			r.Post("/live-classes/{id}/register", catalogHandler.RegisterLiveClass)
			r.Get("/learning-resources", catalogHandler.LearningResources)
			r.Get("/notifications", catalogHandler.Notifications)

			r.Post("/profile", userHandler.UpdateProfile)
			r.Get("/media", mediaHandler.Get)
		})
	})

	return r
}
