// Package app はアプリケーションの依存関係の組み立てと起動を提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/kojeffi/tbookers/internal/apiclient"
	"github.com/kojeffi/tbookers/internal/auth"
	"github.com/kojeffi/tbookers/internal/catalog"
	"github.com/kojeffi/tbookers/internal/compose"
	"github.com/kojeffi/tbookers/internal/config"
	"github.com/kojeffi/tbookers/internal/credential"
	"github.com/kojeffi/tbookers/internal/feed"
	"github.com/kojeffi/tbookers/internal/handler"
	"github.com/kojeffi/tbookers/internal/logger"
	"github.com/kojeffi/tbookers/internal/media"
	"github.com/kojeffi/tbookers/internal/metrics"
	"github.com/kojeffi/tbookers/internal/middleware"
	"github.com/kojeffi/tbookers/internal/model"
	"github.com/kojeffi/tbookers/internal/security"
	"github.com/kojeffi/tbookers/internal/session"
	"github.com/kojeffi/tbookers/internal/user"
	"github.com/kojeffi/tbookers/internal/worker/cleanup"
	"github.com/kojeffi/tbookers/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// 環境変数（およびTOMLファイル）からConfigを読み込み、JSON構造化ログをセットアップする。
// wはログの出力先。nilの場合は標準エラー出力を使う。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		logger.SetupDefault(w, "info")
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logger.SetupDefault(w, cfg.LogLevel), nil
}

// App はクライアントコアの全コンポーネントを保持する。
// 画面・CLI・エージェントはすべてこの構造体を通してセッションとフィードを共有する。
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry

	Credentials credential.Store
	Client      *apiclient.Client
	Session     *session.Store
	Feed        *feed.Model
	Auth        *auth.Service
	Catalog     *catalog.Service
	Users       *user.Service
	Compose     *compose.Service
	Resolver    *media.Resolver
	Media       *media.Downloader
}

// New は設定に従って全依存関係をワイヤリングしたAppを返す。
// 永続化済みクレデンシャルの読み込みは行わない（LoadSessionで行う）。
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(registry)

	// 2. クレデンシャルの永続化先
	store, err := credential.NewStoreFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	// 3. セキュリティサービス
	sanitizer := security.NewContentSanitizer()
	ssrfGuard := security.NewSSRFGuard(cfg.StorageBaseURL)

	resolver, err := media.NewResolver(cfg.StorageBaseURL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("invalid storage base URL: %w", err)
	}

	// 4. APIクライアントとセッションストア
	// セッションストアはクレデンシャルを明示的に渡してプロフィールを取得し、
	// それ以外のAPIはセッションストアから現在のクレデンシャルを読む。
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	base := apiclient.NewClient(
		&http.Client{Timeout: cfg.RequestTimeout},
		cfg.APIBaseURL, limiter, collector, log,
	)
	sess := session.NewStore(store, base, collector, log)
	client := base.WithCredentials(sess)

	// 5. ドメインサービス
	feedModel := feed.NewModel(client, sanitizer, collector, log)

	return &App{
		Config:      cfg,
		Logger:      log,
		Registry:    registry,
		Credentials: store,
		Client:      client,
		Session:     sess,
		Feed:        feedModel,
		Auth:        auth.NewService(client, sess, log),
		Catalog:     catalog.NewService(client, sess, sanitizer, log),
		Users:       user.NewService(client, sess, log),
		Compose:     compose.NewService(client, feedModel, sess, log),
		Resolver:    resolver,
		Media:       media.NewDownloader(ssrfGuard.NewSafeClient(cfg.RequestTimeout), ssrfGuard, resolver, cfg.MediaMaxSize, log),
	}, nil
}

// LoadSession は永続化済みのクレデンシャルを読み込む。
// 期限切れや失効による強制ログアウトは匿名状態として、通信エラーはlastErrorとして続行する。
func (a *App) LoadSession(ctx context.Context) error {
	err := a.Session.Load(ctx)
	switch model.Classify(err) {
	case "", model.CategoryAuth, model.CategoryTransport:
		return nil
	}
	return err
}

// Close は全コンポーネントを破棄する。実行中のリクエストはキャンセルされる。
func (a *App) Close() {
	a.Feed.Close()
	a.Session.Close()
	if err := a.Credentials.Close(); err != nil {
		a.Logger.Warn("failed to close credential store", slog.String("error", err.Error()))
	}
}

// Handler はエージェントAPIのhttp.Handlerを構成する。
func (a *App) Handler(token *middleware.CSRFToken) http.Handler {
	return handler.NewRouter(&handler.RouterDeps{
		Logger:            a.Logger,
		CORSAllowedOrigin: a.Config.AgentAllowedOrigin,
		CSRFToken:         token,
		RateLimiter:       middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), a.Logger),
		Gatherer:          a.Registry,

		Session:     a.Session,
		AuthService: a.Auth,

		Feed:        a.Feed,
		PostCreator: a.Compose,

		CatalogService: a.Catalog,
		UserService:    a.Users,

		MediaResolver: a.Resolver,
		MediaFetcher:  a.Media,
	})
}

// Serve はエージェントAPIと定期ジョブを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
// readyにはリッスンを開始したアドレスが1回だけ送られる（nil可）。
func (a *App) Serve(ctx context.Context, ready chan<- string) error {
	if err := a.LoadSession(ctx); err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	token, err := middleware.NewCSRFToken()
	if err != nil {
		return fmt.Errorf("failed to generate CSRF token: %w", err)
	}

	server := &http.Server{
		Addr:         a.Config.AgentAddr,
		Handler:      a.Handler(token),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: a.Config.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
	}

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	refresher := refresh.NewRefresher(a.Feed, a.Catalog, a.Session, a.Logger, a.Config.RefreshInterval)
	go refresher.Start(workerCtx)

	cleanupJob := cleanup.NewCleanupJob(a.Session, a.Logger)
	go cleanupJob.Start(workerCtx)

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("agent server starting", slog.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("agent server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down agent server...")
	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.Logger.Info("agent server stopped gracefully")
	return nil
}
