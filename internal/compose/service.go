// Package compose は新規投稿の作成を提供する。
package compose

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/kojeffi/tbookers/internal/apiclient"
	"github.com/kojeffi/tbookers/internal/model"
)

// maxAttachments は1投稿に添付できるファイル数の上限。
const maxAttachments = 10

// Poster は投稿作成のサーバーAPI。
type Poster interface {
	CreatePost(ctx context.Context, in apiclient.NewPost) error
}

// FeedReloader は投稿後にフィードを再取得する。
type FeedReloader interface {
	Load(ctx context.Context) error
}

// LoginChecker はログイン状態を返す。
type LoginChecker interface {
	LoggedIn() bool
}

// Service は投稿作成のサービス層。
type Service struct {
	api     Poster
	feed    FeedReloader
	session LoginChecker
	logger  *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。feedはnilでもよい。
func NewService(api Poster, feed FeedReloader, session LoginChecker, logger *slog.Logger) *Service {
	return &Service{
		api:     api,
		feed:    feed,
		session: session,
		logger:  logger,
	}
}

// Create は投稿を作成し、成功後にフィードを再取得する。
// 本文が空白のみで添付もない場合、または添付ファイルが存在しない場合はリクエストを送信しない。
func (s *Service) Create(ctx context.Context, content string, mediaPaths []string) error {
	if !s.session.LoggedIn() {
		return model.NewNotLoggedInError()
	}

	paths := make([]string, 0, len(mediaPaths))
	for _, p := range mediaPaths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if strings.TrimSpace(content) == "" && len(paths) == 0 {
		return model.NewEmptyPostError()
	}
	if len(paths) > maxAttachments {
		return model.NewValidationError("添付できるファイルは10件までです。")
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			return model.NewValidationError("添付ファイルが見つかりません: " + p)
		}
	}

	if err := s.api.CreatePost(ctx, apiclient.NewPost{Content: content, MediaPaths: paths}); err != nil {
		s.logger.Warn("投稿の作成に失敗しました",
			slog.String("category", string(model.Classify(err))),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.logger.Info("投稿を作成しました", slog.Int("attachments", len(paths)))
	if s.feed == nil {
		return nil
	}
	return s.feed.Load(ctx)
}
