// Package user はログイン中ユーザーのプロフィール編集を提供する。
package user

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/kojeffi/tbookers/internal/model"
)

// ProfileUpdater はプロフィール更新のサーバーAPI。
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, in model.ProfileUpdate) error
}

// ProfileReloader は更新後のプロフィールを再取得するセッションストア。
type ProfileReloader interface {
	LoggedIn() bool
	FetchProfile(ctx context.Context) error
}

// Service はプロフィール編集のサービス層。
type Service struct {
	api     ProfileUpdater
	session ProfileReloader
	logger  *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(api ProfileUpdater, session ProfileReloader, logger *slog.Logger) *Service {
	return &Service{
		api:     api,
		session: session,
		logger:  logger,
	}
}

// UpdateProfile はプロフィールを更新し、成功後にセッションのプロフィールを再取得する。
// 未ログイン、空の名前、存在しない画像ファイルの場合はリクエストを送信しない。
func (s *Service) UpdateProfile(ctx context.Context, in model.ProfileUpdate) error {
	if !s.session.LoggedIn() {
		return model.NewNotLoggedInError()
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return model.NewValidationError("名前を入力してください。")
	}
	if in.Name == nil && in.Bio == nil && in.Kind == nil && in.PicturePath == "" {
		return model.NewValidationError("変更する項目がありません。")
	}
	if in.PicturePath != "" {
		if _, err := os.Stat(in.PicturePath); err != nil {
			return model.NewValidationError("プロフィール画像が見つかりません。")
		}
		if model.InferMediaKind(in.PicturePath) != model.MediaKindImage {
			return model.NewValidationError("プロフィール画像には画像ファイルを指定してください。")
		}
	}

	if err := s.api.UpdateProfile(ctx, in); err != nil {
		s.logger.Warn("profile update failed",
			slog.String("category", string(model.Classify(err))),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.logger.Info("profile updated")
	return s.session.FetchProfile(ctx)
}
