// Package auth はログイン・ユーザー登録・ログアウトのフローを提供する。
// サーバーが発行したクレデンシャルはセッションストアに保存する。
package auth

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/kojeffi/tbookers/internal/apiclient"
	"github.com/kojeffi/tbookers/internal/model"
)

// Authenticator はクレデンシャルを発行するサーバーAPI。
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, in apiclient.RegisterRequest) (string, error)
}

// SessionStore はクレデンシャルの保存と破棄を行うセッションストア。
type SessionStore interface {
	Save(ctx context.Context, credential string) error
	Logout(ctx context.Context) error
}

// Service は認証に関するフローを提供する。
type Service struct {
	api     Authenticator
	session SessionStore
	logger  *slog.Logger
}

// NewService はServiceを生成する。
func NewService(api Authenticator, session SessionStore, logger *slog.Logger) *Service {
	return &Service{
		api:     api,
		session: session,
		logger:  logger,
	}
}

// Login はメールアドレスとパスワードでログインし、クレデンシャルを保存する。
// どちらかが空の場合はリクエストを送信せずバリデーションエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.NewMissingLoginFieldsError()
	}

	token, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.logger.Warn("login failed",
			slog.String("category", string(model.Classify(err))),
		)
		return err
	}

	s.logger.Info("login succeeded")
	return s.session.Save(ctx, token)
}

// Register はユーザーを登録し、発行されたクレデンシャルを保存する。
func (s *Service) Register(ctx context.Context, in apiclient.RegisterRequest) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	if in.Name == "" {
		return model.NewValidationError("名前を入力してください。")
	}
	if in.Email == "" || in.Password == "" {
		return model.NewMissingLoginFieldsError()
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return model.NewValidationError("メールアドレスの形式が正しくありません。")
	}

	token, err := s.api.Register(ctx, in)
	if err != nil {
		s.logger.Warn("registration failed",
			slog.String("category", string(model.Classify(err))),
		)
		return err
	}

	s.logger.Info("registration succeeded")
	return s.session.Save(ctx, token)
}

// Logout はセッションを破棄する。ログアウト済みでも安全に呼び出せる。
func (s *Service) Logout(ctx context.Context) error {
	return s.session.Logout(ctx)
}
