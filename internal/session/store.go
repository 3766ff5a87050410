// Package session は認証クレデンシャルとプロフィールを保持するセッションストアを提供する。
// ストアはプロセス内で唯一の更新者であり、利用側は読み取りのみを行う。
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kojeffi/tbookers/internal/credential"
	"github.com/kojeffi/tbookers/internal/metrics"
	"github.com/kojeffi/tbookers/internal/model"
)

// ProfileFetcher は指定したクレデンシャルでプロフィールを取得する。
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, credential string) (*model.Profile, error)
}

// Snapshot はある時点のセッション状態の複製。クレデンシャル本体は含まない。
type Snapshot struct {
	LoggedIn          bool
	Profile           *model.Profile
	IsLoading         bool
	LastError         error
	NotificationCount int
}

// Store はセッションストア。
// profileが設定されている間は必ずcredentialも設定されている。
type Store struct {
	persist credential.Store
	fetcher ProfileFetcher
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time

	life   context.Context
	cancel context.CancelFunc

	mu                sync.RWMutex
	credential        string
	profile           *model.Profile
	isLoading         bool
	lastError         error
	notificationCount int
}

// NewStore はStoreを生成する。生成直後は匿名状態で、Loadで永続化済みの状態を読み込む。
func NewStore(persist credential.Store, fetcher ProfileFetcher, recorder metrics.Recorder, logger *slog.Logger) *Store {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	life, cancel := context.WithCancel(context.Background())
	return &Store{
		persist: persist,
		fetcher: fetcher,
		metrics: recorder,
		logger:  logger,
		now:     time.Now,
		life:    life,
		cancel:  cancel,
	}
}

// bind はctxをストアの寿命に結び付けたコンテキストを返す。
func (s *Store) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Store) closed() bool {
	return s.life.Err() != nil
}

// Load は永続化済みのクレデンシャルを読み込む。
// 存在しない場合は匿名状態のまま返る。存在する場合はプロフィールを取得する。
// 期限切れのJWTはサーバーに問い合わせずに強制ログアウトする。
func (s *Store) Load(ctx context.Context) error {
	if s.closed() {
		return model.NewScreenClosedError()
	}
	ctx, done := s.bind(ctx)
	defer done()

	s.mu.Lock()
	s.isLoading = true
	s.mu.Unlock()

	stored, err := s.persist.Load(ctx)
	if errors.Is(err, credential.ErrUnreadable) {
		// 復号できないクレデンシャルは回復できないため破棄して匿名状態で続行する
		s.logger.Warn("discarding unreadable persisted credential",
			slog.String("error", err.Error()),
		)
		if err := s.persist.Delete(ctx); err != nil {
			s.logger.Error("failed to delete persisted credential",
				slog.String("error", err.Error()),
			)
		}
		s.mu.Lock()
		s.isLoading = false
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.logger.Error("failed to load persisted credential",
			slog.String("error", err.Error()),
		)
		s.mu.Lock()
		s.isLoading = false
		s.lastError = err
		s.mu.Unlock()
		return err
	}

	if stored == "" {
		s.mu.Lock()
		s.isLoading = false
		s.mu.Unlock()
		s.logger.Info("no persisted credential, starting anonymous")
		return nil
	}

	if credential.Expired(stored, s.now()) {
		authErr := &model.AuthError{Message: "credential expired"}
		s.forceLogout(ctx, authErr)
		return authErr
	}

	s.mu.Lock()
	s.credential = stored
	s.mu.Unlock()

	return s.FetchProfile(ctx)
}

// FetchProfile は現在のクレデンシャルでプロフィールを取得する。
// AuthErrorの場合のみ強制ログアウトする。通信エラーではクレデンシャルを保持し、
// lastErrorに記録して再試行可能なエラーを返す。
func (s *Store) FetchProfile(ctx context.Context) error {
	if s.closed() {
		return model.NewScreenClosedError()
	}
	ctx, done := s.bind(ctx)
	defer done()

	s.mu.Lock()
	cred := s.credential
	if cred == "" {
		s.isLoading = false
		s.mu.Unlock()
		return model.NewNotLoggedInError()
	}
	s.isLoading = true
	s.mu.Unlock()

	profile, err := s.fetcher.FetchProfile(ctx, cred)

	if s.closed() {
		return model.NewScreenClosedError()
	}

	s.mu.Lock()
	// 取得中にログアウトまたは別のクレデンシャルが保存された場合は結果を捨てる
	if s.credential != cred {
		s.mu.Unlock()
		return nil
	}

	if err == nil {
		s.profile = profile
		s.notificationCount = profile.NotificationCount
		s.lastError = nil
		s.isLoading = false
		s.mu.Unlock()
		s.logger.Info("profile loaded", slog.String("user_id", profile.ID))
		return nil
	}

	if model.IsAuthError(err) {
		s.mu.Unlock()
		s.forceLogout(ctx, err)
		return err
	}

	s.lastError = err
	s.isLoading = false
	s.mu.Unlock()
	s.logger.Warn("profile fetch failed, keeping session",
		slog.String("category", string(model.Classify(err))),
		slog.String("error", err.Error()),
	)
	return err
}

// Save はクレデンシャルを永続化してからプロフィールを取得する。
// ログイン・登録成功後に使う。
func (s *Store) Save(ctx context.Context, cred string) error {
	if s.closed() {
		return model.NewScreenClosedError()
	}
	if cred == "" {
		return model.NewValidationError("クレデンシャルが空です。")
	}

	if err := s.persist.Save(ctx, cred); err != nil {
		s.logger.Error("failed to persist credential",
			slog.String("error", err.Error()),
		)
		return err
	}

	s.mu.Lock()
	s.credential = cred
	s.profile = nil
	s.lastError = nil
	s.mu.Unlock()

	return s.FetchProfile(ctx)
}

// Logout は永続化済みのクレデンシャルを削除し、メモリ上の状態を初期化する。
// すでにログアウト済みでも安全に呼び出せる。
// 永続化先の削除に失敗してもメモリ上の状態は必ず初期化する。
func (s *Store) Logout(ctx context.Context) error {
	err := s.persist.Delete(ctx)
	if err != nil {
		s.logger.Error("failed to delete persisted credential",
			slog.String("error", err.Error()),
		)
	}

	s.mu.Lock()
	wasLoggedIn := s.credential != ""
	s.clearLocked()
	s.mu.Unlock()

	if wasLoggedIn {
		s.logger.Info("logged out")
	}
	return err
}

func (s *Store) forceLogout(ctx context.Context, cause error) {
	s.metrics.RecordForcedLogout()
	s.logger.Warn("forced logout",
		slog.String("error", cause.Error()),
	)
	if err := s.persist.Delete(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("failed to delete persisted credential",
			slog.String("error", err.Error()),
		)
	}

	s.mu.Lock()
	s.clearLocked()
	s.lastError = cause
	s.mu.Unlock()
}

func (s *Store) clearLocked() {
	s.credential = ""
	s.profile = nil
	s.notificationCount = 0
	s.isLoading = false
	s.lastError = nil
}

// HandleAuthError はAPIがcredentialに対して認証エラーを返した場合に強制ログアウトする。
// apiclient.AuthFailureHandlerを満たす。credentialが現在保持しているものと異なる場合
// （すでにログアウト済み、または再ログイン済み）は何もしない。
func (s *Store) HandleAuthError(ctx context.Context, cred string, err error) {
	if cred == "" || !model.IsAuthError(err) {
		return
	}
	s.mu.Lock()
	if s.credential != cred {
		s.mu.Unlock()
		return
	}
	s.clearLocked()
	s.lastError = err
	s.mu.Unlock()

	s.metrics.RecordForcedLogout()
	s.logger.Warn("forced logout",
		slog.String("error", err.Error()),
	)
	if err := s.persist.Delete(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("failed to delete persisted credential",
			slog.String("error", err.Error()),
		)
	}
}

// CheckExpiry は保持中のクレデンシャルが期限切れの場合に強制ログアウトする。
// 期限切れでログアウトした場合はAuthErrorを返す。
func (s *Store) CheckExpiry(ctx context.Context) error {
	cred := s.Credential()
	if cred == "" || !credential.Expired(cred, s.now()) {
		return nil
	}
	authErr := &model.AuthError{Message: "credential expired"}
	s.forceLogout(ctx, authErr)
	return authErr
}

// UpdateNotificationCount は未読通知数を上書きする。
func (s *Store) UpdateNotificationCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notificationCount = n
}

// Credential は現在のクレデンシャルを返す。apiclient.CredentialSourceを満たす。
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// LoggedIn はクレデンシャルが設定されているかを返す。
func (s *Store) LoggedIn() bool {
	return s.Credential() != ""
}

// Snapshot は現在の状態の複製を返す。
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var profile *model.Profile
	if s.profile != nil {
		p := *s.profile
		profile = &p
	}
	return Snapshot{
		LoggedIn:          s.credential != "",
		Profile:           profile,
		IsLoading:         s.isLoading,
		LastError:         s.lastError,
		NotificationCount: s.notificationCount,
	}
}

// Close はストアを破棄する。実行中の取得はキャンセルされ、結果は反映されない。
// 永続化先のクローズは所有者が行う。
func (s *Store) Close() {
	s.cancel()
}

// IsClosedError は破棄済みストアの操作で返るエラーか判定する。
func IsClosedError(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeScreenClosed
}
