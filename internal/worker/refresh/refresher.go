// Package refresh はログイン中のフィードと通知の定期再取得ジョブを提供する。
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/kojeffi/tbookers/internal/model"
)

// FeedLoader はフィード全体を再取得する。
type FeedLoader interface {
	Load(ctx context.Context) error
}

// NotificationLoader は通知を再取得し、未読数を更新する。
type NotificationLoader interface {
	Notifications(ctx context.Context) ([]model.Notification, error)
}

// SessionState はログイン状態を返す。
type SessionState interface {
	LoggedIn() bool
}

// Refresher はフィードと通知の定期再取得ジョブ。
// 通信エラーが連続した場合はバックオフして一定時間サイクルをスキップする。
// 認証エラーはAPIクライアントの通知でセッションストアが強制ログアウトし、
// 以降のサイクルは未ログインとしてスキップされるため、ここでは数えない。
type Refresher struct {
	feed          FeedLoader
	notifications NotificationLoader
	session       SessionState
	logger        *slog.Logger
	interval      time.Duration
	now           func() time.Time

	consecutiveErrors int
	backoffUntil      time.Time
}

// NewRefresher はRefresherの新しいインスタンスを生成する。
func NewRefresher(
	feed FeedLoader,
	notifications NotificationLoader,
	session SessionState,
	logger *slog.Logger,
	interval time.Duration,
) *Refresher {
	return &Refresher{
		feed:          feed,
		notifications: notifications,
		session:       session,
		logger:        logger,
		interval:      interval,
		now:           time.Now,
	}
}

// Start はティッカーで定期的にRunOnceを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (r *Refresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("定期再取得ジョブを開始しました",
		slog.Duration("interval", r.interval),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("定期再取得ジョブを停止しました")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce は1回分の再取得を実行する。実行した場合はtrueを返す。
// 未ログインまたはバックオフ中はスキップする。
func (r *Refresher) RunOnce(ctx context.Context) bool {
	if !r.backoffUntil.IsZero() && r.now().Before(r.backoffUntil) {
		r.logger.Info("バックオフ中のため再取得をスキップします",
			slog.Time("backoff_until", r.backoffUntil),
		)
		return false
	}
	if !r.session.LoggedIn() {
		r.logger.Debug("未ログインのため再取得をスキップします")
		return false
	}

	start := r.now()
	hadTransportError := false

	if err := r.feed.Load(ctx); err != nil {
		hadTransportError = r.handleError("feed", err) || hadTransportError
	}
	// フィード取得で強制ログアウトした場合は通知を取得しない
	if r.session.LoggedIn() {
		if _, err := r.notifications.Notifications(ctx); err != nil {
			hadTransportError = r.handleError("notifications", err) || hadTransportError
		}
	}

	if hadTransportError {
		r.consecutiveErrors++
		if backoff := calculateErrorBackoff(r.consecutiveErrors); backoff > 0 {
			r.backoffUntil = r.now().Add(backoff)
			r.logger.Warn("連続エラーによりバックオフを適用します",
				slog.Int("consecutive_errors", r.consecutiveErrors),
				slog.Duration("backoff_duration", backoff),
			)
		}
	} else {
		r.consecutiveErrors = 0
		r.backoffUntil = time.Time{}
	}

	r.logger.Debug("再取得サイクルが完了しました",
		slog.Float64("duration_ms", float64(r.now().Sub(start).Milliseconds())),
	)
	return true
}

// handleError はエラーを記録し、通信エラーの場合にtrueを返す。
func (r *Refresher) handleError(target string, err error) bool {
	category := model.Classify(err)
	r.logger.Warn("再取得に失敗しました",
		slog.String("target", target),
		slog.String("category", string(category)),
		slog.String("error", err.Error()),
	)
	return category == model.CategoryTransport
}

// calculateErrorBackoff は連続エラー回数に基づくバックオフ時間を計算する。
// 3回連続: 1分、5回連続: 5分、10回連続: 15分。
func calculateErrorBackoff(consecutiveErrors int) time.Duration {
	switch {
	case consecutiveErrors >= 10:
		return 15 * time.Minute
	case consecutiveErrors >= 5:
		return 5 * time.Minute
	case consecutiveErrors >= 3:
		return 1 * time.Minute
	default:
		return 0
	}
}
