// Package cleanup は期限切れクレデンシャルの定期破棄ジョブを提供する。
// 常駐中に保持しているJWTのexpを過ぎた場合、次のリクエストを待たずにセッションを破棄する。
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// ExpiryChecker は期限切れクレデンシャルを検出して破棄するセッションストア。
type ExpiryChecker interface {
	CheckExpiry(ctx context.Context) error
}

// CleanupJob は期限切れクレデンシャルの破棄ジョブ。
// 冪等であり、ログアウト済みの場合は何もしない。
type CleanupJob struct {
	session  ExpiryChecker
	logger   *slog.Logger
	Interval time.Duration // 実行間隔（デフォルト: 1分）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(session ExpiryChecker, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		session:  session,
		logger:   logger,
		Interval: time.Minute,
	}
}

// Run は1回分の期限チェックを実行する。期限切れで破棄した場合はtrueを返す。
func (j *CleanupJob) Run(ctx context.Context) bool {
	if err := j.session.CheckExpiry(ctx); err != nil {
		j.logger.Info("期限切れのクレデンシャルを破棄しました",
			slog.String("reason", err.Error()),
		)
		return true
	}
	return false
}

// Start はIntervalごとにRunを実行する。コンテキストがキャンセルされるまで継続する。
func (j *CleanupJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
