package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate  rate.Limit // API全般のレート（req/sec）
	GeneralBurst int        // API全般のバーストサイズ
	PostingRate  rate.Limit // 投稿・コメント作成のレート（req/sec）
	PostingBurst int        // 投稿・コメント作成のバーストサイズ
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 600 req/min、投稿作成 20 req/min
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:  rate.Limit(600.0 / 60.0),
		GeneralBurst: 100,
		PostingRate:  rate.Limit(20.0 / 60.0),
		PostingBurst: 5,
	}
}

// RateLimiter はエージェントAPIへのリクエスト流量を制限する。
// エージェントは単一ユーザーのループバックサーバーのため、リミッターはプロセスで共有する。
// 画面側の不具合による連打がそのまま上流サーバーへ流れるのを防ぐ。
type RateLimiter struct {
	config  RateLimiterConfig
	general *rate.Limiter
	posting *rate.Limiter
	logger  *slog.Logger
}

// NewRateLimiter は新しいRateLimiterを生成する。
func NewRateLimiter(config RateLimiterConfig, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		config:  config,
		general: rate.NewLimiter(config.GeneralRate, config.GeneralBurst),
		posting: rate.NewLimiter(config.PostingRate, config.PostingBurst),
		logger:  logger,
	}
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general, rl.config.GeneralRate, "general")
}

// PostingMiddleware は投稿・コメント作成専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) PostingMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.posting, rl.config.PostingRate, "posting")
}

func (rl *RateLimiter) middleware(limiter *rate.Limiter, r rate.Limit, limitType string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !limiter.Allow() {
				writeRateLimitResponse(w, r)
				rl.logger.Warn("rate limit exceeded",
					slog.String("path", req.URL.Path),
					slog.String("limit_type", limitType),
				)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
