package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/kojeffi/tbookers/internal/model"
)

// このファイルのミドルウェアはエージェントAPIの最外周に置く。
// エージェントはループバックで待ち受け、許可された1つの画面オリジンとCLIだけが呼び出す。

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// 統一エラーフォーマットの500を返すミドルウェアを生成する。
// リクエストIDミドルウェアより外側に置くため、IDはレスポンスヘッダーから読む。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// net/httpが接続の中断に使う値はそのまま伝播させる
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				logger.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", w.Header().Get(requestIDHeader)),
					slog.String("stack", string(debug.Stack())),
				)
				WriteInternalServerError(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// 応答には本人のフィードやプロフィールが含まれるため、キャッシュとリファラ送信を禁止する。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}

// NewCORSMiddleware は許可オリジンに限定したCORSミドルウェアを返す。
//
// Originヘッダーのないリクエスト（CLIや同一オリジン）はそのまま通す。
// 許可オリジン以外のOriginを持つリクエストは、DNSリバインディング経由の
// 呼び出しも含めて403で拒否する。許可オリジンのプリフライトには204で応答する。
// 応答はOriginで変わるため、常にVary: Originを付与する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			if origin != "" && origin != allowedOrigin {
				WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
					Code:     "ORIGIN_NOT_ALLOWED",
					Message:  "このオリジンからのアクセスは許可されていません。",
					Category: model.CategoryValidation,
					Action:   "設定された画面から操作してください。",
				})
				return
			}

			if origin != "" {
				h.Set("Access-Control-Allow-Origin", allowedOrigin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, "+csrfHeaderName)
				h.Set("Access-Control-Expose-Headers", requestIDHeader)
				h.Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
