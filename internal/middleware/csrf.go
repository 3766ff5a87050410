package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kojeffi/tbookers/internal/model"
)

// csrfHeaderName は状態変更リクエストでCSRFトークンを送るヘッダー名。
const csrfHeaderName = "X-CSRF-Token"

// CSRFToken はエージェントの起動ごとに生成されるトークン。
// 許可オリジンのページだけがGET /api/csrf-tokenから読み取れる。
type CSRFToken struct {
	value string
}

// NewCSRFToken は暗号的に安全なCSRFトークンを生成する。
func NewCSRFToken() (*CSRFToken, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return &CSRFToken{value: hex.EncodeToString(b)}, nil
}

// Value はトークン文字列を返す。
func (t *CSRFToken) Value() string {
	return t.value
}

func (t *CSRFToken) matches(v string) bool {
	return v != "" && subtle.ConstantTimeCompare([]byte(v), []byte(t.value)) == 1
}

// NewCSRFMiddleware はCSRFトークンの検証ミドルウェアを返す。
// 安全なメソッド（GET, HEAD, OPTIONS）は検証をスキップする。
// 状態変更メソッド（POST, PUT, PATCH, DELETE）はヘッダーのトークン一致を必須とする。
func NewCSRFMiddleware(token *CSRFToken, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			if !token.matches(r.Header.Get(csrfHeaderName)) {
				logger.Warn("CSRF validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
					Code:     "CSRF_TOKEN_INVALID",
					Message:  "CSRFトークンの検証に失敗しました。",
					Category: model.CategoryValidation,
					Action:   "トークンを取得し直してから再度お試しください。",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler はCSRFトークン取得エンドポイントのハンドラーを返す。
// GET /api/csrf-token
func NewCSRFTokenHandler(token *CSRFToken) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"token": token.Value(),
		})
	})
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
