// Package middleware はエージェントAPIのHTTPミドルウェアを提供する。
package middleware

import (
	"net/http"

	"github.com/kojeffi/tbookers/internal/model"
)

// LoginChecker はログイン状態の確認に必要なインターフェース。
// session.Storeの部分集合として定義する。
type LoginChecker interface {
	LoggedIn() bool
}

// NewSessionMiddleware はセッションストアがログイン状態であることを要求するミドルウェアを返す。
// 未ログインのリクエストには401 Unauthorizedを統一エラーフォーマットで返す。
func NewSessionMiddleware(checker LoginChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.LoggedIn() {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotLoggedInError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
