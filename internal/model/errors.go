package model

import (
	"errors"
	"fmt"
)

// Category はエラーの分類を表す。UIでの扱い（強制ログアウト、警告表示など）を決める。
type Category string

const (
	// CategoryAuth は認証エラー（401/403、期限切れクレデンシャル）。強制ログアウトで回復する。
	CategoryAuth Category = "auth"
	// CategoryValidation はクライアント側の入力検証エラー。リクエストは送信されない。
	CategoryValidation Category = "validation"
	// CategoryTransport は通信エラーまたはサーバーエラー。自動リトライはしない。
	CategoryTransport Category = "transport"
	// CategoryNotFound は対象リソースが存在しないエラー。
	CategoryNotFound Category = "not_found"
	// CategorySystem はその他の内部エラー。
	CategorySystem Category = "system"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string   // エラーコード
	Message  string   // エラーメッセージ
	Category Category // カテゴリ: auth, validation, transport, not_found, system
	Action   string   // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation      = "VALIDATION_FAILED"
	ErrCodeEmptyComment    = "EMPTY_COMMENT"
	ErrCodeEmptyPost       = "EMPTY_POST"
	ErrCodeMissingLogin    = "MISSING_CREDENTIALS"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeNotLoggedIn     = "NOT_LOGGED_IN"
	ErrCodeRepostInFlight  = "REPOST_IN_FLIGHT"
	ErrCodeScreenClosed    = "SCREEN_CLOSED"
	ErrCodeMediaHost       = "MEDIA_HOST_NOT_ALLOWED"
	ErrCodeUnexpectedReply = "UNEXPECTED_RESPONSE"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: CategoryValidation,
		Action:   "入力内容を確認してください。",
	}
}

// NewEmptyCommentError は空コメント送信時のエラーを生成する。
func NewEmptyCommentError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyComment,
		Message:  "コメントを入力してください。",
		Category: CategoryValidation,
		Action:   "空白以外の文字を含むコメントを入力してください。",
	}
}

// NewEmptyPostError は本文もメディアもない投稿のエラーを生成する。
func NewEmptyPostError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyPost,
		Message:  "投稿内容がありません。",
		Category: CategoryValidation,
		Action:   "本文を入力するか、ファイルを添付してください。",
	}
}

// NewMissingLoginFieldsError はログイン情報が不足している場合のエラーを生成する。
func NewMissingLoginFieldsError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingLogin,
		Message:  "メールアドレスとパスワードを入力してください。",
		Category: CategoryValidation,
		Action:   "両方の項目を入力してから再度お試しください。",
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
// サーバーがメッセージを返した場合はそれを使い、なければ汎用メッセージにする。
func NewNotFoundError(serverMessage string) *APIError {
	msg := serverMessage
	if msg == "" {
		msg = "指定されたリソースが見つかりません。"
	}
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  msg,
		Category: CategoryNotFound,
		Action:   "画面を更新してから再度お試しください。",
	}
}

// NewNotLoggedInError は未ログイン状態で認証が必要な操作をした場合のエラーを生成する。
func NewNotLoggedInError() *APIError {
	return &APIError{
		Code:     ErrCodeNotLoggedIn,
		Message:  "ログインしていません。",
		Category: CategoryAuth,
		Action:   "ログインしてください。",
	}
}

// NewRepostInFlightError は同じ投稿のリポストが処理中の場合のエラーを生成する。
func NewRepostInFlightError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodeRepostInFlight,
		Message:  fmt.Sprintf("この投稿のリポストは処理中です: %s", postID),
		Category: CategoryValidation,
		Action:   "完了するまでお待ちください。",
	}
}

// NewScreenClosedError は画面が閉じられた後に結果が届いた場合のエラーを生成する。
func NewScreenClosedError() *APIError {
	return &APIError{
		Code:     ErrCodeScreenClosed,
		Message:  "画面が閉じられたため結果を破棄しました。",
		Category: CategorySystem,
		Action:   "",
	}
}

// NewMediaHostError はストレージホスト以外のメディア取得を拒否した場合のエラーを生成する。
func NewMediaHostError(host string) *APIError {
	return &APIError{
		Code:     ErrCodeMediaHost,
		Message:  fmt.Sprintf("許可されていないホストのメディアです: %s", host),
		Category: CategoryValidation,
		Action:   "ストレージ上のメディアのみ取得できます。",
	}
}

// NewUnexpectedResponseError はサーバー応答を解釈できない場合のエラーを生成する。
func NewUnexpectedResponseError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUnexpectedReply,
		Message:  fmt.Sprintf("サーバーの応答を解釈できませんでした: %s", reason),
		Category: CategoryTransport,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// AuthError は認証の失敗（401/403 または期限切れクレデンシャル）を表す。
// セッションストアはこのエラーのみを強制ログアウトの契機とする。
type AuthError struct {
	StatusCode int    // 0 はローカルで期限切れを検出した場合
	Message    string // サーバーが返したメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("authentication failed: %s", e.Message)
	}
	return fmt.Sprintf("authentication failed (status %d): %s", e.StatusCode, e.Message)
}

// TransportError は通信失敗またはサーバー側エラーを表す。
// 再試行可能な状態として扱い、セッションは維持する。
type TransportError struct {
	StatusCode int // 0 はレスポンスを受信できなかった場合
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport error: %v", e.Err)
	}
	return fmt.Sprintf("server error (status %d): %v", e.StatusCode, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsAuthError はerrがAuthErrorを含むかを返す。
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsTransportError はerrがTransportErrorを含むかを返す。
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Classify はエラーをカテゴリに分類する。
func Classify(err error) Category {
	if err == nil {
		return ""
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return CategoryAuth
	}
	var te *TransportError
	if errors.As(err, &te) {
		return CategoryTransport
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category
	}
	return CategorySystem
}

// AsAPIError はerrをユーザー向けのAPIErrorに変換する。
// すべてのエラーは何らかのメッセージとして表示され、握りつぶされない。
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return &APIError{
			Code:     "AUTH_FAILED",
			Message:  "セッションの有効期限が切れました。",
			Category: CategoryAuth,
			Action:   "再度ログインしてください。",
		}
	}
	var te *TransportError
	if errors.As(err, &te) {
		return &APIError{
			Code:     "TRANSPORT_FAILED",
			Message:  "サーバーとの通信に失敗しました。",
			Category: CategoryTransport,
			Action:   "通信環境を確認し、しばらく待ってから再度お試しください。",
		}
	}
	return &APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// UserMessage はアラート表示用の1行メッセージを返す。
func UserMessage(err error) string {
	apiErr := AsAPIError(err)
	if apiErr == nil {
		return ""
	}
	if apiErr.Action == "" {
		return apiErr.Message
	}
	return apiErr.Message + " " + apiErr.Action
}
