// Package apiclient はtbookersサーバーのREST APIクライアントを提供する。
// 認証済みリクエストへのベアラートークン付与、ステータスコードによるエラー分類、
// サーバー応答の揺れを吸収するデコードを担う。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kojeffi/tbookers/internal/metrics"
	"github.com/kojeffi/tbookers/internal/model"
)

const (
	// userAgent はリクエストに付与するUser-Agent。
	userAgent = "tbookers-client/1.0"
	// maxResponseSize はレスポンスボディの読み取り上限（10MB）。
	maxResponseSize = 10 * 1024 * 1024
)

// CredentialSource は現在のクレデンシャルを提供する。
// 空文字を返した場合はAuthorizationヘッダーを付与しない。
type CredentialSource interface {
	Credential() string
}

// AuthFailureHandler はCredentialSourceが任意で実装する。
// CredentialSourceから読んだクレデンシャルで認証エラーが返った場合に、
// そのクレデンシャルとともに呼ばれる。
type AuthFailureHandler interface {
	HandleAuthError(ctx context.Context, credential string, err error)
}

// Client はtbookers REST APIのクライアント。
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    metrics.Recorder
	logger     *slog.Logger
	creds      CredentialSource
}

// NewClient はClientの新しいインスタンスを生成する。
// limiterがnilの場合は流量制限を行わない。
func NewClient(httpClient *http.Client, baseURL string, limiter *rate.Limiter, recorder metrics.Recorder, logger *slog.Logger) *Client {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    limiter,
		metrics:    recorder,
		logger:     logger,
	}
}

// WithCredentials はsrcからクレデンシャルを読む複製を返す。
// 元のClientは変更しない。
func (c *Client) WithCredentials(src CredentialSource) *Client {
	cp := *c
	cp.creds = src
	return &cp
}

// request は1回のAPI呼び出しの内容。
type request struct {
	method      string
	path        string
	endpoint    string // メトリクス用のルートテンプレート
	body        io.Reader
	contentType string
	credential  *string // nil以外の場合はCredentialSourceより優先する（空文字は匿名）
}

func jsonRequest(method, path, endpoint string, payload any) (*request, error) {
	req := &request{method: method, path: path, endpoint: endpoint}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		req.body = bytes.NewReader(b)
		req.contentType = "application/json"
	}
	return req, nil
}

// do はリクエストを送信し、2xxの場合にレスポンスボディを返す。
// 2xx以外はステータスコードに応じたエラーに変換する。
func (c *Client) do(ctx context.Context, r *request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &model.TransportError{Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	credential := ""
	fromSource := false
	if r.credential != nil {
		credential = *r.credential
	} else if c.creds != nil {
		credential = c.creds.Credential()
		fromSource = credential != ""
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordAPIRequest(r.endpoint, 0, time.Since(start))
		c.logger.Warn("API request failed",
			slog.String("endpoint", r.endpoint),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return nil, &model.TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	duration := time.Since(start)
	c.metrics.RecordAPIRequest(r.endpoint, resp.StatusCode, duration)
	if err != nil {
		return nil, &model.TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response body: %w", err)}
	}

	c.logger.Debug("API request completed",
		slog.String("endpoint", r.endpoint),
		slog.String("request_id", requestID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", duration),
	)

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		if !model.IsAuthError(err) {
			c.logger.Warn("API returned error status",
				slog.String("endpoint", r.endpoint),
				slog.String("request_id", requestID),
				slog.Int("status", resp.StatusCode),
			)
		} else if h, ok := c.creds.(AuthFailureHandler); ok && fromSource {
			h.HandleAuthError(ctx, credential, err)
		}
		return nil, err
	}
	return body, nil
}

// classifyStatus はHTTPステータスコードをエラーに分類する。2xxの場合はnilを返す。
func classifyStatus(statusCode int, body []byte) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &model.AuthError{StatusCode: statusCode, Message: serverMessage(body)}
	case statusCode == http.StatusNotFound:
		return model.NewNotFoundError(serverMessage(body))
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		msg := serverMessage(body)
		if msg == "" {
			msg = "入力内容に誤りがあります。"
		}
		return model.NewValidationError(msg)
	default:
		return &model.TransportError{
			StatusCode: statusCode,
			Err:        fmt.Errorf("unexpected status %d", statusCode),
		}
	}
}

// get はGETリクエストを送信してボディを返す。
func (c *Client) get(ctx context.Context, path, endpoint string) ([]byte, error) {
	return c.do(ctx, &request{method: http.MethodGet, path: path, endpoint: endpoint})
}

// postAnonymous はクレデンシャルを付与せずにJSONボディ付きのPOSTリクエストを送信する。
// ログイン・登録の失敗で保持中のセッションを失効させないために使う。
func (c *Client) postAnonymous(ctx context.Context, path, endpoint string, payload any) ([]byte, error) {
	r, err := jsonRequest(http.MethodPost, path, endpoint, payload)
	if err != nil {
		return nil, err
	}
	anonymous := ""
	r.credential = &anonymous
	return c.do(ctx, r)
}

// post はJSONボディ付きのPOSTリクエストを送信する。payloadがnilの場合はボディなし。
func (c *Client) post(ctx context.Context, path, endpoint string, payload any) ([]byte, error) {
	r, err := jsonRequest(http.MethodPost, path, endpoint, payload)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, r)
}
