package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/kojeffi/tbookers/internal/middleware"
	"github.com/kojeffi/tbookers/internal/model"
)

// MediaFetcher はストレージからメディアを取得する。
type MediaFetcher interface {
	Get(ctx context.Context, ref model.MediaRef, w io.Writer) (int64, error)
}

// MediaHandler はストレージ上のメディアを中継するHTTPハンドラー。
// 画面側はストレージホストへ直接アクセスせず、エージェント経由で取得できる。
type MediaHandler struct {
	fetcher MediaFetcher
	logger  *slog.Logger
}

// NewMediaHandler はMediaHandlerを生成する。
func NewMediaHandler(fetcher MediaFetcher, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{fetcher: fetcher, logger: logger}
}

// Get はpathで指定したメディアを返す。
// 取得が完了してから書き込むため、途中で失敗した場合も統一エラーを返せる。
// GET /api/media?path=posts/a.jpg
func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimSpace(r.URL.Query().Get("path"))
	if p == "" {
		middleware.WriteBadRequest(w, "pathを指定してください。")
		return
	}
	ref := model.NewMediaRefs([]string{p})[0]

	var buf bytes.Buffer
	n, err := h.fetcher.Get(r.Context(), ref, &buf)
	if err != nil {
		h.logger.Warn("media proxy failed",
			slog.String("path", p),
			slog.String("error", err.Error()),
		)
		middleware.WriteError(w, err)
		return
	}

	ct := mime.TypeByExtension(path.Ext(stripQuery(p)))
	if ct == "" {
		ct = http.DetectContentType(buf.Bytes())
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.FormatInt(n, 10))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func stripQuery(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i]
	}
	return p
}
