package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/kojeffi/tbookers/internal/model"
	"github.com/kojeffi/tbookers/internal/security"
)

// Downloader はストレージ上のメディアを取得する。
// 取得先はSSRFガードで検証し、サイズ上限を超える応答はエラーにする。
type Downloader struct {
	client   *http.Client
	guard    security.SSRFGuardService
	resolver *Resolver
	maxSize  int64
	logger   *slog.Logger
}

// NewDownloader はDownloaderを生成する。
// clientには通常guard.NewSafeClientで生成したクライアントを渡す。
func NewDownloader(client *http.Client, guard security.SSRFGuardService, resolver *Resolver, maxSize int64, logger *slog.Logger) *Downloader {
	return &Downloader{
		client:   client,
		guard:    guard,
		resolver: resolver,
		maxSize:  maxSize,
		logger:   logger,
	}
}

// Get はメディアを取得してwに書き込み、書き込んだバイト数を返す。
func (d *Downloader) Get(ctx context.Context, ref model.MediaRef, w io.Writer) (int64, error) {
	target := d.resolver.Ref(ref)
	if err := d.guard.ValidateURL(target); err != nil {
		host := ""
		if u, perr := url.Parse(target); perr == nil {
			host = u.Hostname()
		}
		d.logger.Warn("media URL rejected",
			slog.String("url", target),
			slog.String("error", err.Error()),
		)
		return 0, model.NewMediaHostError(host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create media request: %w", err)
	}
	req.Header.Set("User-Agent", "tbookers-client/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &model.TransportError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, model.NewNotFoundError("")
	case resp.StatusCode != http.StatusOK:
		return 0, &model.TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("media download returned status %d", resp.StatusCode)}
	}

	if resp.ContentLength > d.maxSize {
		return 0, fmt.Errorf("media too large: %d > %d bytes", resp.ContentLength, d.maxSize)
	}

	n, err := io.Copy(w, io.LimitReader(resp.Body, d.maxSize+1))
	if err != nil {
		return n, &model.TransportError{Err: err}
	}
	if n > d.maxSize {
		return n, fmt.Errorf("media too large: exceeds %d bytes", d.maxSize)
	}

	d.logger.Debug("media downloaded",
		slog.String("path", ref.Path),
		slog.String("kind", string(ref.Kind)),
		slog.Int64("bytes", n),
	)
	return n, nil
}
