// Package media はストレージ上のメディア参照の解決と取得を提供する。
package media

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kojeffi/tbookers/internal/model"
)

// Resolver はサーバーが返すストレージ相対パスを絶対URLに解決する。
type Resolver struct {
	base *url.URL
}

// NewResolver はストレージのベースURLからResolverを生成する。
func NewResolver(storageBaseURL string) (*Resolver, error) {
	u, err := url.Parse(strings.TrimRight(storageBaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid storage base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("storage base URL must be absolute: %s", storageBaseURL)
	}
	return &Resolver{base: u}, nil
}

// URL はメディアパスを絶対URLに変換する。
// 絶対URLはそのまま返す。ベースURLが /storage で終わり、パスも storage/ で始まる場合は重複させない。
func (r *Resolver) URL(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	rel := strings.TrimLeft(p, "/")
	if strings.HasSuffix(r.base.Path, "/storage") {
		rel = strings.TrimPrefix(rel, "storage/")
	}
	u := *r.base
	u.Path = u.Path + "/" + rel
	return u.String()
}

// Ref はMediaRefのパスを解決したURLを返す。
func (r *Resolver) Ref(ref model.MediaRef) string {
	return r.URL(ref.Path)
}

// Page はメディア列のpage番目（0始まり）をsize件ずつ返す。
// 後続ページが存在する場合はhasMoreがtrueになる。
func Page(refs []model.MediaRef, page, size int) (items []model.MediaRef, hasMore bool) {
	if size <= 0 || page < 0 {
		return nil, false
	}
	// page*sizeのオーバーフローを避けるため、乗算の前に範囲外を判定する
	if len(refs) == 0 || page > (len(refs)-1)/size {
		return []model.MediaRef{}, false
	}
	start := page * size
	end := start + size
	if end > len(refs) {
		end = len(refs)
	}
	return refs[start:end], end < len(refs)
}
