package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kojeffi/tbookers/internal/model"
	"github.com/kojeffi/tbookers/internal/security"
)

func TestResolver_URL(t *testing.T) {
	r, err := NewResolver("https://api.example.com/storage/")
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"posts/a.png", "https://api.example.com/storage/posts/a.png"},
		{"/posts/a.png", "https://api.example.com/storage/posts/a.png"},
		{"storage/posts/a.png", "https://api.example.com/storage/posts/a.png"},
		{"https://other.example.com/x.png", "https://other.example.com/x.png"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := r.URL(tt.in); got != tt.want {
			t.Errorf("URL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewResolver_RejectsRelativeBase(t *testing.T) {
	if _, err := NewResolver("/storage"); err == nil {
		t.Error("relative base URL should be rejected")
	}
}

func TestPage(t *testing.T) {
	refs := model.NewMediaRefs([]string{"1.png", "2.png", "3.png", "4.png", "5.png"})

	items, more := Page(refs, 0, 2)
	if len(items) != 2 || !more {
		t.Errorf("page 0: len=%d more=%v", len(items), more)
	}
	items, more = Page(refs, 2, 2)
	if len(items) != 1 || more || items[0].Path != "5.png" {
		t.Errorf("page 2: %+v more=%v", items, more)
	}
	items, more = Page(refs, 3, 2)
	if len(items) != 0 || more {
		t.Errorf("page 3: len=%d more=%v", len(items), more)
	}
	if items, _ := Page(refs, 0, 0); items != nil {
		t.Error("size 0 should return nil")
	}
}

func TestPage_OutOfRangeDoesNotOverflow(t *testing.T) {
	refs := model.NewMediaRefs([]string{"1.png", "2.png", "3.png", "4.png", "5.png"})
	const maxInt = int(^uint(0) >> 1)

	tests := []struct {
		name       string
		page, size int
		wantLen    int
		wantMore   bool
	}{
		{"page*sizeが負に桁あふれ", 2305843009213693952, 4, 0, false},
		{"最大page", maxInt, 1, 0, false},
		{"最大size", 0, maxInt, 5, false},
		{"最大sizeの次ページ", 1, maxInt, 0, false},
		{"最終ページ境界", 1, 4, 1, false},
		{"最終ページの次", 5, 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, more := Page(refs, tt.page, tt.size)
			if len(items) != tt.wantLen || more != tt.wantMore {
				t.Errorf("Page(%d, %d) = len %d more %v, want len %d more %v",
					tt.page, tt.size, len(items), more, tt.wantLen, tt.wantMore)
			}
		})
	}

	if items, more := Page(nil, 0, 4); items == nil || len(items) != 0 || more {
		t.Errorf("空のメディア列: %v %v", items, more)
	}
}

func newDownloader(t *testing.T, server *httptest.Server, maxSize int64) *Downloader {
	t.Helper()
	r, err := NewResolver(server.URL + "/storage")
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewDownloader(server.Client(), security.NewSSRFGuard(server.URL+"/storage"), r, maxSize, logger)
}

func TestDownloader_Get_WritesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/posts/a.png" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte("PNGDATA"))
	}))
	defer server.Close()

	d := newDownloader(t, server, 1024)
	var buf bytes.Buffer
	n, err := d.Get(context.Background(), model.MediaRef{Path: "posts/a.png", Kind: model.MediaKindImage}, &buf)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if n != 7 || buf.String() != "PNGDATA" {
		t.Errorf("n=%d body=%q", n, buf.String())
	}
}

func TestDownloader_Get_RejectsForeignHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	}))
	defer server.Close()

	d := newDownloader(t, server, 1024)
	_, err := d.Get(context.Background(), model.MediaRef{Path: "https://evil.example.com/a.png"}, io.Discard)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeMediaHost {
		t.Errorf("err = %v, want media host error", err)
	}
}

func TestDownloader_Get_TooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 100))
	}))
	defer server.Close()

	d := newDownloader(t, server, 10)
	if _, err := d.Get(context.Background(), model.MediaRef{Path: "big.mp4"}, io.Discard); err == nil {
		t.Error("expected size limit error")
	}
}

func TestDownloader_Get_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	d := newDownloader(t, server, 10)
	_, err := d.Get(context.Background(), model.MediaRef{Path: "gone.png"}, io.Discard)
	if model.Classify(err) != model.CategoryNotFound {
		t.Errorf("Classify = %q, want not_found", model.Classify(err))
	}
}

func TestDownloader_Get_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	d := newDownloader(t, server, 10)
	_, err := d.Get(context.Background(), model.MediaRef{Path: "x.png"}, io.Discard)
	if !model.IsTransportError(err) {
		t.Errorf("err = %v, want TransportError", err)
	}
}
