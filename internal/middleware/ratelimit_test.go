package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_GeneralBurstThen429(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:  rate.Limit(0.5),
		GeneralBurst: 2,
		PostingRate:  rate.Limit(1),
		PostingBurst: 1,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/feed", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/feed", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
}

func TestRateLimiter_PostingIndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:  rate.Limit(1),
		GeneralBurst: 10,
		PostingRate:  rate.Limit(0.1),
		PostingBurst: 1,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	general := rl.GeneralMiddleware()(okHandler())
	posting := rl.PostingMiddleware()(okHandler())

	w := httptest.NewRecorder()
	posting.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/posts", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("1回目の投稿: status = %d, want 200", w.Code)
	}
	w = httptest.NewRecorder()
	posting.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/posts", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("2回目の投稿: status = %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/feed", nil))
	if w.Code != http.StatusOK {
		t.Errorf("投稿の制限が全般に影響してはならない: status = %d", w.Code)
	}
}
