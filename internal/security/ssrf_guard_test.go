package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewSafeClient_TimeoutAndTransport はタイムアウトとカスタムTransportが設定されることをテストする。
func TestNewSafeClient_TimeoutAndTransport(t *testing.T) {
	guard := NewSSRFGuard("https://cdn.example.com/storage")
	client := guard.NewSafeClient(5 * time.Second)

	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout %v, got %v", 5*time.Second, client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport")
	}
}

// TestNewSafeClientBlocksLoopback はSafeClientがループバックへのリクエストをブロックすることをテストする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	guard := NewSSRFGuard("")
	client := guard.NewSafeClient(5 * time.Second)

	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

// TestValidateURL_StorageHostOnly はストレージホスト以外が拒否されることをテストする。
func TestValidateURL_StorageHostOnly(t *testing.T) {
	guard := NewSSRFGuard("https://cdn.example.com/storage")

	if err := guard.ValidateURL("https://cdn.example.com/storage/posts/a.png"); err != nil {
		t.Errorf("storage URL rejected: %v", err)
	}
	if err := guard.ValidateURL("https://CDN.example.com/storage/posts/a.png"); err != nil {
		t.Errorf("host comparison should be case-insensitive: %v", err)
	}
	if err := guard.ValidateURL("https://evil.example.com/a.png"); err == nil {
		t.Error("foreign host should be rejected")
	}
}

// TestValidateURL_LocalStorageHostAllowed は開発環境のローカルストレージを許可することをテストする。
func TestValidateURL_LocalStorageHostAllowed(t *testing.T) {
	guard := NewSSRFGuard("http://localhost:8000/storage")
	if err := guard.ValidateURL("http://localhost:8000/storage/x.jpg"); err != nil {
		t.Errorf("configured local storage host rejected: %v", err)
	}
	if guard.AllowedHost() != "localhost" {
		t.Errorf("AllowedHost = %q", guard.AllowedHost())
	}
	found := false
	for _, p := range guard.ports {
		if p == 8000 {
			found = true
		}
	}
	if !found {
		t.Errorf("ports = %v, want 8000 included", guard.ports)
	}
}

// TestValidateURL_WithoutHostRestriction はホスト制限なしの場合にプライベートアドレスを拒否することをテストする。
func TestValidateURL_WithoutHostRestriction(t *testing.T) {
	guard := NewSSRFGuard("")

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/a.png", false},
		{"http://10.0.0.1/a.png", true},
		{"http://192.168.1.100/a.png", true},
		{"http://127.0.0.1/a.png", true},
		{"http://localhost/a.png", true},
		{"http://169.254.169.254/latest/meta-data/", true},
		{"http://[::1]/a.png", true},
		{"ftp://example.com/a.png", true},
		{"javascript:alert(1)", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
