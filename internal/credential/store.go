// Package credential は認証クレデンシャル（ベアラートークン）の永続化を提供する。
// 保存するキーは常に1つで、保存・読み込み・削除のみを扱う。
package credential

import (
	"context"
	"errors"
	"sync"
)

// Key はクレデンシャルを保存するキー名。
const Key = "credential"

// ErrUnreadable は保存済みクレデンシャルが復号できない（破損・鍵の再生成）ことを表す。
// 永続化先自体への到達失敗とは区別する。
var ErrUnreadable = errors.New("stored credential is unreadable")

// Store はクレデンシャルの永続化先を表す。
// Loadは未保存の場合に空文字とnilを返す。
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, credential string) error
	Delete(ctx context.Context) error
	Close() error
}

// MemoryStore はプロセス内にのみ保持するStore。テストと一時利用向け。
type MemoryStore struct {
	mu    sync.Mutex
	value string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, nil
}

func (s *MemoryStore) Save(ctx context.Context, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = credential
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = ""
	return nil
}

func (s *MemoryStore) Close() error { return nil }
