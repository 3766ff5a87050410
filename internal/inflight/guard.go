// Package inflight はリソースIDをキーとした処理中ガードを提供する。
package inflight

import "sync"

// Guard はIDごとの処理中状態を管理する集合ベースのミューテックス。
// 同じIDに対する操作の二重送信を防ぐ。待機はせず、取得できなければ即座にfalseを返す。
type Guard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewGuard はGuardを生成する。
func NewGuard() *Guard {
	return &Guard{held: make(map[string]struct{})}
}

// TryAcquire はidを処理中として登録する。既に処理中の場合はfalseを返す。
// 確認と登録は同一ロック内で行う。
func (g *Guard) TryAcquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[id]; ok {
		return false
	}
	g.held[id] = struct{}{}
	return true
}

// Release はidの処理中状態を解除する。未登録のidに対しては何もしない。
func (g *Guard) Release(id string) {
	g.mu.Lock()
	delete(g.held, id)
	g.mu.Unlock()
}

// Held はidが処理中かを返す。
func (g *Guard) Held(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[id]
	return ok
}

// IDs は処理中のID一覧を返す。順序は不定。
func (g *Guard) IDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.held))
	for id := range g.held {
		ids = append(ids, id)
	}
	return ids
}

// Reset はすべての処理中状態を破棄する。
func (g *Guard) Reset() {
	g.mu.Lock()
	g.held = make(map[string]struct{})
	g.mu.Unlock()
}
