// Package feed はフィード表示とユーザー操作（いいね、コメント、リポスト、削除、フォロー）の
// 整合性ルールを提供する。
//
// 操作はいずれも楽観的更新を行わない。サーバーへの変更が成功した後にフィード全体を再取得し、
// 失敗した場合は表示中の状態をそのまま残してエラーを返す。
package feed

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/kojeffi/tbookers/internal/inflight"
	"github.com/kojeffi/tbookers/internal/metrics"
	"github.com/kojeffi/tbookers/internal/model"
	"github.com/kojeffi/tbookers/internal/security"
)

// API はフィード操作が利用するサーバーAPI。
type API interface {
	Feed(ctx context.Context) ([]model.Post, error)
	Like(ctx context.Context, postID string) error
	Unlike(ctx context.Context, postID string) error
	Repost(ctx context.Context, postID string) error
	DeletePost(ctx context.Context, postID string) error
	Comment(ctx context.Context, postID, content string) error
	Comments(ctx context.Context, postID string) ([]model.Comment, error)
	Follow(ctx context.Context, userID string) error
}

// PostView は表示用の投稿とUI状態の組。
type PostView struct {
	Post             model.Post // サーバーから受け取ったままのエントリ
	Display          model.Post // リポスト元を優先して合成した表示内容
	MenuOpen         bool
	CommentsExpanded bool
	Comments         []model.Comment
	Draft            string
	Reposting        bool
}

// State はある時点のフィード状態の複製。
type State struct {
	Posts     []PostView
	Loading   bool
	LastError error
}

// Model はフィード表示の状態を保持する。
// UI状態（メニュー、コメント展開、下書き、リポスト中）は投稿IDをキーに保持し、Closeで破棄する。
type Model struct {
	api       API
	sanitizer security.ContentSanitizerService
	metrics   metrics.Recorder
	logger    *slog.Logger
	reposting *inflight.Guard

	life   context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	posts      []model.Post
	loadSeq    uint64
	appliedSeq uint64
	loading    int
	lastError  error
	menuOpen   string
	expanded   map[string]bool
	comments   map[string][]model.Comment
	drafts     map[string]string
}

// NewModel はModelを生成する。
func NewModel(api API, sanitizer security.ContentSanitizerService, recorder metrics.Recorder, logger *slog.Logger) *Model {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	life, cancel := context.WithCancel(context.Background())
	return &Model{
		api:       api,
		sanitizer: sanitizer,
		metrics:   recorder,
		logger:    logger,
		reposting: inflight.NewGuard(),
		life:      life,
		cancel:    cancel,
		expanded:  make(map[string]bool),
		comments:  make(map[string][]model.Comment),
		drafts:    make(map[string]string),
	}
}

// Dedupe はEffectiveIDが同じエントリを1件にまとめる。先に現れたエントリを残し、順序は保つ。
func Dedupe(posts []model.Post) []model.Post {
	seen := make(map[string]bool, len(posts))
	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		id := p.EffectiveID()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, p)
	}
	return out
}

func (m *Model) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (m *Model) closed() bool {
	return m.life.Err() != nil
}

// Load はフィードを取得して表示中の一覧を置き換える。
// 並行したLoadのうち、後に開始したものの結果を優先する。
func (m *Model) Load(ctx context.Context) error {
	if m.closed() {
		return model.NewScreenClosedError()
	}
	ctx, done := m.bind(ctx)
	defer done()

	m.mu.Lock()
	m.loadSeq++
	seq := m.loadSeq
	m.loading++
	m.mu.Unlock()

	posts, err := m.api.Feed(ctx)

	if m.closed() {
		return model.NewScreenClosedError()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading--

	// 新しいLoadがすでに反映済みの場合は成否にかかわらず状態を変えない
	stale := seq < m.appliedSeq

	if err != nil {
		m.logger.Warn("feed load failed",
			slog.String("category", string(model.Classify(err))),
			slog.String("error", err.Error()),
			slog.Bool("stale", stale),
		)
		if !stale {
			m.lastError = err
		}
		return err
	}

	if stale {
		m.logger.Debug("discarding stale feed load", slog.Uint64("seq", seq))
		return nil
	}
	m.appliedSeq = seq

	posts = Dedupe(posts)
	for i := range posts {
		m.sanitize(&posts[i])
	}
	m.posts = posts
	m.lastError = nil
	m.metrics.RecordFeedLoad(len(posts))
	return nil
}

func (m *Model) sanitize(p *model.Post) {
	p.Body = m.sanitizer.Text(p.Body)
	for i := range p.Comments {
		p.Comments[i].Content = m.sanitizer.Text(p.Comments[i].Content)
	}
	if p.RepostOf != nil {
		m.sanitize(p.RepostOf)
	}
}

// find は表示中の投稿をエントリIDで探す。
func (m *Model) find(postID string) (model.Post, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.ID == postID {
			return p, true
		}
	}
	return model.Post{}, false
}

// target はいいね・コメント・リポストの対象となる投稿IDを返す。
// リポストエントリの場合はリポスト元の投稿を対象にする。
func (m *Model) target(postID string) string {
	if p, ok := m.find(postID); ok {
		return p.EffectiveID()
	}
	return postID
}

// mutate は変更リクエストを送信し、成功した場合にフィードを再取得する。
func (m *Model) mutate(ctx context.Context, action string, fn func(ctx context.Context) error) error {
	if m.closed() {
		return model.NewScreenClosedError()
	}
	bctx, done := m.bind(ctx)
	err := fn(bctx)
	done()

	if m.closed() {
		return model.NewScreenClosedError()
	}
	if err != nil {
		m.mu.Lock()
		m.lastError = err
		m.mu.Unlock()
		m.logger.Warn("feed action failed",
			slog.String("action", action),
			slog.String("category", string(model.Classify(err))),
			slog.String("error", err.Error()),
		)
		return err
	}
	return m.Load(ctx)
}

// Like は投稿に「いいね」してフィードを再取得する。
func (m *Model) Like(ctx context.Context, postID string) error {
	id := m.target(postID)
	return m.mutate(ctx, "like", func(ctx context.Context) error {
		return m.api.Like(ctx, id)
	})
}

// Unlike は「いいね」を取り消してフィードを再取得する。
func (m *Model) Unlike(ctx context.Context, postID string) error {
	id := m.target(postID)
	return m.mutate(ctx, "unlike", func(ctx context.Context) error {
		return m.api.Unlike(ctx, id)
	})
}

// Comment は下書きではなく引数のcontentを送信する。
// 空白のみの場合はリクエストを送信せずバリデーションエラーを返す。
// 成功時はその投稿の下書きを消し、コメント欄を閉じてからフィードを再取得する。
func (m *Model) Comment(ctx context.Context, postID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.NewEmptyCommentError()
	}

	id := m.target(postID)
	return m.mutate(ctx, "comment", func(ctx context.Context) error {
		if err := m.api.Comment(ctx, id, content); err != nil {
			return err
		}
		m.mu.Lock()
		delete(m.drafts, postID)
		delete(m.expanded, postID)
		delete(m.comments, postID)
		m.mu.Unlock()
		return nil
	})
}

// SubmitDraft はその投稿の下書きをコメントとして送信する。
func (m *Model) SubmitDraft(ctx context.Context, postID string) error {
	m.mu.Lock()
	draft := m.drafts[postID]
	m.mu.Unlock()
	return m.Comment(ctx, postID, draft)
}

// Repost は投稿をリポストしてフィードを再取得する。
// 同じ投稿のリポストが処理中の場合はリクエストを送信せずエラーを返す。
func (m *Model) Repost(ctx context.Context, postID string) error {
	id := m.target(postID)
	if !m.reposting.TryAcquire(id) {
		m.metrics.RecordRepostDeduped()
		m.logger.Debug("repost already in flight", slog.String("post_id", id))
		return model.NewRepostInFlightError(id)
	}
	defer m.reposting.Release(id)

	return m.mutate(ctx, "repost", func(ctx context.Context) error {
		return m.api.Repost(ctx, id)
	})
}

// Delete は投稿を削除してフィードを再取得する。削除対象はエントリ自身。
func (m *Model) Delete(ctx context.Context, postID string) error {
	m.CloseMenu()
	return m.mutate(ctx, "delete", func(ctx context.Context) error {
		return m.api.DeletePost(ctx, postID)
	})
}

// Follow は表示中の投稿者をフォローする。フィードは再取得せず、成否にかかわらずメニューを閉じる。
func (m *Model) Follow(ctx context.Context, postID string) error {
	defer m.CloseMenu()

	p, ok := m.find(postID)
	if !ok {
		return model.NewNotFoundError("")
	}
	userID := p.Display().Author.ID
	if userID == "" {
		return model.NewValidationError("投稿者が不明なためフォローできません。")
	}

	if m.closed() {
		return model.NewScreenClosedError()
	}
	bctx, done := m.bind(ctx)
	defer done()
	if err := m.api.Follow(bctx, userID); err != nil {
		if m.closed() {
			return model.NewScreenClosedError()
		}
		m.logger.Warn("follow failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return err
	}
	if m.closed() {
		return model.NewScreenClosedError()
	}
	return nil
}

// ExpandComments はコメント欄を開き、コメント一覧を取得する。
func (m *Model) ExpandComments(ctx context.Context, postID string) error {
	if m.closed() {
		return model.NewScreenClosedError()
	}
	id := m.target(postID)
	bctx, done := m.bind(ctx)
	defer done()

	comments, err := m.api.Comments(bctx, id)
	if m.closed() {
		return model.NewScreenClosedError()
	}
	if err != nil {
		return err
	}
	for i := range comments {
		comments[i].Content = m.sanitizer.Text(comments[i].Content)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.expanded[postID] = true
	m.comments[postID] = comments
	return nil
}

// CollapseComments はコメント欄を閉じる。
func (m *Model) CollapseComments(postID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expanded, postID)
	delete(m.comments, postID)
}

// SetDraft はコメントの下書きを保存する。空文字の場合は下書きを消す。
func (m *Model) SetDraft(postID, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if text == "" {
		delete(m.drafts, postID)
		return
	}
	m.drafts[postID] = text
}

// ToggleMenu はその投稿のアクションメニューを開閉する。開けるメニューは1つだけ。
func (m *Model) ToggleMenu(postID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.menuOpen == postID {
		m.menuOpen = ""
		return
	}
	m.menuOpen = postID
}

// CloseMenu は開いているアクションメニューを閉じる。
func (m *Model) CloseMenu() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.menuOpen = ""
}

// Snapshot は現在の状態の複製を返す。
func (m *Model) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	views := make([]PostView, 0, len(m.posts))
	for _, p := range m.posts {
		v := PostView{
			Post:             p,
			Display:          p.Display(),
			MenuOpen:         m.menuOpen == p.ID,
			CommentsExpanded: m.expanded[p.ID],
			Draft:            m.drafts[p.ID],
			Reposting:        m.reposting.Held(p.EffectiveID()),
		}
		if c, ok := m.comments[p.ID]; ok {
			v.Comments = append([]model.Comment(nil), c...)
		}
		views = append(views, v)
	}
	return State{
		Posts:     views,
		Loading:   m.loading > 0,
		LastError: m.lastError,
	}
}

// Close はモデルを破棄する。実行中のリクエストはキャンセルされ、結果は反映されない。
// UI状態はすべて初期化する。
func (m *Model) Close() {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.menuOpen = ""
	m.expanded = make(map[string]bool)
	m.comments = make(map[string][]model.Comment)
	m.drafts = make(map[string]string)
	m.reposting.Reset()
}
