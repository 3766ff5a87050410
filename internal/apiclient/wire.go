package apiclient

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/kojeffi/tbookers/internal/model"
)

// flexString は数値または文字列のJSON値を文字列として受け取る。
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// flexInt は数値または数値文字列のJSON値を整数として受け取る。解釈できない値は0になる。
type flexInt int

func (i *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		*i = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		*i = 0
		return nil
	}
	*i = flexInt(f)
	return nil
}

// flexBool は真偽値、0/1、"true"/"false" を受け取る。
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(bytes.TrimSpace(data)), `"`) {
	case "true", "1":
		*b = true
	default:
		*b = false
	}
	return nil
}

// flexPaths はmedia_pathの揺れ（文字列、配列、JSON配列を含む文字列、null）を
// 順序付きのパス列に正規化する。
type flexPaths []string

func (p *flexPaths) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*p = nil
		return nil
	case data[0] == '[':
		var raw []flexString
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make([]string, 0, len(raw))
		for _, r := range raw {
			out = append(out, string(r))
		}
		*p = out
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "[") {
			var inner []string
			if err := json.Unmarshal([]byte(s), &inner); err == nil {
				*p = inner
				return nil
			}
		}
		if s == "" {
			*p = nil
			return nil
		}
		*p = []string{s}
		return nil
	default:
		*p = nil
		return nil
	}
}

type wireUser struct {
	ID             flexString `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	ProfilePicture string     `json:"profile_picture"`
	Picture        string     `json:"picture"`
	Avatar         string     `json:"avatar"`
	Kind           string     `json:"kind"`
	Type           string     `json:"type"`
	UserType       string     `json:"user_type"`
	Role           string     `json:"role"`
	Bio            string     `json:"bio"`

	FollowersCount    flexInt `json:"followers_count"`
	FollowingCount    flexInt `json:"following_count"`
	PostsCount        flexInt `json:"posts_count"`
	NotificationCount flexInt `json:"notification_count"`
	UnreadCount       flexInt `json:"unread_notifications_count"`
}

func (u *wireUser) summary() model.AuthorSummary {
	if u == nil {
		return model.AuthorSummary{}
	}
	return model.AuthorSummary{
		ID:      string(u.ID),
		Name:    u.Name,
		Picture: firstNonEmpty(u.ProfilePicture, u.Picture, u.Avatar),
		Kind:    firstNonEmpty(u.Kind, u.UserType, u.Type, u.Role),
	}
}

type wireComment struct {
	ID        flexString `json:"id"`
	User      *wireUser  `json:"user"`
	Author    *wireUser  `json:"author"`
	Content   string     `json:"content"`
	Body      string     `json:"body"`
	CreatedAt string     `json:"created_at"`
}

func (c wireComment) toModel() model.Comment {
	author := c.User
	if author == nil {
		author = c.Author
	}
	return model.Comment{
		ID:        string(c.ID),
		Author:    author.summary(),
		Content:   firstNonEmpty(c.Content, c.Body),
		CreatedAt: parseTime(c.CreatedAt),
	}
}

type wirePost struct {
	ID            flexString    `json:"id"`
	User          *wireUser     `json:"user"`
	Author        *wireUser     `json:"author"`
	Content       string        `json:"content"`
	Body          string        `json:"body"`
	MediaPath     flexPaths     `json:"media_path"`
	Media         flexPaths     `json:"media"`
	CreatedAt     string        `json:"created_at"`
	LikesCount    *flexInt      `json:"likes_count"`
	IsLiked       *flexBool     `json:"is_liked"`
	Liked         *flexBool     `json:"liked"`
	CommentsCount *flexInt      `json:"comments_count"`
	RepostsCount  *flexInt      `json:"reposts_count"`
	Comments      []wireComment `json:"comments"`
	OriginalPost  *wirePost     `json:"original_post"`
	Reposter      *wireUser     `json:"reposter"`
}

func (w *wirePost) toModel() model.Post {
	author := w.User
	if author == nil {
		author = w.Author
	}
	paths := w.MediaPath
	if len(paths) == 0 {
		paths = w.Media
	}

	p := model.Post{
		ID:             string(w.ID),
		Author:         author.summary(),
		Body:           firstNonEmpty(w.Content, w.Body),
		Media:          model.NewMediaRefs(paths),
		CreatedAt:      parseTime(w.CreatedAt),
		LikeCount:      intValue(w.LikesCount),
		ViewerHasLiked: boolValue(w.IsLiked) || boolValue(w.Liked),
		CommentCount:   intValue(w.CommentsCount),
		RepostCount:    intValue(w.RepostsCount),
	}
	for _, c := range w.Comments {
		p.Comments = append(p.Comments, c.toModel())
	}
	if p.CommentCount == 0 && len(p.Comments) > 0 {
		p.CommentCount = len(p.Comments)
	}
	if w.OriginalPost != nil && w.OriginalPost.ID != "" {
		orig := w.OriginalPost.toModel()
		w.OriginalPost.fillAbsentCounters(&orig, &p)
		p.RepostOf = &orig
		r := w.Reposter
		if r == nil {
			r = author
		}
		s := r.summary()
		p.Reposter = &s
	}
	return p
}

// fillAbsentCounters は元投稿の応答にカウンタといいね状態のキーがない場合に限り、
// リポスト側の値で補う。キーがあれば0やfalseでも元投稿の値を使う。
func (w *wirePost) fillAbsentCounters(orig, wrapper *model.Post) {
	if w.LikesCount == nil {
		orig.LikeCount = wrapper.LikeCount
	}
	if w.IsLiked == nil && w.Liked == nil {
		orig.ViewerHasLiked = wrapper.ViewerHasLiked
	}
	if w.CommentsCount == nil && len(w.Comments) == 0 {
		orig.CommentCount = wrapper.CommentCount
	}
	if w.RepostsCount == nil {
		orig.RepostCount = wrapper.RepostCount
	}
}

func intValue(v *flexInt) int {
	if v == nil {
		return 0
	}
	return int(*v)
}

func boolValue(v *flexBool) bool {
	return v != nil && bool(*v)
}

type wireGroup struct {
	ID           flexString `json:"id"`
	Slug         string     `json:"slug"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	MembersCount flexInt    `json:"members_count"`
	IsMember     flexBool   `json:"is_member"`
}

type wireLiveClass struct {
	ID           flexString `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Instructor   *wireUser  `json:"instructor"`
	User         *wireUser  `json:"user"`
	StartsAt     string     `json:"starts_at"`
	ScheduledAt  string     `json:"scheduled_at"`
	Capacity     flexInt    `json:"capacity"`
	IsRegistered flexBool   `json:"is_registered"`
}

type wireResource struct {
	ID          flexString `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       flexString `json:"price"`
	Currency    string     `json:"currency"`
	User        *wireUser  `json:"user"`
	Author      *wireUser  `json:"author"`
	FilePath    string     `json:"file_path"`
	CreatedAt   string     `json:"created_at"`
}

type wireNotification struct {
	ID        flexString      `json:"id"`
	Type      string          `json:"type"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Read      flexBool        `json:"read"`
	ReadAt    *string         `json:"read_at"`
	CreatedAt string          `json:"created_at"`
}

// message は通知本文を返す。Laravel形式ではdata.messageに入っている。
func (n *wireNotification) message() string {
	if n.Message != "" {
		return n.Message
	}
	var data struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(n.Data, &data); err == nil && data.Message != "" {
		return data.Message
	}
	var s string
	if err := json.Unmarshal(n.Data, &s); err == nil {
		return s
	}
	return ""
}

// decodeList はレスポンスボディから要素の配列を取り出す。
// 素の配列、{"data": [...]}、{"<key>": [...]}、およびページネーションの
// {"data": {"data": [...]}} を受け付ける。
func decodeList(body []byte, keys ...string) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if body[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	for _, k := range append([]string{"data"}, keys...) {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '{' {
			return decodeList(raw, keys...)
		}
		if len(raw) > 0 && raw[0] == '[' {
			return decodeList(raw)
		}
	}
	return nil, model.NewUnexpectedResponseError("list not found")
}

// decodeObject はレスポンスボディから単一のオブジェクトを取り出す。
// {"<key>": {...}} または {"data": {...}} で包まれている場合は中身を返す。
func decodeObject(body []byte, keys ...string) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, model.NewUnexpectedResponseError("object expected")
	}
	for _, k := range append(keys, "data") {
		raw, ok := obj[k]
		if ok && len(bytes.TrimSpace(raw)) > 0 && bytes.TrimSpace(raw)[0] == '{' {
			return raw, nil
		}
	}
	return json.RawMessage(body), nil
}

// decodeToken はログイン・登録レスポンスからトークンを取り出す。
func decodeToken(body []byte) (string, error) {
	var resp struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
		Data        *struct {
			Token       string `json:"token"`
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", model.NewUnexpectedResponseError("token response is not JSON")
	}
	token := firstNonEmpty(resp.Token, resp.AccessToken)
	if token == "" && resp.Data != nil {
		token = firstNonEmpty(resp.Data.Token, resp.Data.AccessToken)
	}
	if token == "" {
		return "", model.NewUnexpectedResponseError("token missing")
	}
	return token, nil
}

func decodeProfile(body []byte) (*model.Profile, error) {
	raw, err := decodeObject(body, "user", "profile")
	if err != nil {
		return nil, err
	}
	var u wireUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, model.NewUnexpectedResponseError("profile is malformed")
	}
	if u.ID == "" {
		return nil, model.NewUnexpectedResponseError("profile id missing")
	}

	count := int(u.NotificationCount)
	if count == 0 {
		count = int(u.UnreadCount)
	}
	s := u.summary()
	return &model.Profile{
		ID:                s.ID,
		Name:              s.Name,
		Email:             u.Email,
		Picture:           s.Picture,
		Kind:              s.Kind,
		Bio:               u.Bio,
		FollowersCount:    int(u.FollowersCount),
		FollowingCount:    int(u.FollowingCount),
		PostsCount:        int(u.PostsCount),
		NotificationCount: count,
		Raw:               append(json.RawMessage(nil), raw...),
	}, nil
}

// serverMessage はエラーレスポンスからサーバーのメッセージを取り出す。
// バリデーションエラーの場合は最初の項目のメッセージを優先する。
func serverMessage(body []byte) string {
	var resp struct {
		Message string          `json:"message"`
		Error   string          `json:"error"`
		Errors  json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return firstNonEmpty(firstFieldError(resp.Errors), resp.Message, resp.Error)
}

// firstFieldError はLaravel形式のフィールド別エラー {"field": ["msg", ...]} から
// サーバーが返した順序で最初のメッセージを取り出す。
func firstFieldError(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return ""
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil { // フィールド名
			return ""
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return ""
		}
		var msgs []string
		if err := json.Unmarshal(value, &msgs); err == nil {
			for _, m := range msgs {
				if m != "" {
					return m
				}
			}
			continue
		}
		var msg string
		if err := json.Unmarshal(value, &msg); err == nil && msg != "" {
			return msg
		}
	}
	return ""
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseTimePtr(values ...string) *time.Time {
	for _, v := range values {
		if t := parseTime(v); !t.IsZero() {
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
