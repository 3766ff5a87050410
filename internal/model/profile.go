package model

import "encoding/json"

// Profile はサーバーが返す認証済みユーザーのプロフィール文書を表す。
// 型付けしていないフィールドはRawに元のJSONとして保持する。
type Profile struct {
	ID                string
	Name              string
	Email             string
	Picture           string
	Kind              string
	Bio               string
	FollowersCount    int
	FollowingCount    int
	PostsCount        int
	NotificationCount int
	Raw               json.RawMessage
}

// Summary はプロフィールを作成者サマリーに変換する。
func (p *Profile) Summary() AuthorSummary {
	return AuthorSummary{
		ID:      p.ID,
		Name:    p.Name,
		Picture: p.Picture,
		Kind:    p.Kind,
	}
}

// ProfileUpdate はプロフィール更新リクエストの内容。
// nilのフィールドは送信しない。
type ProfileUpdate struct {
	Name        *string
	Bio         *string
	Kind        *string
	PicturePath string // ローカルファイルパス。空の場合は画像を更新しない
}
