package apiclient

import (
	"context"
	"net/http"
	"strings"

	"github.com/kojeffi/tbookers/internal/model"
)

// RegisterRequest はユーザー登録の入力。
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Kind     string // 例: "student", "teacher"
}

// Login はメールアドレスとパスワードでログインし、発行されたクレデンシャルを返す。
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body, err := c.postAnonymous(ctx, "/login", "POST /login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	return decodeToken(body)
}

// Register はユーザーを登録し、発行されたクレデンシャルを返す。
func (c *Client) Register(ctx context.Context, in RegisterRequest) (string, error) {
	payload := map[string]string{
		"name":                  in.Name,
		"email":                 in.Email,
		"password":              in.Password,
		"password_confirmation": in.Password,
	}
	if in.Kind != "" {
		payload["type"] = in.Kind
	}
	body, err := c.postAnonymous(ctx, "/register", "POST /register", payload)
	if err != nil {
		return "", err
	}
	return decodeToken(body)
}

// FetchProfile はcredentialで認証したユーザーのプロフィールを取得する。
// セッションストアがクレデンシャル確定前に呼ぶため、クレデンシャルは引数で受け取る。
func (c *Client) FetchProfile(ctx context.Context, credential string) (*model.Profile, error) {
	body, err := c.do(ctx, &request{
		method:     http.MethodGet,
		path:       "/profile",
		endpoint:   "GET /profile",
		credential: &credential,
	})
	if err != nil {
		return nil, err
	}
	return decodeProfile(body)
}

// UpdateProfile はプロフィールを更新する。画像はmultipartで送信する。
func (c *Client) UpdateProfile(ctx context.Context, in model.ProfileUpdate) error {
	var fields []formField
	if in.Name != nil {
		fields = append(fields, formField{"name", strings.TrimSpace(*in.Name)})
	}
	if in.Bio != nil {
		fields = append(fields, formField{"bio", *in.Bio})
	}
	if in.Kind != nil {
		fields = append(fields, formField{"type", *in.Kind})
	}
	var files []formFile
	if in.PicturePath != "" {
		files = append(files, formFile{field: "profile_picture", path: in.PicturePath})
	}

	r, err := multipartRequest("/profile.update", "POST /profile.update", fields, files)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, r)
	return err
}
