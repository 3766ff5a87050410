package apiclient

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/kojeffi/tbookers/internal/model"
)

// decodeEach はリスト内の各要素をTにデコードしてconvで変換する。
func decodeEach[T any, M any](body []byte, key string, conv func(*T) M) ([]M, error) {
	items, err := decodeList(body, key)
	if err != nil {
		return nil, err
	}
	out := make([]M, 0, len(items))
	for _, raw := range items {
		var w T
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, model.NewUnexpectedResponseError(key + " entry is malformed")
		}
		out = append(out, conv(&w))
	}
	return out, nil
}

// Groups はグループ一覧を取得する。
func (c *Client) Groups(ctx context.Context) ([]model.Group, error) {
	body, err := c.get(ctx, "/groups", "GET /groups")
	if err != nil {
		return nil, err
	}
	return decodeEach(body, "groups", func(w *wireGroup) model.Group {
		return model.Group{
			ID:           string(w.ID),
			Slug:         w.Slug,
			Name:         w.Name,
			Description:  w.Description,
			MembersCount: int(w.MembersCount),
			IsMember:     bool(w.IsMember),
		}
	})
}

// JoinGroup はグループに参加する。
func (c *Client) JoinGroup(ctx context.Context, slug string) error {
	_, err := c.post(ctx, "/groups/"+url.PathEscape(slug)+"/join", "POST /groups/{slug}/join", nil)
	return err
}

// LiveClasses はライブ授業一覧を取得する。
func (c *Client) LiveClasses(ctx context.Context) ([]model.LiveClass, error) {
	body, err := c.get(ctx, "/live-classes", "GET /live-classes")
	if err != nil {
		return nil, err
	}
	return decodeEach(body, "live_classes", func(w *wireLiveClass) model.LiveClass {
		instructor := w.Instructor
		if instructor == nil {
			instructor = w.User
		}
		return model.LiveClass{
			ID:           string(w.ID),
			Title:        w.Title,
			Description:  w.Description,
			Instructor:   instructor.summary(),
			StartsAt:     parseTimePtr(w.StartsAt, w.ScheduledAt),
			Capacity:     int(w.Capacity),
			IsRegistered: bool(w.IsRegistered),
		}
	})
}

// RegisterLiveClass はライブ授業に参加登録する。
func (c *Client) RegisterLiveClass(ctx context.Context, id string) error {
	_, err := c.post(ctx, "/live-classes/"+url.PathEscape(id)+"/register", "POST /live-classes/{id}/register", nil)
	return err
}

// LearningResources は教材一覧を取得する。
func (c *Client) LearningResources(ctx context.Context) ([]model.LearningResource, error) {
	body, err := c.get(ctx, "/learning-resources", "GET /learning-resources")
	if err != nil {
		return nil, err
	}
	return decodeEach(body, "resources", func(w *wireResource) model.LearningResource {
		author := w.User
		if author == nil {
			author = w.Author
		}
		price, _ := strconv.ParseFloat(string(w.Price), 64)
		r := model.LearningResource{
			ID:          string(w.ID),
			Title:       w.Title,
			Description: w.Description,
			Price:       price,
			Currency:    w.Currency,
			Author:      author.summary(),
			CreatedAt:   parseTime(w.CreatedAt),
		}
		if refs := model.NewMediaRefs([]string{w.FilePath}); len(refs) > 0 {
			r.File = &refs[0]
		}
		return r
	})
}

// Notifications は通知一覧を取得する。
func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	body, err := c.get(ctx, "/notifications", "GET /notifications")
	if err != nil {
		return nil, err
	}
	return decodeEach(body, "notifications", func(w *wireNotification) model.Notification {
		return model.Notification{
			ID:        string(w.ID),
			Kind:      w.Type,
			Message:   w.message(),
			Read:      bool(w.Read) || (w.ReadAt != nil && *w.ReadAt != ""),
			CreatedAt: parseTime(w.CreatedAt),
		}
	})
}
