// Package catalog はグループ、ライブ授業、教材、通知の一覧と参加操作を提供する。
package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kojeffi/tbookers/internal/model"
	"github.com/kojeffi/tbookers/internal/security"
)

// API はカタログ系のサーバーAPI。
type API interface {
	Groups(ctx context.Context) ([]model.Group, error)
	JoinGroup(ctx context.Context, slug string) error
	LiveClasses(ctx context.Context) ([]model.LiveClass, error)
	RegisterLiveClass(ctx context.Context, id string) error
	LearningResources(ctx context.Context) ([]model.LearningResource, error)
	Notifications(ctx context.Context) ([]model.Notification, error)
}

// NotificationCounter は未読通知数を保持するセッションストア。
type NotificationCounter interface {
	UpdateNotificationCount(n int)
}

// Service はカタログ系の操作を提供する。
type Service struct {
	api       API
	counter   NotificationCounter
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(api API, counter NotificationCounter, sanitizer security.ContentSanitizerService, logger *slog.Logger) *Service {
	return &Service{
		api:       api,
		counter:   counter,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// Groups はグループ一覧を取得する。
func (s *Service) Groups(ctx context.Context) ([]model.Group, error) {
	groups, err := s.api.Groups(ctx)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].Description = s.sanitizer.Text(groups[i].Description)
	}
	return groups, nil
}

// JoinGroup はグループに参加する。
func (s *Service) JoinGroup(ctx context.Context, slug string) error {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return model.NewValidationError("グループを指定してください。")
	}
	if err := s.api.JoinGroup(ctx, slug); err != nil {
		return err
	}
	s.logger.Info("joined group", slog.String("slug", slug))
	return nil
}

// LiveClasses はライブ授業一覧を取得する。
func (s *Service) LiveClasses(ctx context.Context) ([]model.LiveClass, error) {
	classes, err := s.api.LiveClasses(ctx)
	if err != nil {
		return nil, err
	}
	for i := range classes {
		classes[i].Description = s.sanitizer.Text(classes[i].Description)
	}
	return classes, nil
}

// RegisterLiveClass はライブ授業に参加登録する。
func (s *Service) RegisterLiveClass(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.NewValidationError("ライブ授業を指定してください。")
	}
	if err := s.api.RegisterLiveClass(ctx, id); err != nil {
		return err
	}
	s.logger.Info("registered for live class", slog.String("class_id", id))
	return nil
}

// LearningResources は教材一覧を取得する。
func (s *Service) LearningResources(ctx context.Context) ([]model.LearningResource, error) {
	resources, err := s.api.LearningResources(ctx)
	if err != nil {
		return nil, err
	}
	for i := range resources {
		resources[i].Description = s.sanitizer.Text(resources[i].Description)
	}
	return resources, nil
}

// Notifications は通知一覧を取得し、セッションの未読通知数を更新する。
func (s *Service) Notifications(ctx context.Context) ([]model.Notification, error) {
	ns, err := s.api.Notifications(ctx)
	if err != nil {
		return nil, err
	}
	for i := range ns {
		ns[i].Message = s.sanitizer.Text(ns[i].Message)
	}
	s.counter.UpdateNotificationCount(model.CountUnread(ns))
	return ns, nil
}
