package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/kojeffi/tbookers/internal/model"
	"github.com/kojeffi/tbookers/internal/security"
)

// mockAPI はAPIのテスト用モック。
type mockAPI struct {
	groupsFn        func(ctx context.Context) ([]model.Group, error)
	notificationsFn func(ctx context.Context) ([]model.Notification, error)
	joined          []string
	registered      []string
}

func (m *mockAPI) Groups(ctx context.Context) ([]model.Group, error) {
	if m.groupsFn != nil {
		return m.groupsFn(ctx)
	}
	return nil, nil
}

func (m *mockAPI) JoinGroup(ctx context.Context, slug string) error {
	m.joined = append(m.joined, slug)
	return nil
}

func (m *mockAPI) LiveClasses(ctx context.Context) ([]model.LiveClass, error) {
	return []model.LiveClass{{ID: "1", Description: "<b>Algebra</b>"}}, nil
}

func (m *mockAPI) RegisterLiveClass(ctx context.Context, id string) error {
	m.registered = append(m.registered, id)
	return nil
}

func (m *mockAPI) LearningResources(ctx context.Context) ([]model.LearningResource, error) {
	return []model.LearningResource{{ID: "r1", Description: "notes"}}, nil
}

func (m *mockAPI) Notifications(ctx context.Context) ([]model.Notification, error) {
	if m.notificationsFn != nil {
		return m.notificationsFn(ctx)
	}
	return nil, nil
}

type mockCounter struct {
	values []int
}

func (m *mockCounter) UpdateNotificationCount(n int) {
	m.values = append(m.values, n)
}

func newTestService(api *mockAPI, counter *mockCounter) *Service {
	return NewService(api, counter, security.NewContentSanitizer(), slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestNotifications_UpdatesUnreadCount(t *testing.T) {
	api := &mockAPI{notificationsFn: func(context.Context) ([]model.Notification, error) {
		return []model.Notification{{ID: "1"}, {ID: "2", Read: true}, {ID: "3"}}, nil
	}}
	counter := &mockCounter{}
	s := newTestService(api, counter)

	ns, err := s.Notifications(context.Background())
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(ns) != 3 {
		t.Errorf("len = %d", len(ns))
	}
	if len(counter.values) != 1 || counter.values[0] != 2 {
		t.Errorf("counter = %v, want [2]", counter.values)
	}
}

func TestNotifications_FailureKeepsCount(t *testing.T) {
	api := &mockAPI{notificationsFn: func(context.Context) ([]model.Notification, error) {
		return nil, &model.TransportError{Err: errors.New("down")}
	}}
	counter := &mockCounter{}
	s := newTestService(api, counter)

	if _, err := s.Notifications(context.Background()); err == nil {
		t.Fatal("エラーが返されるべき")
	}
	if len(counter.values) != 0 {
		t.Error("失敗時は未読数を更新しないべき")
	}
}

func TestJoinGroup_RequiresSlug(t *testing.T) {
	api := &mockAPI{}
	s := newTestService(api, &mockCounter{})

	if err := s.JoinGroup(context.Background(), " "); model.Classify(err) != model.CategoryValidation {
		t.Errorf("err = %v, want validation", err)
	}
	if len(api.joined) != 0 {
		t.Error("リクエストが送信された")
	}

	if err := s.JoinGroup(context.Background(), "math"); err != nil {
		t.Fatalf("JoinGroup: %v", err)
	}
	if len(api.joined) != 1 || api.joined[0] != "math" {
		t.Errorf("joined = %v", api.joined)
	}
}

func TestRegisterLiveClass_RequiresID(t *testing.T) {
	api := &mockAPI{}
	s := newTestService(api, &mockCounter{})

	if err := s.RegisterLiveClass(context.Background(), ""); model.Classify(err) != model.CategoryValidation {
		t.Errorf("err = %v, want validation", err)
	}
	if err := s.RegisterLiveClass(context.Background(), "7"); err != nil {
		t.Fatalf("RegisterLiveClass: %v", err)
	}
	if len(api.registered) != 1 || api.registered[0] != "7" {
		t.Errorf("registered = %v", api.registered)
	}
}

func TestLiveClasses_SanitizesDescription(t *testing.T) {
	s := newTestService(&mockAPI{}, &mockCounter{})

	classes, err := s.LiveClasses(context.Background())
	if err != nil {
		t.Fatalf("LiveClasses: %v", err)
	}
	if classes[0].Description != "Algebra" {
		t.Errorf("Description = %q, want Algebra", classes[0].Description)
	}
}
