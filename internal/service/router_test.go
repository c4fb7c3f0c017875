package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Iceeze/BitrixAssistant/internal/adapter/bitrix"
	"github.com/Iceeze/BitrixAssistant/internal/domain"
	"github.com/Iceeze/BitrixAssistant/internal/domain/event"
	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
)

type routerFixture struct {
	store  *fakeStore
	portal *fakePortal
	sender *fakeSender
	router *Router
}

func newRouterFixture(portal *fakePortal) *routerFixture {
	store := newFakeStore()
	sender := &fakeSender{}
	logger := discardLogger()
	registry := NewRegistry(store, logger)
	tokens := NewTokenManager(store, portal, sender, logger)
	prefs := NewPreferences(store, newFakeCache(), 0, logger)
	return &routerFixture{
		store:  store,
		portal: portal,
		sender: sender,
		router: NewRouter(registry, tokens, prefs, portal, sender, nil, "corp.bitrix24.ru", 4, logger),
	}
}

func taskEvent(typ, memberID, taskID string) event.Inbound {
	return event.Inbound{
		Type:     typ,
		MemberID: memberID,
		Payload: map[string]any{
			"event": typ,
			"data": map[string]any{
				"FIELDS_AFTER": map[string]any{"ID": taskID},
			},
		},
	}
}

func TestRouteMissingMemberID(t *testing.T) {
	f := newRouterFixture(&fakePortal{})
	err := f.router.Route(context.Background(), event.Inbound{Type: "ontaskadd"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestRouteNoSubscribers(t *testing.T) {
	f := newRouterFixture(&fakePortal{})
	err := f.router.Route(context.Background(), taskEvent("ontaskadd", "ghost", "1"))
	if !errors.Is(err, ErrNoSubscribers) {
		t.Fatalf("err = %v, want ErrNoSubscribers", err)
	}
}

func TestRouteDeliversTaskAdd(t *testing.T) {
	portal := &fakePortal{
		getTask: func(taskID string) (*bitrix.Task, error) {
			return &bitrix.Task{
				ID: taskID, Title: "Fix login", Description: "desc",
				Priority: "1", Status: "2", ResponsibleID: "15",
				CreatorName: "Иван Иванов", ResponsibleName: "Анна Петрова",
			}, nil
		},
	}
	f := newRouterFixture(portal)
	_ = f.store.Put(context.Background(), testSubscriber(1))

	if err := f.router.Route(context.Background(), taskEvent("ontaskadd", "m1", "42")); err != nil {
		t.Fatalf("Route: %v", err)
	}

	msgs := f.sender.sent()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	text := msgs[0].Text
	if !strings.Contains(text, "🆕Создана🆕") || !strings.Contains(text, "Fix login") {
		t.Errorf("text = %q", text)
	}
	if !strings.Contains(text, "🆕 Ждет выполнения") {
		t.Errorf("status label missing: %q", text)
	}
	if !strings.Contains(text, "corp.bitrix24.ru/company/personal/user/15/tasks/task/view/42/") {
		t.Errorf("task link missing: %q", text)
	}
}

func TestRoutePreferenceGate(t *testing.T) {
	portal := &fakePortal{
		getTask: func(taskID string) (*bitrix.Task, error) {
			return &bitrix.Task{ID: taskID, ResponsibleID: "15"}, nil
		},
	}
	f := newRouterFixture(portal)
	_ = f.store.Put(context.Background(), testSubscriber(1))
	_, _ = f.store.TogglePreference(context.Background(), 1, subscriber.PrefTaskCreations)

	if err := f.router.Route(context.Background(), taskEvent("ontaskadd", "m1", "42")); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if n := len(f.sender.sent()); n != 0 {
		t.Errorf("messages = %d, want 0 (preference disabled)", n)
	}

	// Compound suffixes gate by the base category.
	if err := f.router.Route(context.Background(), taskEvent("ontaskadd_special", "m1", "42")); err != nil {
		t.Fatalf("Route compound: %v", err)
	}
	if n := len(f.sender.sent()); n != 0 {
		t.Errorf("messages = %d, want 0 (compound event gated)", n)
	}
}

func TestRouteTaskVisibility(t *testing.T) {
	tests := []struct {
		name          string
		responsibleID string
		isAdmin       bool
		delivered     bool
	}{
		{"responsible matches", "15", false, true},
		{"other responsible", "99", false, false},
		{"other responsible but admin", "99", true, true},
		{"no responsible", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			portal := &fakePortal{
				getTask: func(taskID string) (*bitrix.Task, error) {
					return &bitrix.Task{ID: taskID, ResponsibleID: tt.responsibleID}, nil
				},
			}
			f := newRouterFixture(portal)
			sub := testSubscriber(1)
			sub.IsAdmin = tt.isAdmin
			_ = f.store.Put(context.Background(), sub)

			if err := f.router.Route(context.Background(), taskEvent("ontaskadd", "m1", "42")); err != nil {
				t.Fatalf("Route: %v", err)
			}
			if got := len(f.sender.sent()) == 1; got != tt.delivered {
				t.Errorf("delivered = %v, want %v", got, tt.delivered)
			}
		})
	}
}

func TestRouteDealVisibility(t *testing.T) {
	tests := []struct {
		name         string
		assignedByID string
		isAdmin      bool
		delivered    bool
	}{
		{"assigned matches", "15", false, true},
		{"other assignee", "99", false, false},
		{"admin sees others", "99", true, true},
		{"no assignee notifies nobody", "", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			portal := &fakePortal{
				getDeal: func(dealID string) (*bitrix.Deal, error) {
					return &bitrix.Deal{ID: dealID, Title: "Contract", AssignedByID: tt.assignedByID}, nil
				},
			}
			f := newRouterFixture(portal)
			sub := testSubscriber(1)
			sub.IsAdmin = tt.isAdmin
			_ = f.store.Put(context.Background(), sub)

			ev := event.Inbound{
				Type:     "oncrmdealadd",
				MemberID: "m1",
				Payload: map[string]any{
					"data": map[string]any{"FIELDS": map[string]any{"ID": "7"}},
				},
			}
			if err := f.router.Route(context.Background(), ev); err != nil {
				t.Fatalf("Route: %v", err)
			}
			if got := len(f.sender.sent()) == 1; got != tt.delivered {
				t.Errorf("delivered = %v, want %v", got, tt.delivered)
			}
		})
	}
}

func TestRouteCommentFollowsTaskResponsible(t *testing.T) {
	portal := &fakePortal{
		getComment: func(taskID, commentID string) (*bitrix.Comment, error) {
			return &bitrix.Comment{ID: commentID, AuthorName: "Иван", Text: "готово"}, nil
		},
		getTask: func(taskID string) (*bitrix.Task, error) {
			return &bitrix.Task{ID: taskID, ResponsibleID: "15"}, nil
		},
	}
	f := newRouterFixture(portal)
	_ = f.store.Put(context.Background(), testSubscriber(1))

	ev := event.Inbound{
		Type:     "ontaskcommentadd",
		MemberID: "m1",
		Payload: map[string]any{
			"data": map[string]any{
				"FIELDS_AFTER": map[string]any{"ID": "5", "TASK_ID": "42"},
			},
		},
	}
	if err := f.router.Route(context.Background(), ev); err != nil {
		t.Fatalf("Route: %v", err)
	}
	msgs := f.sender.sent()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "💬 Новый комментарий к задаче") ||
		!strings.Contains(msgs[0].Text, "готово") {
		t.Errorf("text = %q", msgs[0].Text)
	}
}

func TestRouteDeleteEventsRenderNothing(t *testing.T) {
	f := newRouterFixture(&fakePortal{})
	_ = f.store.Put(context.Background(), testSubscriber(1))

	for _, typ := range []string{"ontaskdelete", "oncrmdealdelete"} {
		ev := event.Inbound{Type: typ, MemberID: "m1", Payload: map[string]any{}}
		if err := f.router.Route(context.Background(), ev); err != nil {
			t.Fatalf("Route %s: %v", typ, err)
		}
	}
	if n := len(f.sender.sent()); n != 0 {
		t.Errorf("messages = %d, want 0 for delete events", n)
	}
}

func TestRouteFansOutToAllSubscribers(t *testing.T) {
	portal := &fakePortal{
		getTask: func(taskID string) (*bitrix.Task, error) {
			return &bitrix.Task{ID: taskID}, nil
		},
	}
	f := newRouterFixture(portal)
	for chatID := int64(1); chatID <= 5; chatID++ {
		sub := testSubscriber(chatID)
		sub.UserID = 100 + chatID
		_ = f.store.Put(context.Background(), sub)
	}

	if err := f.router.Route(context.Background(), taskEvent("ontaskadd", "m1", "42")); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if n := len(f.sender.sent()); n != 5 {
		t.Errorf("messages = %d, want 5", n)
	}
}
