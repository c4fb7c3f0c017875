package service

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRegistrationUnbindsBeforeBinding(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	portal := &fakePortal{
		boundHandlers: func(event string) ([]string, error) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, "get:"+event)
			if event == "OnTaskAdd" {
				return []string{"https://old.example/callback"}, nil
			}
			return nil, nil
		},
		unbindHandler: func(event, handler string) error {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, "unbind:"+event+":"+handler)
			return nil
		},
		bindHandler: func(event, handler string) error {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, "bind:"+event+":"+handler)
			return nil
		},
	}

	r := NewRegistration(portal, "https://relay.example", discardLogger())
	if err := r.EnsureRegistered(context.Background(), "acme.bitrix24.ru", "tok"); err != nil {
		t.Fatalf("EnsureRegistered: %v", err)
	}

	// 5 gets, 1 unbind, 5 binds; every unbind precedes every bind.
	if len(calls) != 11 {
		t.Fatalf("calls = %v", calls)
	}
	lastUnbind, firstBind := -1, len(calls)
	for i, c := range calls {
		switch {
		case len(c) > 6 && c[:6] == "unbind":
			lastUnbind = i
		case len(c) > 4 && c[:4] == "bind":
			if i < firstBind {
				firstBind = i
			}
		}
	}
	if lastUnbind > firstBind {
		t.Errorf("unbind at %d after first bind at %d: %v", lastUnbind, firstBind, calls)
	}
	for _, c := range calls {
		if c == "bind:OnTaskAdd:https://relay.example/callback" {
			return
		}
	}
	t.Errorf("expected bind of relay handler, calls = %v", calls)
}

func TestRegistrationOncePerDomain(t *testing.T) {
	var mu sync.Mutex
	gets := 0
	portal := &fakePortal{
		boundHandlers: func(string) ([]string, error) {
			mu.Lock()
			defer mu.Unlock()
			gets++
			return nil, nil
		},
	}
	r := NewRegistration(portal, "https://relay.example", discardLogger())

	ctx := context.Background()
	if err := r.EnsureRegistered(ctx, "acme.bitrix24.ru", "tok"); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := r.EnsureRegistered(ctx, "acme.bitrix24.ru", "tok"); err != nil {
		t.Fatalf("second: %v", err)
	}
	if gets != len(portalEvents) {
		t.Errorf("event.get calls = %d, want %d (second run skipped)", gets, len(portalEvents))
	}

	if err := r.EnsureRegistered(ctx, "other.bitrix24.ru", "tok"); err != nil {
		t.Fatalf("other domain: %v", err)
	}
	if gets != 2*len(portalEvents) {
		t.Errorf("event.get calls = %d, want %d (new domain registers)", gets, 2*len(portalEvents))
	}
}

func TestRegistrationListFailureAborts(t *testing.T) {
	portal := &fakePortal{
		boundHandlers: func(string) ([]string, error) {
			return nil, errors.New("portal down")
		},
	}
	r := NewRegistration(portal, "https://relay.example", discardLogger())

	if err := r.EnsureRegistered(context.Background(), "acme.bitrix24.ru", "tok"); err == nil {
		t.Fatal("expected error")
	}

	// Failure must not mark the domain registered.
	bound := 0
	portal.boundHandlers = func(string) ([]string, error) { bound++; return nil, nil }
	if err := r.EnsureRegistered(context.Background(), "acme.bitrix24.ru", "tok"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if bound != len(portalEvents) {
		t.Errorf("retry event.get calls = %d, want %d", bound, len(portalEvents))
	}
}
