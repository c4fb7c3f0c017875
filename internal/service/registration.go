package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// portalEvents are the events the relay binds its webhook to, in the
// casing the portal expects.
var portalEvents = []string{
	"OnTaskAdd",
	"OnTaskUpdate",
	"OnTaskCommentAdd",
	"OnCrmDealAdd",
	"OnCrmDealUpdate",
}

// Registration binds the relay's callback URL to portal events, once
// per domain per process. Stale handlers left by earlier deployments
// are unbound first so each event carries exactly one handler.
type Registration struct {
	portal     Portal
	handlerURL string
	logger     *slog.Logger

	mu         sync.Mutex
	registered map[string]bool
}

// NewRegistration creates the registration service. webhookBase is the
// relay's public base URL.
func NewRegistration(portal Portal, webhookBase string, logger *slog.Logger) *Registration {
	return &Registration{
		portal:     portal,
		handlerURL: webhookBase + "/callback",
		logger:     logger,
		registered: make(map[string]bool),
	}
}

// EnsureRegistered runs the bind protocol for the domain unless it
// already succeeded in this process.
func (r *Registration) EnsureRegistered(ctx context.Context, domain, token string) error {
	r.mu.Lock()
	done := r.registered[domain]
	r.mu.Unlock()
	if done {
		return nil
	}

	if err := r.register(ctx, domain, token); err != nil {
		return err
	}

	r.mu.Lock()
	r.registered[domain] = true
	r.mu.Unlock()
	return nil
}

// register unbinds every existing handler for each event, then binds
// this relay's handler. A failed handler listing aborts; individual
// unbind and bind failures are logged and skipped so one broken event
// does not block the rest.
func (r *Registration) register(ctx context.Context, domain, token string) error {
	for _, ev := range portalEvents {
		handlers, err := r.portal.BoundHandlers(ctx, domain, token, ev)
		if err != nil {
			return fmt.Errorf("list handlers for %s on %s: %w", ev, domain, err)
		}
		for _, h := range handlers {
			if err := r.portal.UnbindHandler(ctx, domain, token, ev, h); err != nil {
				r.logger.Warn("unbind handler failed",
					"domain", domain, "event", ev, "handler", h, "error", err)
			}
		}
	}

	for _, ev := range portalEvents {
		if err := r.portal.BindHandler(ctx, domain, token, ev, r.handlerURL); err != nil {
			r.logger.Error("bind handler failed",
				"domain", domain, "event", ev, "error", err)
			continue
		}
		r.logger.Info("event handler bound", "domain", domain, "event", ev)
	}
	return nil
}
