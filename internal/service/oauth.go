package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
	"github.com/Iceeze/BitrixAssistant/internal/port/chat"
)

// OAuth completes the authorization-code flow started from /start and
// turns it into a subscription.
type OAuth struct {
	portal       Portal
	registry     *Registry
	registration *Registration
	sender       chat.Sender
	clientID     string
	homeDomain   string
	redirectURI  string
	now          func() time.Time
	logger       *slog.Logger
}

// NewOAuth creates the OAuth completion service.
func NewOAuth(portal Portal, registry *Registry, registration *Registration, sender chat.Sender, clientID, homeDomain, redirectURI string, logger *slog.Logger) *OAuth {
	return &OAuth{
		portal:       portal,
		registry:     registry,
		registration: registration,
		sender:       sender,
		clientID:     clientID,
		homeDomain:   homeDomain,
		redirectURI:  redirectURI,
		now:          time.Now,
		logger:       logger,
	}
}

// AuthorizeURL builds the portal authorization link for a chat. The
// chat id travels in the state parameter and comes back on the
// redirect.
func (o *OAuth) AuthorizeURL(chatID int64) string {
	return fmt.Sprintf(
		"https://%s/oauth/authorize/?client_id=%s&response_type=code&state=%d&redirect_uri=%s",
		o.homeDomain, o.clientID, chatID, url.QueryEscape(o.redirectURI))
}

// Complete exchanges the code, registers webhooks for a first-seen
// domain, stores the subscription, and confirms in the chat. A failed
// webhook registration is logged but does not fail the authorization;
// it is retried on the domain's next authorization.
func (o *OAuth) Complete(ctx context.Context, chatID int64, code, domain, memberID string) error {
	grant, err := o.portal.ExchangeCode(ctx, domain, code)
	if err != nil {
		return fmt.Errorf("exchange code for chat %d: %w", chatID, err)
	}

	if err := o.registration.EnsureRegistered(ctx, domain, grant.AccessToken); err != nil {
		o.logger.Error("webhook registration failed", "domain", domain, "error", err)
	}

	profile, err := o.portal.Profile(ctx, domain, grant.AccessToken)
	if err != nil {
		return fmt.Errorf("fetch profile for chat %d: %w", chatID, err)
	}

	sub := &subscriber.Subscriber{
		ChatID:       chatID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    o.now().Add(time.Duration(grant.ExpiresIn) * time.Second),
		Domain:       domain,
		MemberID:     memberID,
		UserID:       profile.ID,
		UserName:     profile.Name,
		IsAdmin:      profile.IsAdmin,
	}
	if err := o.registry.Subscribe(ctx, sub); err != nil {
		return err
	}

	if err := o.sender.Send(ctx, chat.Message{ChatID: chatID, Text: "✅ Авторизация успешна!"}); err != nil {
		o.logger.Error("authorization confirmation failed", "chat_id", chatID, "error", err)
	}
	return nil
}
