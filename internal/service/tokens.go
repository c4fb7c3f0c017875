package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Iceeze/BitrixAssistant/internal/adapter/bitrix"
	"github.com/Iceeze/BitrixAssistant/internal/domain"
	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
	"github.com/Iceeze/BitrixAssistant/internal/port/chat"
	"github.com/Iceeze/BitrixAssistant/internal/port/database"
)

const sessionExpiredNotice = "⚠️ Сессия истекла. Авторизуйтесь заново через /start"

// TokenManager keeps subscriber credentials usable. The portal rotates
// the refresh token on every grant, so concurrent refreshes for one
// chat are collapsed into a single flight: a lost race would burn the
// stored refresh token and strand the subscriber.
type TokenManager struct {
	store  database.SubscriberStore
	portal Portal
	sender chat.Sender
	group  singleflight.Group
	now    func() time.Time
	logger *slog.Logger
}

// NewTokenManager creates a token manager. sender is used for the
// one-time notice when a credential is permanently rejected.
func NewTokenManager(store database.SubscriberStore, portal Portal, sender chat.Sender, logger *slog.Logger) *TokenManager {
	return &TokenManager{
		store:  store,
		portal: portal,
		sender: sender,
		now:    time.Now,
		logger: logger,
	}
}

// EnsureFresh returns the subscriber with a usable access token,
// refreshing it first when expired. A permanently rejected grant
// deletes the subscriber, notifies the chat once, and returns
// domain.ErrRemoved. Transient refresh failures leave the stored
// record untouched.
func (m *TokenManager) EnsureFresh(ctx context.Context, chatID int64) (*subscriber.Subscriber, error) {
	sub, err := m.store.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !sub.CredentialExpired(m.now()) {
		return sub, nil
	}

	v, err, _ := m.group.Do(strconv.FormatInt(chatID, 10), func() (any, error) {
		return m.refresh(ctx, chatID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*subscriber.Subscriber), nil
}

func (m *TokenManager) refresh(ctx context.Context, chatID int64) (*subscriber.Subscriber, error) {
	// Re-read inside the flight: a duplicate caller that lost the race
	// sees the already-refreshed record here and returns without
	// spending the rotated refresh token.
	sub, err := m.store.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !sub.CredentialExpired(m.now()) {
		return sub, nil
	}

	grant, err := m.portal.RefreshToken(ctx, sub.RefreshToken)
	if err != nil {
		if errors.Is(err, bitrix.ErrInvalidGrant) {
			return nil, m.expel(ctx, sub, err)
		}
		return nil, fmt.Errorf("refresh token for chat %d: %w", chatID, err)
	}

	sub.AccessToken = grant.AccessToken
	sub.RefreshToken = grant.RefreshToken
	sub.ExpiresAt = m.now().Add(time.Duration(grant.ExpiresIn) * time.Second)
	if err := m.store.Put(ctx, sub); err != nil {
		return nil, fmt.Errorf("persist refreshed tokens for chat %d: %w", chatID, err)
	}
	m.logger.Info("access token refreshed", "chat_id", chatID, "expires_at", sub.ExpiresAt)
	return sub, nil
}

// expel removes a subscriber whose grant was permanently rejected and
// tells the chat once. Running inside the single flight guarantees at
// most one notice per expiry.
func (m *TokenManager) expel(ctx context.Context, sub *subscriber.Subscriber, cause error) error {
	if err := m.store.Delete(ctx, sub.ChatID); err != nil {
		m.logger.Error("delete expired subscriber failed", "chat_id", sub.ChatID, "error", err)
	}
	if err := m.sender.Send(ctx, chat.Message{ChatID: sub.ChatID, Text: sessionExpiredNotice}); err != nil {
		m.logger.Error("session expired notice failed", "chat_id", sub.ChatID, "error", err)
	}
	m.logger.Warn("subscriber removed, grant rejected", "chat_id", sub.ChatID, "error", cause)
	return fmt.Errorf("chat %d: %w", sub.ChatID, domain.ErrRemoved)
}
