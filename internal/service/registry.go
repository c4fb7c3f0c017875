package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
	"github.com/Iceeze/BitrixAssistant/internal/port/database"
)

// Registry maps portal installations to the chats subscribed to them.
// The membership index is durable: lookups go to the store so that
// subscriptions survive restarts.
type Registry struct {
	store  database.SubscriberStore
	logger *slog.Logger
}

// NewRegistry creates a registry over the subscriber store.
func NewRegistry(store database.SubscriberStore, logger *slog.Logger) *Registry {
	return &Registry{store: store, logger: logger}
}

// Subscribe records or replaces the chat's subscription. A chat holds
// at most one subscription; re-authorizing overwrites the previous one.
func (r *Registry) Subscribe(ctx context.Context, sub *subscriber.Subscriber) error {
	if err := r.store.Put(ctx, sub); err != nil {
		return fmt.Errorf("subscribe chat %d: %w", sub.ChatID, err)
	}
	r.logger.Info("subscriber registered",
		"chat_id", sub.ChatID, "member_id", sub.MemberID, "domain", sub.Domain)
	return nil
}

// Get returns the chat's subscription, or domain.ErrNotFound.
func (r *Registry) Get(ctx context.Context, chatID int64) (*subscriber.Subscriber, error) {
	return r.store.Get(ctx, chatID)
}

// SubscribersOf returns every chat subscribed to a portal installation.
func (r *Registry) SubscribersOf(ctx context.Context, memberID string) ([]*subscriber.Subscriber, error) {
	return r.store.ListByMember(ctx, memberID)
}

// Remove drops a chat's subscription. Removing an unknown chat is a no-op.
func (r *Registry) Remove(ctx context.Context, chatID int64) error {
	return r.store.Delete(ctx, chatID)
}
