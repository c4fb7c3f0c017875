// Package database defines the port interfaces for persisted state.
package database

import (
	"context"

	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
)

// SubscriberStore persists subscriber records keyed by chat ID.
type SubscriberStore interface {
	// Get returns the subscriber for the chat, or domain.ErrNotFound.
	Get(ctx context.Context, chatID int64) (*subscriber.Subscriber, error)
	// Put inserts or replaces the subscriber record.
	Put(ctx context.Context, sub *subscriber.Subscriber) error
	// Delete removes the subscriber. Deleting a missing record is a no-op.
	Delete(ctx context.Context, chatID int64) error
	// ListByMember returns all subscribers of one portal installation.
	ListByMember(ctx context.Context, memberID string) ([]*subscriber.Subscriber, error)
}

// PreferenceStore persists notification preferences keyed by chat ID.
type PreferenceStore interface {
	// GetPreferences returns the chat's preferences, creating the
	// all-enabled default record when none exists yet.
	GetPreferences(ctx context.Context, chatID int64) (*subscriber.Preferences, error)
	// TogglePreference flips one flag and returns the updated preferences.
	TogglePreference(ctx context.Context, chatID int64, flag subscriber.PrefFlag) (*subscriber.Preferences, error)
}
