package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
	"github.com/Iceeze/BitrixAssistant/internal/port/cache"
	"github.com/Iceeze/BitrixAssistant/internal/port/database"
)

// Preferences serves per-chat notification toggles through a
// read-through cache. The store creates the all-enabled default record
// on first read, so a chat always has preferences.
type Preferences struct {
	store  database.PreferenceStore
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewPreferences creates the preference service.
func NewPreferences(store database.PreferenceStore, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Preferences {
	return &Preferences{store: store, cache: c, ttl: ttl, logger: logger}
}

func prefsKey(chatID int64) string {
	return fmt.Sprintf("prefs:%d", chatID)
}

// Get returns the chat's preferences.
func (p *Preferences) Get(ctx context.Context, chatID int64) (*subscriber.Preferences, error) {
	key := prefsKey(chatID)
	if data, ok, err := p.cache.Get(ctx, key); err == nil && ok {
		var prefs subscriber.Preferences
		if err := json.Unmarshal(data, &prefs); err == nil {
			return &prefs, nil
		}
		// Corrupt entry: fall through to the store and overwrite.
		_ = p.cache.Delete(ctx, key)
	}

	prefs, err := p.store.GetPreferences(ctx, chatID)
	if err != nil {
		return nil, err
	}
	p.put(ctx, key, prefs)
	return prefs, nil
}

// Toggle flips one flag and returns the updated preferences.
func (p *Preferences) Toggle(ctx context.Context, chatID int64, flag subscriber.PrefFlag) (*subscriber.Preferences, error) {
	prefs, err := p.store.TogglePreference(ctx, chatID, flag)
	if err != nil {
		return nil, err
	}
	p.put(ctx, prefsKey(chatID), prefs)
	return prefs, nil
}

func (p *Preferences) put(ctx context.Context, key string, prefs *subscriber.Preferences) {
	data, err := json.Marshal(prefs)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, key, data, p.ttl); err != nil {
		p.logger.Debug("preference cache set failed", "key", key, "error", err)
	}
}
