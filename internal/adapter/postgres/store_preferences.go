package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
)

// prefColumn maps a preference flag to its column name. Flags are a
// closed set; anything else is rejected before reaching SQL.
func prefColumn(flag subscriber.PrefFlag) (string, error) {
	switch flag {
	case subscriber.PrefNewDeals:
		return "new_deals", nil
	case subscriber.PrefDealUpdates:
		return "deal_updates", nil
	case subscriber.PrefTaskCreations:
		return "task_creations", nil
	case subscriber.PrefTaskUpdates:
		return "task_updates", nil
	case subscriber.PrefComments:
		return "comments", nil
	default:
		return "", fmt.Errorf("unknown preference flag %q", flag)
	}
}

// GetPreferences returns the chat's notification preferences, creating
// the all-enabled default record when none exists yet.
func (s *Store) GetPreferences(ctx context.Context, chatID int64) (*subscriber.Preferences, error) {
	prefs, err := s.scanPreferences(ctx, chatID)
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get preferences %d: %w", chatID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO notification_preferences (chat_id) VALUES ($1)
		 ON CONFLICT (chat_id) DO NOTHING`, chatID)
	if err != nil {
		return nil, fmt.Errorf("init preferences %d: %w", chatID, err)
	}
	return subscriber.DefaultPreferences(chatID), nil
}

// TogglePreference flips one flag and returns the updated preferences.
func (s *Store) TogglePreference(ctx context.Context, chatID int64, flag subscriber.PrefFlag) (*subscriber.Preferences, error) {
	column, err := prefColumn(flag)
	if err != nil {
		return nil, err
	}

	// Ensure the row exists before flipping.
	if _, err := s.GetPreferences(ctx, chatID); err != nil {
		return nil, err
	}

	var p subscriber.Preferences
	err = s.pool.QueryRow(ctx,
		fmt.Sprintf(`UPDATE notification_preferences SET %s = NOT %s WHERE chat_id = $1
		 RETURNING chat_id, new_deals, deal_updates, task_creations, task_updates, comments`,
			column, column), chatID,
	).Scan(&p.ChatID, &p.NewDeals, &p.DealUpdates, &p.TaskCreations, &p.TaskUpdates, &p.Comments)
	if err != nil {
		return nil, fmt.Errorf("toggle preference %s for %d: %w", flag, chatID, err)
	}
	return &p, nil
}

func (s *Store) scanPreferences(ctx context.Context, chatID int64) (*subscriber.Preferences, error) {
	var p subscriber.Preferences
	err := s.pool.QueryRow(ctx,
		`SELECT chat_id, new_deals, deal_updates, task_creations, task_updates, comments
		 FROM notification_preferences WHERE chat_id = $1`, chatID,
	).Scan(&p.ChatID, &p.NewDeals, &p.DealUpdates, &p.TaskCreations, &p.TaskUpdates, &p.Comments)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
