package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Iceeze/BitrixAssistant/internal/domain"
	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
)

// Get returns the subscriber for the chat, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, chatID int64) (*subscriber.Subscriber, error) {
	var sub subscriber.Subscriber
	err := s.pool.QueryRow(ctx,
		`SELECT chat_id, access_token, refresh_token, expires_at, domain,
		        member_id, user_id, user_name, is_admin, created_at, updated_at
		 FROM subscribers WHERE chat_id = $1`, chatID,
	).Scan(&sub.ChatID, &sub.AccessToken, &sub.RefreshToken, &sub.ExpiresAt,
		&sub.Domain, &sub.MemberID, &sub.UserID, &sub.UserName, &sub.IsAdmin,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get subscriber %d: %w", chatID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get subscriber %d: %w", chatID, err)
	}
	return &sub, nil
}

// Put inserts or replaces the subscriber record keyed by chat ID.
func (s *Store) Put(ctx context.Context, sub *subscriber.Subscriber) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscribers (
		     chat_id, access_token, refresh_token, expires_at, domain,
		     member_id, user_id, user_name, is_admin
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (chat_id) DO UPDATE SET
		     access_token  = EXCLUDED.access_token,
		     refresh_token = EXCLUDED.refresh_token,
		     expires_at    = EXCLUDED.expires_at,
		     domain        = EXCLUDED.domain,
		     member_id     = EXCLUDED.member_id,
		     user_id       = EXCLUDED.user_id,
		     user_name     = EXCLUDED.user_name,
		     is_admin      = EXCLUDED.is_admin,
		     updated_at    = now()`,
		sub.ChatID, sub.AccessToken, sub.RefreshToken, sub.ExpiresAt, sub.Domain,
		sub.MemberID, sub.UserID, sub.UserName, sub.IsAdmin)
	if err != nil {
		return fmt.Errorf("put subscriber %d: %w", sub.ChatID, err)
	}
	return nil
}

// Delete removes the subscriber. Deleting a missing record is a no-op.
func (s *Store) Delete(ctx context.Context, chatID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM subscribers WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("delete subscriber %d: %w", chatID, err)
	}
	return nil
}

// ListByMember returns all subscribers of one portal installation.
func (s *Store) ListByMember(ctx context.Context, memberID string) ([]*subscriber.Subscriber, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT chat_id, access_token, refresh_token, expires_at, domain,
		        member_id, user_id, user_name, is_admin, created_at, updated_at
		 FROM subscribers WHERE member_id = $1 ORDER BY chat_id`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list subscribers of %s: %w", memberID, err)
	}
	defer rows.Close()

	var subs []*subscriber.Subscriber
	for rows.Next() {
		var sub subscriber.Subscriber
		if err := rows.Scan(&sub.ChatID, &sub.AccessToken, &sub.RefreshToken,
			&sub.ExpiresAt, &sub.Domain, &sub.MemberID, &sub.UserID,
			&sub.UserName, &sub.IsAdmin, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list subscribers of %s: %w", memberID, err)
		}
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscribers of %s: %w", memberID, err)
	}
	return subs, nil
}
