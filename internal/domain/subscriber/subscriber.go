// Package subscriber defines the chat-session-to-portal-identity binding
// and per-chat notification preferences.
package subscriber

import "time"

// Subscriber is one chat session bound to a Bitrix24 user identity via
// OAuth. It is created on OAuth completion, mutated on every token
// refresh, and deleted when the refresh token is permanently rejected.
type Subscriber struct {
	ChatID       int64     `json:"chat_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Domain       string    `json:"domain"`
	MemberID     string    `json:"member_id"`
	UserID       int64     `json:"user_id"`
	UserName     string    `json:"user_name"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CredentialExpired reports whether the access token must be refreshed
// before use.
func (s *Subscriber) CredentialExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// PrefFlag names one of the five notification preference toggles.
type PrefFlag string

// Preference flags. The string values double as store column names and
// chat callback suffixes.
const (
	PrefNewDeals      PrefFlag = "new_deals"
	PrefDealUpdates   PrefFlag = "deal_updates"
	PrefTaskCreations PrefFlag = "task_creations"
	PrefTaskUpdates   PrefFlag = "task_updates"
	PrefComments      PrefFlag = "comments"
)

// AllFlags lists the preference flags in menu order.
var AllFlags = []PrefFlag{
	PrefNewDeals,
	PrefDealUpdates,
	PrefTaskCreations,
	PrefTaskUpdates,
	PrefComments,
}

// Preferences holds the five independent delivery toggles for one chat.
type Preferences struct {
	ChatID        int64 `json:"chat_id"`
	NewDeals      bool  `json:"new_deals"`
	DealUpdates   bool  `json:"deal_updates"`
	TaskCreations bool  `json:"task_creations"`
	TaskUpdates   bool  `json:"task_updates"`
	Comments      bool  `json:"comments"`
}

// DefaultPreferences returns the all-enabled preference set used when a
// chat has no stored record yet.
func DefaultPreferences(chatID int64) *Preferences {
	return &Preferences{
		ChatID:        chatID,
		NewDeals:      true,
		DealUpdates:   true,
		TaskCreations: true,
		TaskUpdates:   true,
		Comments:      true,
	}
}

// Allows reports whether delivery is enabled for the given flag.
// Unknown flags default to deliver.
func (p *Preferences) Allows(flag PrefFlag) bool {
	switch flag {
	case PrefNewDeals:
		return p.NewDeals
	case PrefDealUpdates:
		return p.DealUpdates
	case PrefTaskCreations:
		return p.TaskCreations
	case PrefTaskUpdates:
		return p.TaskUpdates
	case PrefComments:
		return p.Comments
	default:
		return true
	}
}

// Toggle flips the given flag in place. Unknown flags are ignored.
func (p *Preferences) Toggle(flag PrefFlag) {
	switch flag {
	case PrefNewDeals:
		p.NewDeals = !p.NewDeals
	case PrefDealUpdates:
		p.DealUpdates = !p.DealUpdates
	case PrefTaskCreations:
		p.TaskCreations = !p.TaskCreations
	case PrefTaskUpdates:
		p.TaskUpdates = !p.TaskUpdates
	case PrefComments:
		p.Comments = !p.Comments
	}
}
