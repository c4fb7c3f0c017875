// Package event defines the inbound webhook event model and its
// classification rules.
package event

import (
	"strings"

	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
	"github.com/Iceeze/BitrixAssistant/internal/webform"
)

// Kind selects which handler an event is dispatched to.
type Kind int

const (
	KindUnknown Kind = iota
	KindTask
	KindDeal
	KindComment
)

// Inbound is one decoded webhook event, scoped to a single delivery.
type Inbound struct {
	// Type is the portal event name, normalized to lower case
	// (e.g. "ontaskadd", "oncrmdealupdate").
	Type string
	// MemberID identifies the tenant the event belongs to.
	MemberID string
	// Payload is the decoded bracket-form tree.
	Payload map[string]any
}

// FromForm builds an Inbound event from a decoded webhook form tree.
func FromForm(tree map[string]any) Inbound {
	return Inbound{
		Type:     strings.ToLower(webform.Lookup(tree, "event")),
		MemberID: webform.Lookup(tree, "auth", "member_id"),
		Payload:  tree,
	}
}

// Category returns the event type up to its first compound-event
// delimiter. Plain events are their own category.
func (e Inbound) Category() string {
	if i := strings.IndexByte(e.Type, '_'); i >= 0 {
		return e.Type[:i]
	}
	return e.Type
}

// PrefFlag maps the event category to its notification preference flag.
// The second result is false for unmapped categories, which are always
// delivered.
func (e Inbound) PrefFlag() (subscriber.PrefFlag, bool) {
	switch e.Category() {
	case "oncrmdealadd":
		return subscriber.PrefNewDeals, true
	case "oncrmdealupdate":
		return subscriber.PrefDealUpdates, true
	case "ontaskadd":
		return subscriber.PrefTaskCreations, true
	case "ontaskupdate":
		return subscriber.PrefTaskUpdates, true
	case "ontaskcommentadd":
		return subscriber.PrefComments, true
	default:
		return "", false
	}
}

// HandlerKind classifies the event by type prefix. Comment events must
// be checked before task events: "ontaskcomment*" is also "ontask*".
func (e Inbound) HandlerKind() Kind {
	switch {
	case strings.HasPrefix(e.Type, "ontaskcomment"):
		return KindComment
	case strings.HasPrefix(e.Type, "ontask"):
		return KindTask
	case strings.HasPrefix(e.Type, "oncrmdeal"):
		return KindDeal
	default:
		return KindUnknown
	}
}
