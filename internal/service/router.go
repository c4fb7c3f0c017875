package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Iceeze/BitrixAssistant/internal/adapter/otel"
	"github.com/Iceeze/BitrixAssistant/internal/domain"
	"github.com/Iceeze/BitrixAssistant/internal/domain/event"
	"github.com/Iceeze/BitrixAssistant/internal/domain/subscriber"
	"github.com/Iceeze/BitrixAssistant/internal/port/chat"
)

// ErrNoSubscribers marks an event whose portal installation has no
// subscribed chats.
var ErrNoSubscribers = errors.New("no subscribers for member")

// Router fans a decoded portal event out to every subscribed chat.
// One chat's failure never blocks the others: token refresh failures,
// preference opt-outs, and visibility misses all just skip that chat.
type Router struct {
	registry    *Registry
	tokens      *TokenManager
	prefs       *Preferences
	portal      Portal
	sender      chat.Sender
	metrics     *otel.Metrics
	homeDomain  string
	maxParallel int64
	logger      *slog.Logger
}

// NewRouter creates the event router. metrics may be nil in tests.
func NewRouter(registry *Registry, tokens *TokenManager, prefs *Preferences, portal Portal, sender chat.Sender, metrics *otel.Metrics, homeDomain string, maxParallel int64, logger *slog.Logger) *Router {
	if maxParallel <= 0 {
		maxParallel = 16
	}
	return &Router{
		registry:    registry,
		tokens:      tokens,
		prefs:       prefs,
		portal:      portal,
		sender:      sender,
		metrics:     metrics,
		homeDomain:  homeDomain,
		maxParallel: maxParallel,
		logger:      logger,
	}
}

// Route delivers one inbound event. An event without a member id is
// domain.ErrValidation; a member id with no subscribers is
// ErrNoSubscribers. Delivery failures for individual chats are logged,
// not returned.
func (r *Router) Route(ctx context.Context, ev event.Inbound) error {
	r.countReceived(ctx)
	if ev.MemberID == "" {
		return fmt.Errorf("event %q without member id: %w", ev.Type, domain.ErrValidation)
	}

	subs, err := r.registry.SubscribersOf(ctx, ev.MemberID)
	if err != nil {
		return fmt.Errorf("resolve subscribers of %s: %w", ev.MemberID, err)
	}
	if len(subs) == 0 {
		return fmt.Errorf("member %s: %w", ev.MemberID, ErrNoSubscribers)
	}

	ctx, span := otel.StartEventSpan(ctx, ev.Type, ev.MemberID)
	defer span.End()
	start := time.Now()

	sem := semaphore.NewWeighted(r.maxParallel)
	var wg sync.WaitGroup
	for _, sub := range subs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			defer sem.Release(1)
			r.deliverTo(ctx, ev, chatID)
		}(sub.ChatID)
	}
	wg.Wait()

	if r.metrics != nil {
		r.metrics.DeliveryDuration.Record(ctx, time.Since(start).Seconds())
	}
	return nil
}

// deliverTo renders and sends the event to a single chat.
func (r *Router) deliverTo(ctx context.Context, ev event.Inbound, chatID int64) {
	ctx, span := otel.StartDeliverySpan(ctx, ev.Type, chatID)
	defer span.End()

	sub, err := r.tokens.EnsureFresh(ctx, chatID)
	if err != nil {
		r.countFailed(ctx)
		r.logger.Error("credential unavailable for delivery",
			"chat_id", chatID, "event", ev.Type, "error", err)
		return
	}

	if flag, mapped := ev.PrefFlag(); mapped {
		prefs, err := r.prefs.Get(ctx, chatID)
		if err != nil {
			r.logger.Error("load preferences failed", "chat_id", chatID, "error", err)
		} else if !prefs.Allows(flag) {
			r.countSkipped(ctx)
			return
		}
	}

	text, err := r.render(ctx, ev, sub)
	if err != nil {
		r.countFailed(ctx)
		r.logger.Error("event rendering failed",
			"chat_id", chatID, "event", ev.Type, "error", err)
		return
	}
	if text == "" {
		r.countSkipped(ctx)
		return
	}

	if err := r.sender.Send(ctx, chat.Message{ChatID: chatID, Text: text}); err != nil {
		r.countFailed(ctx)
		r.logger.Error("notification send failed",
			"chat_id", chatID, "event", ev.Type, "error", err)
		return
	}
	r.countDelivered(ctx)
}

// render dispatches to the kind-specific renderer. An empty message
// with nil error means the event produces nothing for this chat.
func (r *Router) render(ctx context.Context, ev event.Inbound, sub *subscriber.Subscriber) (string, error) {
	switch ev.HandlerKind() {
	case event.KindComment:
		return r.renderComment(ctx, ev, sub)
	case event.KindTask:
		return r.renderTask(ctx, ev, sub)
	case event.KindDeal:
		return r.renderDeal(ctx, ev, sub)
	default:
		r.logger.Warn("unhandled event kind", "event", ev.Type)
		return "", nil
	}
}

func (r *Router) countReceived(ctx context.Context) {
	if r.metrics != nil {
		r.metrics.EventsReceived.Add(ctx, 1)
	}
}

func (r *Router) countDelivered(ctx context.Context) {
	if r.metrics != nil {
		r.metrics.EventsDelivered.Add(ctx, 1)
	}
}

func (r *Router) countSkipped(ctx context.Context) {
	if r.metrics != nil {
		r.metrics.EventsSkipped.Add(ctx, 1)
	}
}

func (r *Router) countFailed(ctx context.Context) {
	if r.metrics != nil {
		r.metrics.DeliveryFailures.Add(ctx, 1)
	}
}
