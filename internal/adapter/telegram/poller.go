package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Handler consumes one incoming update.
type Handler interface {
	HandleUpdate(ctx context.Context, upd Update)
}

// Poller drives the bot's inbound side via getUpdates long polling.
type Poller struct {
	client  *Client
	handler Handler
	timeout int // long-poll window, seconds
	logger  *slog.Logger
}

// NewPoller creates a poller dispatching updates to handler.
func NewPoller(client *Client, handler Handler, timeout int, logger *slog.Logger) *Poller {
	if timeout <= 0 {
		timeout = 30
	}
	return &Poller{
		client:  client,
		handler: handler,
		timeout: timeout,
		logger:  logger,
	}
}

// Run polls until ctx is cancelled. Each update is handled in its own
// goroutine so a stalled dialog step cannot block the poll loop.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	for {
		updates, err := p.client.getUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("poll updates failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			go p.dispatch(ctx, upd)
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, upd Update) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("update handler panicked",
				"update_id", upd.UpdateID, "panic", r)
		}
	}()
	p.handler.HandleUpdate(ctx, upd)
}

// ChatID returns the conversation the update belongs to, or an error
// for update kinds the bot does not subscribe to.
func (u Update) ChatID() (int64, error) {
	switch {
	case u.Message != nil:
		return u.Message.Chat.ID, nil
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		return u.CallbackQuery.Message.Chat.ID, nil
	default:
		return 0, errors.New("update carries no chat")
	}
}
