package bitrix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// BoundHandlers returns the handler URLs currently bound to an event on
// the portal.
func (c *Client) BoundHandlers(ctx context.Context, domain, token, event string) ([]string, error) {
	raw, err := c.postForm(ctx, domain, "event.get.json", url.Values{
		"auth":  {token},
		"event": {event},
	})
	if err != nil {
		return nil, err
	}
	var payload []struct {
		Event   string `json:"event"`
		Handler string `json:"handler"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("event.get decode: %w", err)
	}
	handlers := make([]string, 0, len(payload))
	for _, p := range payload {
		handlers = append(handlers, p.Handler)
	}
	return handlers, nil
}

// UnbindHandler removes a previously bound event handler URL.
func (c *Client) UnbindHandler(ctx context.Context, domain, token, event, handler string) error {
	_, err := c.postForm(ctx, domain, "event.unbind.json", url.Values{
		"auth":    {token},
		"event":   {event},
		"handler": {handler},
	})
	return err
}

// BindHandler subscribes a handler URL to a portal event.
func (c *Client) BindHandler(ctx context.Context, domain, token, event, handler string) error {
	_, err := c.postForm(ctx, domain, "event.bind.json", url.Values{
		"auth":    {token},
		"event":   {event},
		"handler": {handler},
	})
	return err
}
