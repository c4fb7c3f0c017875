package http

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Iceeze/BitrixAssistant/internal/domain"
	"github.com/Iceeze/BitrixAssistant/internal/domain/event"
	"github.com/Iceeze/BitrixAssistant/internal/service"
	"github.com/Iceeze/BitrixAssistant/internal/webform"
)

const maxCallbackBodySize = 1 << 20 // 1 MB

// Authorizer completes the OAuth code exchange for a chat.
type Authorizer interface {
	Complete(ctx context.Context, chatID int64, code, domain, memberID string) error
}

// EventRouter delivers a portal event to its subscribers.
type EventRouter interface {
	Route(ctx context.Context, ev event.Inbound) error
}

// Handlers holds the HTTP endpoint implementations.
type Handlers struct {
	oauth  Authorizer
	router EventRouter
	logger *slog.Logger
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(oauth Authorizer, router EventRouter, logger *slog.Logger) *Handlers {
	return &Handlers{oauth: oauth, router: router, logger: logger}
}

// HandleInstall finishes the OAuth flow. The portal redirects the user
// here with the authorization code and the chat id carried in state.
func (h *Handlers) HandleInstall(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	state := q.Get("state")
	portalDomain := q.Get("domain")
	memberID := q.Get("member_id")

	if code == "" || state == "" || portalDomain == "" {
		writeStatus(w, http.StatusBadRequest, "missing_parameters")
		return
	}

	chatID, err := strconv.ParseInt(state, 10, 64)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid_state")
		return
	}

	if err := h.oauth.Complete(r.Context(), chatID, code, portalDomain, memberID); err != nil {
		h.logger.Error("authorization failed",
			"chat_id", chatID, "domain", portalDomain, "error", err)
		writeStatus(w, http.StatusInternalServerError, "authorization_failed")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, installedPage, html.EscapeString(portalDomain))
}

// HandleEvent receives a portal event webhook and fans it out.
func (h *Handlers) HandleEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBodySize)
	if err := r.ParseForm(); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid_form")
		return
	}

	flat := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			flat[key] = values[0]
		}
	}

	ev := event.FromForm(webform.Decode(flat))
	err := h.router.Route(r.Context(), ev)
	switch {
	case err == nil:
		writeStatus(w, http.StatusOK, "ok")
	case errors.Is(err, domain.ErrValidation):
		writeStatus(w, http.StatusBadRequest, "invalid_member_id")
	case errors.Is(err, service.ErrNoSubscribers):
		writeStatus(w, http.StatusNotFound, "member_not_found")
	default:
		h.logger.Error("event routing failed", "event", ev.Type, "error", err)
		writeStatus(w, http.StatusInternalServerError, "internal_error")
	}
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, "ok")
}

// installedPage is shown in the user's browser after a successful
// authorization; the bot conversation continues in the messenger.
const installedPage = `<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="utf-8">
<title>BitrixAssistant</title>
<style>
body { font-family: sans-serif; background: #f4f6f8; display: flex; justify-content: center; margin-top: 10%%; }
.card { background: #fff; border-radius: 8px; padding: 32px 48px; box-shadow: 0 2px 8px rgba(0,0,0,.1); text-align: center; }
</style>
</head>
<body>
<div class="card">
<h1>✅ Авторизация успешна!</h1>
<p>Портал %s подключён. Можете вернуться в Telegram.</p>
</div>
</body>
</html>
`
