package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the relay's endpoints on the given chi router.
// The portal calls /callback both ways: GET to finish the OAuth dance
// and POST to deliver event webhooks. HEAD answers the reachability
// probe Bitrix24 sends when binding a handler.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/callback", h.HandleInstall)
	r.Post("/callback", h.HandleEvent)
	r.Head("/callback", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/health", h.HandleHealth)
}
