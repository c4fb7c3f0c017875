package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Iceeze/BitrixAssistant/internal/logger"
)

func TestRequestID_Generated(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logger.DeliveryID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/callback", nil))

	if got == "" {
		t.Fatal("expected a generated delivery ID in context")
	}
	if rec.Header().Get("X-Request-ID") != got {
		t.Fatalf("response header %q does not match context ID %q",
			rec.Header().Get("X-Request-ID"), got)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logger.DeliveryID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/callback", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != "upstream-id" {
		t.Fatalf("expected upstream-id, got %q", got)
	}
}
