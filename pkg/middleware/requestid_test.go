package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if captured == "" {
		t.Fatal("no request ID in context")
	}
	if got := w.Header().Get("X-Request-ID"); got != captured {
		t.Errorf("response header %q does not match context value %q", got, captured)
	}
}

func TestRequestID_PropagatesExisting(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "caller-supplied-id")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if captured != "caller-supplied-id" {
		t.Errorf("context request ID = %q", captured)
	}
	if got := w.Header().Get("X-Request-ID"); got != "caller-supplied-id" {
		t.Errorf("response header = %q", got)
	}
}

func TestGetRequestID_MissingReturnsEmpty(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID on empty context = %q", got)
	}
}
