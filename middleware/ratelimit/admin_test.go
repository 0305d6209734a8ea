package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventhour-gateway/middleware/ratelimit/domain"
	"eventhour-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
)

func newAdminRouter(t *testing.T, token string) (http.Handler, *infra.SlidingWindow) {
	t.Helper()
	sw, err := infra.NewSlidingWindow(15*time.Minute, 1)
	if err != nil {
		t.Fatalf("new sliding window: %v", err)
	}
	r := chi.NewRouter()
	r.Method(http.MethodPost, "/_ratelimit/{policy}/reset", ResetHandler(
		map[string]domain.WindowLimiter{"login": sw.AsWindowLimiter()}, token, nil,
	))
	return r, sw
}

func postReset(h http.Handler, path, token string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, nil)
	if token != "" {
		r.Header.Set(AdminTokenHeader, token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestResetHandler_ClearsKey(t *testing.T) {
	h, sw := newAdminRouter(t, "s3cret")

	if !sw.IsAllowed("10.0.0.1") {
		t.Fatalf("expected first request allowed")
	}
	if sw.IsAllowed("10.0.0.1") {
		t.Fatalf("expected second request denied")
	}

	w := postReset(h, "/_ratelimit/login/reset?key=10.0.0.1", "s3cret")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if !sw.IsAllowed("10.0.0.1") {
		t.Fatalf("expected request allowed after admin reset")
	}
}

func TestResetHandler_Errors(t *testing.T) {
	h, _ := newAdminRouter(t, "s3cret")

	cases := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"missing token", "/_ratelimit/login/reset?key=a", "", http.StatusUnauthorized},
		{"wrong token", "/_ratelimit/login/reset?key=a", "nope", http.StatusUnauthorized},
		{"unknown policy", "/_ratelimit/upload/reset?key=a", "s3cret", http.StatusNotFound},
		{"missing key", "/_ratelimit/login/reset", "s3cret", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := postReset(h, tc.path, tc.token); w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestResetHandler_DisabledWithoutToken(t *testing.T) {
	h, _ := newAdminRouter(t, "")

	if w := postReset(h, "/_ratelimit/login/reset?key=a", "anything"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when admin token is not configured, got %d", w.Code)
	}
}

func TestAdminAuthorized(t *testing.T) {
	cases := []struct {
		header, token string
		want          bool
	}{
		{"s3cret", "s3cret", true},
		{"s3cre", "s3cret", false},
		{"s3cret!", "s3cret", false},
		{"", "s3cret", false},
		{"", "", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set(AdminTokenHeader, tc.header)
		}
		if got := AdminAuthorized(r, tc.token); got != tc.want {
			t.Fatalf("header %q token %q: expected %v, got %v", tc.header, tc.token, tc.want, got)
		}
	}
}
