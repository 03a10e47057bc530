package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIKeyAuth(t *testing.T) {
	ts := newTestServer("s3cret")

	cases := []struct {
		name string
		key  string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusForbidden},
		{"valid", "s3cret", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/webhook/trade", nil)
		if tc.key != "" {
			req.Header.Set("X-API-Key", tc.key)
		}
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		// A valid key reaches the handler, which rejects the empty body.
		if tc.want == http.StatusOK {
			if w.Code != http.StatusBadRequest {
				t.Fatalf("%s: expected request to reach handler, got %d", tc.name, w.Code)
			}
			continue
		}
		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
	}
}

func TestCallerScope(t *testing.T) {
	ts := newTestServer("")

	if w := ts.do(t, http.MethodGet, "/api/accounts", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: expected 401, got %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/accounts", "abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad header: expected 400, got %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/accounts", "77", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: expected 401, got %d", w.Code)
	}

	if w := ts.do(t, http.MethodGet, "/api/accounts", "9", ""); w.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", w.Code)
	}
	if got := ts.accounts.lastCaller; got.UserID != 9 || !got.IsAdmin {
		t.Fatalf("expected admin caller, got %+v", got)
	}
	ts.do(t, http.MethodGet, "/api/accounts", "1", "")
	if got := ts.accounts.lastCaller; got.UserID != 1 || got.IsAdmin {
		t.Fatalf("expected regular caller, got %+v", got)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	ts := newTestServer("")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}
