package handler

import (
	"net/http"
	"testing"

	"riskwatch/internal/service"
)

func TestListIncidents(t *testing.T) {
	ts := newTestServer("")

	w := ts.do(t, http.MethodGet, "/api/incidents?account_id=2&limit=5", "9", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ts.incidents.lastAccount == nil || *ts.incidents.lastAccount != 2 || ts.incidents.lastLimit != 5 {
		t.Fatalf("unexpected query: account=%v limit=%d", ts.incidents.lastAccount, ts.incidents.lastLimit)
	}

	ts.do(t, http.MethodGet, "/api/incidents", "1", "")
	if ts.incidents.lastAccount != nil || ts.incidents.lastLimit != 0 {
		t.Fatalf("expected no filters, got account=%v limit=%d", ts.incidents.lastAccount, ts.incidents.lastLimit)
	}
}

func TestNotifications(t *testing.T) {
	ts := newTestServer("")

	if w := ts.do(t, http.MethodGet, "/api/notifications", "1", ""); w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	w := ts.do(t, http.MethodDelete, "/api/notifications/33", "1", "")
	if w.Code != http.StatusNoContent || ts.incidents.dismissed != 33 {
		t.Fatalf("dismiss: expected 204 for 33, got %d (%d)", w.Code, ts.incidents.dismissed)
	}

	ts.incidents.err = service.ErrNotificationNotFound
	if w := ts.do(t, http.MethodDelete, "/api/notifications/34", "1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
