package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"riskwatch/internal/domain"
	"riskwatch/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace/noop"
)

var testTracer = noop.NewTracerProvider().Tracer("handler-test")

type fakeUsers map[int64]bool

func (f fakeUsers) GetUser(_ context.Context, id int64) (*domain.User, error) {
	admin, ok := f[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.User{ID: id, IsAdmin: admin}, nil
}

type fakeIngest struct {
	lastEvent  service.TradeEvent
	lastCaller domain.Caller
	lastID     int64
	lastPrice  decimal.Decimal
	lastTime   time.Time
	result     *service.IngestResult
	err        error
}

func (f *fakeIngest) reply() (*service.IngestResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &service.IngestResult{Success: true, Violations: []service.ViolationSummary{}, RunIDs: []string{}}, nil
}

func (f *fakeIngest) Ingest(_ context.Context, ev service.TradeEvent) (*service.IngestResult, error) {
	f.lastEvent = ev
	return f.reply()
}

func (f *fakeIngest) CloseTrade(_ context.Context, caller domain.Caller, tradeID int64, at time.Time, price decimal.Decimal) (*service.IngestResult, error) {
	f.lastCaller, f.lastID, f.lastTime, f.lastPrice = caller, tradeID, at, price
	return f.reply()
}

func (f *fakeIngest) ReevaluateTrade(_ context.Context, caller domain.Caller, tradeID int64) (*service.IngestResult, error) {
	f.lastCaller, f.lastID = caller, tradeID
	return f.reply()
}

func (f *fakeIngest) ReevaluateAccount(_ context.Context, caller domain.Caller, accountID int64) (*service.IngestResult, error) {
	f.lastCaller, f.lastID = caller, accountID
	return f.reply()
}

type fakeRules struct {
	created    service.RuleInput
	patched    service.RulePatch
	lastCaller domain.Caller
	deleted    int64
	err        error
}

func (f *fakeRules) RuleTypes() []domain.RuleType { return domain.RuleTypes }
func (f *fakeRules) Actions() []domain.ActionDef  { return domain.Actions }

func (f *fakeRules) ListRules(_ context.Context, caller domain.Caller) ([]domain.RiskRule, error) {
	f.lastCaller = caller
	return []domain.RiskRule{{ID: 1, Name: "min hold"}}, f.err
}

func (f *fakeRules) GetRule(_ context.Context, caller domain.Caller, id int64) (*domain.RiskRule, error) {
	f.lastCaller = caller
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RiskRule{ID: id}, nil
}

func (f *fakeRules) CreateRule(_ context.Context, caller domain.Caller, in service.RuleInput) (*domain.RiskRule, error) {
	f.lastCaller, f.created = caller, in
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RiskRule{ID: 42, Name: in.Name}, nil
}

func (f *fakeRules) UpdateRule(_ context.Context, caller domain.Caller, id int64, p service.RulePatch) (*domain.RiskRule, error) {
	f.lastCaller, f.patched = caller, p
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RiskRule{ID: id}, nil
}

func (f *fakeRules) DeleteRule(_ context.Context, caller domain.Caller, id int64) error {
	f.lastCaller, f.deleted = caller, id
	return f.err
}

type fakeAccounts struct {
	lastCaller domain.Caller
	lastFilter domain.TradeFilter
	lastUpdate service.StatusUpdate
	err        error
}

func (f *fakeAccounts) ListAccounts(_ context.Context, caller domain.Caller) ([]domain.Account, error) {
	f.lastCaller = caller
	return []domain.Account{{ID: 1, Login: 5001}}, f.err
}

func (f *fakeAccounts) GetAccount(_ context.Context, caller domain.Caller, id int64) (*domain.Account, error) {
	f.lastCaller = caller
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Account{ID: id}, nil
}

func (f *fakeAccounts) CreateAccount(_ context.Context, caller domain.Caller, in service.AccountInput) (*domain.Account, error) {
	f.lastCaller = caller
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Account{ID: 7, Login: in.Login}, nil
}

func (f *fakeAccounts) UpdateStatus(_ context.Context, caller domain.Caller, id int64, upd service.StatusUpdate) (*domain.Account, error) {
	f.lastCaller, f.lastUpdate = caller, upd
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Account{ID: id}, nil
}

func (f *fakeAccounts) ListTrades(_ context.Context, caller domain.Caller, flt domain.TradeFilter) ([]domain.Trade, error) {
	f.lastCaller, f.lastFilter = caller, flt
	return []domain.Trade{}, f.err
}

type fakeIncidents struct {
	lastCaller  domain.Caller
	lastAccount *int64
	lastLimit   int
	dismissed   int64
	err         error
}

func (f *fakeIncidents) ListIncidents(_ context.Context, caller domain.Caller, accountID *int64, limit int) ([]domain.Incident, error) {
	f.lastCaller, f.lastAccount, f.lastLimit = caller, accountID, limit
	return []domain.Incident{{ID: 3}}, f.err
}

func (f *fakeIncidents) ListNotifications(_ context.Context, caller domain.Caller, limit int) ([]domain.Notification, error) {
	f.lastCaller, f.lastLimit = caller, limit
	return []domain.Notification{}, f.err
}

func (f *fakeIncidents) DismissNotification(_ context.Context, caller domain.Caller, id int64) error {
	f.lastCaller, f.dismissed = caller, id
	return f.err
}

type testServer struct {
	router    *gin.Engine
	ingest    *fakeIngest
	rules     *fakeRules
	accounts  *fakeAccounts
	incidents *fakeIncidents
}

// newTestServer wires a router where user 1 is a regular user and user 9 an admin.
func newTestServer(webhookKey string) *testServer {
	gin.SetMode(gin.TestMode)
	ts := &testServer{
		router:    gin.New(),
		ingest:    &fakeIngest{},
		rules:     &fakeRules{},
		accounts:  &fakeAccounts{},
		incidents: &fakeIncidents{},
	}
	h := New(testTracer, ts.ingest, ts.rules, ts.accounts, ts.incidents)
	h.RegisterRoutes(ts.router, webhookKey, fakeUsers{1: false, 9: true})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}
