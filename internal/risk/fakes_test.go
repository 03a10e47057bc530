package risk

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"riskwatch/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

var testTracer = noop.NewTracerProvider().Tracer("test")

var errNotFound = errors.New("not found")

// memStore implements every storage interface the engine needs.
type memStore struct {
	mu            sync.Mutex
	accounts      map[int64]*domain.Account
	trades        map[int64]*domain.Trade
	rules         []domain.RiskRule
	counters      map[counterKey]int64
	marks         map[EvaluationKey]bool
	incidents     []*domain.Incident
	notifications []*domain.Notification
	admins        []domain.User
	nextID        int64

	failRecord     error
	failRecordRule int64
	failSetStatus  error
	failClose      map[int64]error
	failNotify     error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[int64]*domain.Account),
		trades:   make(map[int64]*domain.Trade),
		counters: make(map[counterKey]int64),
		marks:    make(map[EvaluationKey]bool),
		failClose: make(map[int64]error),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addAccount(id, owner int64) *domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := &domain.Account{
		ID:            id,
		OwnerID:       owner,
		Login:         1000 + id,
		Status:        domain.StatusEnabled,
		TradingStatus: domain.StatusEnabled,
	}
	m.accounts[id] = acc
	return acc
}

func (m *memStore) addTrade(t domain.Trade) domain.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == 0 {
		t.ID = m.id()
	}
	if t.Status == "" {
		t.Status = domain.TradeOpen
		if t.CloseTime != nil {
			t.Status = domain.TradeClosed
		}
	}
	cp := t
	m.trades[t.ID] = &cp
	return t
}

func (m *memStore) addRule(r domain.RiskRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Version == 0 {
		r.Version = 1
	}
	r.IsActive = true
	m.rules = append(m.rules, r)
}

func (m *memStore) GetAccount(_ context.Context, id int64) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *acc
	return &cp, nil
}

func (m *memStore) ActiveRulesForOwner(_ context.Context, ownerID int64) ([]domain.RiskRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RiskRule
	for _, r := range m.rules {
		if r.OwnerID == ownerID && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) RecentTradesBefore(_ context.Context, accountID int64, trade domain.Trade, limit int) ([]domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Trade
	for _, t := range m.trades {
		if t.AccountID != accountID || t.ID == trade.ID {
			continue
		}
		if t.OpenTime.Before(trade.OpenTime) || (t.OpenTime.Equal(trade.OpenTime) && t.ID < trade.ID) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenTime.Equal(out[j].OpenTime) {
			return out[i].ID > out[j].ID
		}
		return out[i].OpenTime.After(out[j].OpenTime)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CountOpenTradesInWindow(_ context.Context, accountID int64, from, to time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.trades {
		if t.AccountID == accountID && t.IsOpen() && !t.OpenTime.Before(from) && !t.OpenTime.After(to) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) LoadCounter(_ context.Context, accountID, ruleID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[counterKey{accountID: accountID, ruleID: ruleID}], nil
}

func (m *memStore) DeleteRuleCounters(_ context.Context, ruleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.counters {
		if k.ruleID == ruleID {
			delete(m.counters, k)
		}
	}
	return nil
}

func (m *memStore) HasEvaluation(_ context.Context, key EvaluationKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marks[key], nil
}

func (m *memStore) MarkEvaluated(_ context.Context, key EvaluationKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[key] = true
	return nil
}

func (m *memStore) RecordViolation(_ context.Context, rec ViolationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRecord != nil && (m.failRecordRule == 0 || m.failRecordRule == rec.Incident.RiskRuleID) {
		return m.failRecord
	}
	rec.Incident.ID = m.id()
	cp := *rec.Incident
	m.incidents = append(m.incidents, &cp)
	m.marks[rec.Key] = true
	m.counters[counterKey{accountID: rec.Incident.AccountID, ruleID: rec.Incident.RiskRuleID}] = rec.Counter
	return nil
}

func (m *memStore) MarkExecuted(_ context.Context, incidentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inc := range m.incidents {
		if inc.ID == incidentID {
			inc.IsExecuted = true
			return nil
		}
	}
	return errNotFound
}

func (m *memStore) SetAccountStatus(_ context.Context, accountID int64, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSetStatus != nil {
		return m.failSetStatus
	}
	m.accounts[accountID].Status = status
	return nil
}

func (m *memStore) SetTradingStatus(_ context.Context, accountID int64, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSetStatus != nil {
		return m.failSetStatus
	}
	m.accounts[accountID].TradingStatus = status
	return nil
}

func (m *memStore) ListOpenTrades(_ context.Context, accountID int64) ([]domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Trade
	for _, t := range m.trades {
		if t.AccountID == accountID && t.IsOpen() {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CloseTrade(_ context.Context, tradeID int64, at time.Time, price decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failClose[tradeID]; err != nil {
		return err
	}
	t, ok := m.trades[tradeID]
	if !ok {
		return errNotFound
	}
	return t.Close(at, price)
}

func (m *memStore) CreateNotification(_ context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNotify != nil {
		return m.failNotify
	}
	n.ID = m.id()
	cp := *n
	m.notifications = append(m.notifications, &cp)
	return nil
}

func (m *memStore) ListAdmins(context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.User(nil), m.admins...), nil
}

func (m *memStore) incidentsFor(ruleID int64) []domain.Incident {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Incident
	for _, inc := range m.incidents {
		if inc.RiskRuleID == ruleID {
			out = append(out, *inc)
		}
	}
	return out
}

func (m *memStore) noticesWith(action string) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.notifications {
		if n.Metadata.Action == action {
			out = append(out, *n)
		}
	}
	return out
}

type fakePriceBook struct {
	price decimal.Decimal
	ok    bool
	err   error
}

func (f fakePriceBook) LastPrice(context.Context, int64) (decimal.Decimal, bool, error) {
	return f.price, f.ok, f.err
}

type fakeRelay struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeRelay) Relay(_ context.Context, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return f.err
}

func newTestDispatcher(store *memStore, prices PriceBook) *ActionDispatcher {
	return NewActionDispatcher(testTracer, zap.NewNop(), store, store, store, prices)
}

func newTestEngine(store *memStore) *Engine {
	return NewEngine(EngineDeps{
		Accounts:   store,
		Rules:      store,
		History:    store,
		Marks:      store,
		Tracker:    NewViolationTracker(store, DefaultSoftEscalationEvery),
		Recorder:   NewIncidentRecorder(testTracer, store),
		Dispatcher: newTestDispatcher(store, nil),
		Locker:     NewAccountLocker(time.Second),
		Logger:     zap.NewNop(),
		Tracer:     testTracer,
	})
}

func mustRaw(s string) []byte { return []byte(s) }

func durationRule(id, owner int64, seconds int, severity domain.Severity, actions ...domain.Action) domain.RiskRule {
	return domain.RiskRule{
		ID:            id,
		OwnerID:       owner,
		RuleTypeID:    1,
		Name:          "min hold",
		Severity:      severity,
		ParameterType: domain.ParamDuration,
		ParameterData: mustRaw(`{"duration":` + itoa(seconds) + `}`),
		Actions:       actions,
	}
}

func itoa(n int) string {
	return decimal.NewFromInt(int64(n)).String()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ts(minute int) time.Time {
	return time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute)
}

func tsPtr(t time.Time) *time.Time { return &t }
