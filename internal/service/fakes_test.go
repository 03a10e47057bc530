package service

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"riskwatch/internal/domain"
	"riskwatch/internal/risk"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

var testTracer = noop.NewTracerProvider().Tracer("test")

type ownerRule struct {
	accountID, ruleID int64
}

// memRepo is an in-memory stand-in for the Postgres repositories. It
// satisfies both the service store interfaces and the engine's.
type memRepo struct {
	mu            sync.Mutex
	users         map[int64]*domain.User
	accounts      map[int64]*domain.Account
	trades        map[int64]*domain.Trade
	rules         map[int64]*domain.RiskRule
	counters      map[ownerRule]int64
	marks         map[risk.EvaluationKey]bool
	incidents     []*domain.Incident
	notifications []*domain.Notification
	nextID        int64

	activeRuleLoads int
	failRecord      error
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:    make(map[int64]*domain.User),
		accounts: make(map[int64]*domain.Account),
		trades:   make(map[int64]*domain.Trade),
		rules:    make(map[int64]*domain.RiskRule),
		counters: make(map[ownerRule]int64),
		marks:    make(map[risk.EvaluationKey]bool),
		nextID:   100,
	}
}

func (m *memRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memRepo) addUser(id int64, admin bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = &domain.User{ID: id, Name: "user", Email: "u@example.com", IsAdmin: admin}
}

func (m *memRepo) addAccount(id, owner, login int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id] = &domain.Account{
		ID:            id,
		OwnerID:       owner,
		Login:         login,
		Status:        domain.StatusEnabled,
		TradingStatus: domain.StatusEnabled,
	}
}

func (m *memRepo) account(id int64) domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.accounts[id]
}

func (m *memRepo) trade(id int64) domain.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.trades[id]
}

func (m *memRepo) tradeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trades)
}

// Users

func (m *memRepo) GetUser(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) ListAdmins(context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.users {
		if u.IsAdmin {
			out = append(out, *u)
		}
	}
	return out, nil
}

// Accounts

func (m *memRepo) GetAccount(_ context.Context, id int64) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) GetAccountByLogin(_ context.Context, login int64) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Login == login {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memRepo) ListAccounts(_ context.Context, ownerID *int64) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Account
	for _, a := range m.accounts {
		if ownerID == nil || a.OwnerID == *ownerID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) CreateAccount(_ context.Context, a *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.id()
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *memRepo) SetAccountStatus(_ context.Context, id int64, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	return nil
}

func (m *memRepo) SetTradingStatus(_ context.Context, id int64, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.TradingStatus = status
	return nil
}

// Trades

func (m *memRepo) CreateTrade(_ context.Context, t *domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	cp := *t
	m.trades[t.ID] = &cp
	return nil
}

func (m *memRepo) GetTrade(_ context.Context, id int64) (*domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memRepo) ListTrades(_ context.Context, f domain.TradeFilter) ([]domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Trade
	for _, t := range m.trades {
		if f.AccountID != nil && t.AccountID != *f.AccountID {
			continue
		}
		if f.OwnerID != nil && m.accounts[t.AccountID].OwnerID != *f.OwnerID {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memRepo) ListOpenTrades(_ context.Context, accountID int64) ([]domain.Trade, error) {
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

func (m *memRepo) CloseTrade(_ context.Context, id int64, at time.Time, price decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok {
		return domain.ErrNotFound
	}
	return t.Close(at, price)
}

func (m *memRepo) RecentTradeIDs(_ context.Context, accountID int64, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for _, t := range m.trades {
		if t.AccountID == accountID {
			ids = append(ids, t.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memRepo) RecentTradesBefore(_ context.Context, accountID int64, trade domain.Trade, limit int) ([]domain.Trade, error) {
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
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.After(out[j].OpenTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) CountOpenTradesInWindow(_ context.Context, accountID int64, from, to time.Time) (int, error) {
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

// Rules

func (m *memRepo) GetRule(_ context.Context, id int64) (*domain.RiskRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) ListRules(_ context.Context, ownerID *int64) ([]domain.RiskRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RiskRule
	for _, r := range m.rules {
		if ownerID == nil || r.OwnerID == *ownerID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) ActiveRulesForOwner(_ context.Context, ownerID int64) ([]domain.RiskRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeRuleLoads++
	var out []domain.RiskRule
	for _, r := range m.rules {
		if r.OwnerID == ownerID && r.IsActive {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) CreateRule(_ context.Context, r *domain.RiskRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id()
	r.Version = 1
	cp := *r
	m.rules[r.ID] = &cp
	return nil
}

func (m *memRepo) UpdateRule(_ context.Context, r *domain.RiskRule, definitionChanged bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rules[r.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if definitionChanged {
		r.Version = cur.Version + 1
	} else {
		r.Version = cur.Version
	}
	cp := *r
	m.rules[r.ID] = &cp
	return nil
}

func (m *memRepo) DeleteRule(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.rules, id)
	return nil
}

// Counters, marks and incidents

func (m *memRepo) LoadCounter(_ context.Context, accountID, ruleID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[ownerRule{accountID, ruleID}], nil
}

func (m *memRepo) DeleteRuleCounters(_ context.Context, ruleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.counters {
		if k.ruleID == ruleID {
			delete(m.counters, k)
		}
	}
	return nil
}

func (m *memRepo) HasEvaluation(_ context.Context, key risk.EvaluationKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marks[key], nil
}

func (m *memRepo) MarkEvaluated(_ context.Context, key risk.EvaluationKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[key] = true
	return nil
}

func (m *memRepo) RecordViolation(_ context.Context, rec risk.ViolationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRecord != nil {
		return m.failRecord
	}
	rec.Incident.ID = m.id()
	cp := *rec.Incident
	m.incidents = append(m.incidents, &cp)
	m.marks[rec.Key] = true
	m.counters[ownerRule{rec.Incident.AccountID, rec.Incident.RiskRuleID}] = rec.Counter
	return nil
}

func (m *memRepo) MarkExecuted(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inc := range m.incidents {
		if inc.ID == id {
			inc.IsExecuted = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memRepo) ListIncidents(_ context.Context, f domain.IncidentFilter) ([]domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Incident
	for i := len(m.incidents) - 1; i >= 0; i-- {
		inc := m.incidents[i]
		if f.AccountID != nil && inc.AccountID != *f.AccountID {
			continue
		}
		if f.OwnerID != nil && m.accounts[inc.AccountID].OwnerID != *f.OwnerID {
			continue
		}
		out = append(out, *inc)
	}
	return out, nil
}

// Notifications

func (m *memRepo) CreateNotification(_ context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = m.id()
	cp := *n
	m.notifications = append(m.notifications, &cp)
	return nil
}

func (m *memRepo) ListNotifications(_ context.Context, userID int64, _ int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *memRepo) DeleteNotification(_ context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.notifications {
		if n.ID == id && n.UserID == userID {
			m.notifications = append(m.notifications[:i], m.notifications[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeRedis struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error
	getErr error
	dels   int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte)}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = append([]byte(nil), v...)
	case string:
		f.data[key] = []byte(v)
	default:
		b, _ := json.Marshal(v)
		f.data[key] = b
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(string(v), nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	f.dels++
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(string(f.data[key]), 10, 64)
	n++
	f.data[key] = []byte(strconv.FormatInt(n, 10))
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func newTestEngine(repo *memRepo, prices risk.PriceBook) *risk.Engine {
	return risk.NewEngine(risk.EngineDeps{
		Accounts:   repo,
		Rules:      repo,
		History:    repo,
		Marks:      repo,
		Tracker:    risk.NewViolationTracker(repo, risk.DefaultSoftEscalationEvery),
		Recorder:   risk.NewIncidentRecorder(testTracer, repo),
		Dispatcher: risk.NewActionDispatcher(testTracer, zap.NewNop(), repo, repo, repo, prices),
		Locker:     risk.NewAccountLocker(time.Second),
		Logger:     zap.NewNop(),
		Tracer:     testTracer,
	})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func ts(minute int) time.Time {
	return time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute)
}

func stamp(t time.Time) Timestamp { return Timestamp{Time: t} }

func stampPtr(t time.Time) *Timestamp { return &Timestamp{Time: t} }

func int64Ptr(v int64) *int64 { return &v }

func addRule(repo *memRepo, r domain.RiskRule) domain.RiskRule {
	r.IsActive = true
	if err := repo.CreateRule(context.Background(), &r); err != nil {
		panic(err)
	}
	return r
}
