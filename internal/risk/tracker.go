package risk

import (
	"context"
	"fmt"
	"sync"

	"riskwatch/internal/domain"
)

// DefaultSoftEscalationEvery is how many Soft violations accumulate before
// actions fire (on the 3rd, 6th, 9th...).
const DefaultSoftEscalationEvery = 3

// Escalation is the tracker's decision for one new violation.
type Escalation struct {
	Count   int64
	FireNow bool

	// generation is the rule's reset generation when Next read the counter.
	generation uint64
}

type counterKey struct {
	accountID int64
	ruleID    int64
}

// ViolationTracker owns the violation counter of every (account, rule) pair.
// Counters are cached in memory and hydrated from the store on first use.
//
// Next proposes the escalation for a new violation without changing state;
// Commit applies it once the incident carrying that count is persisted.
// Callers hold the account lock across Next and Commit, and HoldRule across
// Next, the store write and Commit. ResetRule waits for held rules, and a
// Commit whose Next predates a reset is dropped.
type ViolationTracker struct {
	mu          sync.Mutex
	counters    map[counterKey]int64
	generations map[int64]uint64
	gates       map[int64]*sync.RWMutex
	store       CounterStore
	softEvery   int64
}

func NewViolationTracker(store CounterStore, softEvery int) *ViolationTracker {
	if softEvery <= 0 {
		softEvery = DefaultSoftEscalationEvery
	}
	return &ViolationTracker{
		counters:    make(map[counterKey]int64),
		generations: make(map[int64]uint64),
		gates:       make(map[int64]*sync.RWMutex),
		store:       store,
		softEvery:   int64(softEvery),
	}
}

// HoldRule keeps ResetRule for ruleID from running until the returned func
// is called. Holds for the same rule do not block each other.
func (t *ViolationTracker) HoldRule(ruleID int64) func() {
	g := t.gate(ruleID)
	g.RLock()
	return g.RUnlock
}

func (t *ViolationTracker) Next(ctx context.Context, accountID int64, rule domain.RiskRule) (Escalation, error) {
	gen := t.generation(rule.ID)
	current, err := t.current(ctx, counterKey{accountID: accountID, ruleID: rule.ID}, gen)
	if err != nil {
		return Escalation{}, err
	}
	count := current + 1
	return Escalation{
		Count:      count,
		FireNow:    shouldFire(rule.Severity, count, t.softEvery),
		generation: gen,
	}, nil
}

// Commit records esc as the pair's counter. It reports false when the rule
// was reset after esc was proposed; the counter is then left untouched.
func (t *ViolationTracker) Commit(accountID, ruleID int64, esc Escalation) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.generations[ruleID] != esc.generation {
		return false
	}
	t.counters[counterKey{accountID: accountID, ruleID: ruleID}] = esc.Count
	return true
}

// Current returns the committed counter for the pair.
func (t *ViolationTracker) Current(ctx context.Context, accountID, ruleID int64) (int64, error) {
	return t.current(ctx, counterKey{accountID: accountID, ruleID: ruleID}, t.generation(ruleID))
}

// ResetRule drops every counter of the rule, in memory and in the store.
func (t *ViolationTracker) ResetRule(ctx context.Context, ruleID int64) error {
	g := t.gate(ruleID)
	g.Lock()
	defer g.Unlock()

	t.mu.Lock()
	t.generations[ruleID]++
	t.dropRuleLocked(ruleID)
	t.mu.Unlock()

	var err error
	if t.store != nil {
		if err = t.store.DeleteRuleCounters(ctx, ruleID); err != nil {
			err = fmt.Errorf("delete counters for rule %d: %w", ruleID, err)
		}
	}

	// Loads that ran while the store still held old rows are discarded too.
	t.mu.Lock()
	t.dropRuleLocked(ruleID)
	t.mu.Unlock()
	return err
}

func (t *ViolationTracker) dropRuleLocked(ruleID int64) {
	for k := range t.counters {
		if k.ruleID == ruleID {
			delete(t.counters, k)
		}
	}
}

func (t *ViolationTracker) gate(ruleID int64) *sync.RWMutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.gates[ruleID]
	if !ok {
		g = &sync.RWMutex{}
		t.gates[ruleID] = g
	}
	return g
}

func (t *ViolationTracker) generation(ruleID int64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generations[ruleID]
}

func (t *ViolationTracker) current(ctx context.Context, key counterKey, gen uint64) (int64, error) {
	t.mu.Lock()
	v, ok := t.counters[key]
	t.mu.Unlock()
	if ok {
		return v, nil
	}
	if t.store == nil {
		return 0, nil
	}

	loaded, err := t.store.LoadCounter(ctx, key.accountID, key.ruleID)
	if err != nil {
		return 0, fmt.Errorf("load counter account=%d rule=%d: %w", key.accountID, key.ruleID, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.counters[key]; ok {
		return v, nil
	}
	// A reset that ran during the load may have deleted what was read.
	if t.generations[key.ruleID] == gen {
		t.counters[key] = loaded
	}
	return loaded, nil
}

func shouldFire(severity domain.Severity, count, softEvery int64) bool {
	if severity == domain.SeverityHard {
		return true
	}
	return count > 0 && count%softEvery == 0
}
