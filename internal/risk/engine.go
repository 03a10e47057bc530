package risk

import (
	"context"
	"fmt"
	"time"

	"riskwatch/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxParallelRules bounds history lookups issued for one evaluation run.
const maxParallelRules = 4

type EngineDeps struct {
	Accounts   AccountReader
	Rules      RuleSource
	History    TradeHistory
	Marks      EvaluationMarks
	Tracker    *ViolationTracker
	Recorder   *IncidentRecorder
	Dispatcher *ActionDispatcher
	Locker     *AccountLocker
	Logger     *zap.Logger
	Tracer     trace.Tracer
}

// Engine evaluates an account's active rules against trade events. All
// evaluation for one account happens inside WithAccount.
type Engine struct {
	accounts   AccountReader
	rules      RuleSource
	history    TradeHistory
	marks      EvaluationMarks
	tracker    *ViolationTracker
	recorder   *IncidentRecorder
	dispatcher *ActionDispatcher
	locker     *AccountLocker
	logger     *zap.Logger
	tracer     trace.Tracer
	newRunID   func() uuid.UUID
}

func NewEngine(deps EngineDeps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		accounts:   deps.Accounts,
		rules:      deps.Rules,
		history:    deps.History,
		marks:      deps.Marks,
		tracker:    deps.Tracker,
		recorder:   deps.Recorder,
		dispatcher: deps.Dispatcher,
		locker:     deps.Locker,
		logger:     logger,
		tracer:     deps.Tracer,
		newRunID:   uuid.New,
	}
}

// Locker exposes the per-account lock so other writers (manual status
// changes, trade persistence) share the same serialization scope.
func (e *Engine) Locker() *AccountLocker {
	return e.locker
}

// Tracker exposes the violation tracker for counter resets on rule changes.
func (e *Engine) Tracker() *ViolationTracker {
	return e.tracker
}

// Session is valid only inside the WithAccount callback that created it.
type Session struct {
	engine  *Engine
	account domain.Account
}

// Account is the account as loaded under the lock.
func (s *Session) Account() domain.Account {
	return s.account
}

// Reload refreshes the session's view of the account after remedial actions.
func (s *Session) Reload(ctx context.Context) error {
	acc, err := s.engine.accounts.GetAccount(ctx, s.account.ID)
	if err != nil {
		return err
	}
	s.account = *acc
	return nil
}

// WithAccount runs fn while holding the account's lock. Once the lock is
// held, cancellation of ctx no longer interrupts the work: a run that started
// finishes its writes.
func (e *Engine) WithAccount(ctx context.Context, accountID int64, fn func(ctx context.Context, s *Session) error) error {
	unlock, err := e.locker.Lock(ctx, accountID)
	if err != nil {
		return err
	}
	defer unlock()

	ctx = context.WithoutCancel(ctx)
	acc, err := e.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	return fn(ctx, &Session{engine: e, account: *acc})
}

// Violation is one violated rule in a run.
type Violation struct {
	RuleID        int64           `json:"rule_id"`
	RuleName      string          `json:"rule"`
	Severity      domain.Severity `json:"severity"`
	IncidentID    int64           `json:"incident_id"`
	Count         int64           `json:"count"`
	MeasuredValue string          `json:"triggered_value"`
	Fired         bool            `json:"fired"`
	Executed      bool            `json:"executed"`
	Outcomes      []ActionOutcome `json:"actions,omitempty"`
}

// FailedActions lists the actions that did not succeed.
func (v Violation) FailedActions() []domain.Action {
	var failed []domain.Action
	for _, o := range v.Outcomes {
		if !o.OK {
			failed = append(failed, o.Action)
		}
	}
	return failed
}

type SkippedRule struct {
	RuleID int64  `json:"rule_id"`
	Reason string `json:"reason"`

	// Unrecorded marks a rule whose result could not be stored. It is not
	// marked evaluated, so a re-evaluation runs it again.
	Unrecorded bool `json:"unrecorded,omitempty"`
}

// Report summarizes one evaluation run.
type Report struct {
	RunID      uuid.UUID           `json:"run_id"`
	AccountID  int64               `json:"account_id"`
	TradeID    int64               `json:"trade_id"`
	Trigger    domain.TriggerPoint `json:"trigger"`
	Evaluated  int                 `json:"evaluated"`
	Skipped    []SkippedRule       `json:"skipped,omitempty"`
	Violations []Violation         `json:"violations"`
}

// Incomplete reports whether any rule's result failed to be stored.
func (r *Report) Incomplete() bool {
	if r == nil {
		return false
	}
	for _, sk := range r.Skipped {
		if sk.Unrecorded {
			return true
		}
	}
	return false
}

type candidate struct {
	rule   domain.RiskRule
	params domain.RuleParameters
	key    EvaluationKey
}

type outcome struct {
	verdict Verdict
	err     error
}

// Evaluate runs every active rule of the account owner that applies at
// trigger against trade. Rules already evaluated for this trade, rule version
// and trigger are skipped. A rule whose definition, evaluation or storage
// fails is reported in Skipped and does not affect the others.
//
// evalPrice is the market price carried by the event, if any. It is used
// when a fired rule closes open trades.
func (s *Session) Evaluate(ctx context.Context, trade domain.Trade, trigger domain.TriggerPoint, evalPrice *decimal.Decimal) (*Report, error) {
	e := s.engine
	runID := e.newRunID()
	ctx, span := e.tracer.Start(ctx, "risk-engine.evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", runID.String()),
		attribute.Int64("account_id", s.account.ID),
		attribute.Int64("trade_id", trade.ID),
		attribute.String("trigger", string(trigger)),
	)

	log := e.logger.With(
		zap.String("run_id", runID.String()),
		zap.Int64("account_id", s.account.ID),
		zap.Int64("trade_id", trade.ID),
		zap.String("trigger", string(trigger)),
	)

	report := &Report{
		RunID:      runID,
		AccountID:  s.account.ID,
		TradeID:    trade.ID,
		Trigger:    trigger,
		Violations: []Violation{},
	}

	if trade.AccountID != s.account.ID {
		return nil, fmt.Errorf("trade %d does not belong to account %d", trade.ID, s.account.ID)
	}

	rules, err := e.rules.ActiveRulesForOwner(ctx, s.account.OwnerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load rules")
		return nil, fmt.Errorf("load active rules: %w", err)
	}

	candidates, err := s.selectCandidates(ctx, rules, trade, trigger, report, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select rules")
		return nil, err
	}

	results := e.evaluateAll(ctx, candidates, s.account, trade, trigger)

	for i, c := range candidates {
		res := results[i]
		if res.err != nil {
			log.Warn("rule evaluation failed", zap.Int64("rule_id", c.rule.ID), zap.Error(res.err))
			report.Skipped = append(report.Skipped, SkippedRule{RuleID: c.rule.ID, Reason: res.err.Error()})
			continue
		}
		report.Evaluated++

		if !res.verdict.Violated {
			if err := e.marks.MarkEvaluated(ctx, c.key); err != nil {
				log.Error("mark rule evaluated failed", zap.Int64("rule_id", c.rule.ID), zap.Error(err))
				report.Skipped = append(report.Skipped, SkippedRule{RuleID: c.rule.ID, Reason: err.Error(), Unrecorded: true})
			}
			continue
		}

		v, err := s.handleViolation(ctx, c, trade, res.verdict, evalPrice)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "record violation")
			log.Error("record violation failed", zap.Int64("rule_id", c.rule.ID), zap.Error(err))
			report.Skipped = append(report.Skipped, SkippedRule{RuleID: c.rule.ID, Reason: err.Error(), Unrecorded: true})
			continue
		}
		log.Info("rule violated",
			zap.Int64("rule_id", v.RuleID),
			zap.String("severity", string(v.Severity)),
			zap.Int64("incident_id", v.IncidentID),
			zap.Int64("count", v.Count),
			zap.Bool("fired", v.Fired),
			zap.Bool("executed", v.Executed),
		)
		report.Violations = append(report.Violations, v)
	}

	span.SetAttributes(
		attribute.Int("evaluated", report.Evaluated),
		attribute.Int("violations", len(report.Violations)),
		attribute.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

func (s *Session) selectCandidates(
	ctx context.Context,
	rules []domain.RiskRule,
	trade domain.Trade,
	trigger domain.TriggerPoint,
	report *Report,
	log *zap.Logger,
) ([]candidate, error) {
	e := s.engine
	var out []candidate
	for _, rule := range rules {
		if !rule.IsActive || rule.OwnerID != s.account.OwnerID {
			continue
		}
		params, err := rule.Parameters()
		if err != nil {
			defErr := &RuleDefinitionError{RuleID: rule.ID, Err: err}
			log.Warn("skipping rule with invalid definition", zap.Int64("rule_id", rule.ID), zap.Error(defErr))
			report.Skipped = append(report.Skipped, SkippedRule{RuleID: rule.ID, Reason: defErr.Error()})
			continue
		}
		if !domain.AppliesAt(params, trigger) {
			continue
		}
		key := EvaluationKey{TradeID: trade.ID, RuleID: rule.ID, RuleVersion: rule.Version, Trigger: trigger}
		done, err := e.marks.HasEvaluation(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("check evaluation of rule %d: %w", rule.ID, err)
		}
		if done {
			continue
		}
		out = append(out, candidate{rule: rule, params: params, key: key})
	}
	return out, nil
}

// evaluateAll gathers history and computes verdicts concurrently. Verdicts
// are pure; all writes happen afterwards, in rule order.
func (e *Engine) evaluateAll(ctx context.Context, candidates []candidate, account domain.Account, trade domain.Trade, trigger domain.TriggerPoint) []outcome {
	results := make([]outcome, len(candidates))
	var g errgroup.Group
	g.SetLimit(maxParallelRules)
	for i, c := range candidates {
		g.Go(func() error {
			ec, err := e.buildContext(ctx, c.params, account, trade, trigger)
			if err != nil {
				results[i] = outcome{err: err}
				return nil
			}
			v, err := Evaluate(c.params, account, trade, ec)
			results[i] = outcome{verdict: v, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Engine) buildContext(ctx context.Context, params domain.RuleParameters, account domain.Account, trade domain.Trade, trigger domain.TriggerPoint) (EvaluationContext, error) {
	ec := EvaluationContext{Now: eventTime(trade, trigger)}
	switch p := params.(type) {
	case domain.VolumeParams:
		prior, err := e.history.RecentTradesBefore(ctx, account.ID, trade, p.LookbackTrades)
		if err != nil {
			return ec, fmt.Errorf("load prior trades: %w", err)
		}
		ec.PriorTrades = prior
	case domain.TimeRangeParams:
		from := ec.Now.Add(-time.Duration(p.WindowMinutes) * time.Minute)
		n, err := e.history.CountOpenTradesInWindow(ctx, account.ID, from, ec.Now)
		if err != nil {
			return ec, fmt.Errorf("count open trades: %w", err)
		}
		ec.OpenTradesInWindow = n
	}
	return ec, nil
}

func (s *Session) handleViolation(ctx context.Context, c candidate, trade domain.Trade, verdict Verdict, evalPrice *decimal.Decimal) (Violation, error) {
	e := s.engine
	release := e.tracker.HoldRule(c.rule.ID)
	esc, err := e.tracker.Next(ctx, s.account.ID, c.rule)
	if err != nil {
		release()
		return Violation{}, err
	}

	inc, err := e.recorder.Record(ctx, RecordInput{
		Key:           c.key,
		Account:       s.account,
		Rule:          c.rule,
		Trade:         &trade,
		Escalation:    esc,
		MeasuredValue: verdict.MeasuredValue,
	})
	if err != nil {
		release()
		return Violation{}, err
	}
	e.tracker.Commit(s.account.ID, c.rule.ID, esc)
	release()

	v := Violation{
		RuleID:        c.rule.ID,
		RuleName:      c.rule.Name,
		Severity:      c.rule.Severity,
		IncidentID:    inc.ID,
		Count:         esc.Count,
		MeasuredValue: verdict.MeasuredValue,
		Fired:         esc.FireNow,
	}
	if !esc.FireNow {
		return v, nil
	}

	v.Outcomes = e.dispatcher.Dispatch(ctx, DispatchRequest{
		Account:   s.account,
		Rule:      c.rule,
		Incident:  inc,
		EvalPrice: evalPrice,
	})
	if AllSucceeded(v.Outcomes) {
		if err := e.recorder.MarkExecuted(ctx, inc); err != nil {
			// The incident stays unexecuted and is picked up by the audit job.
			e.logger.Warn("mark executed failed", zap.Int64("incident_id", inc.ID), zap.Error(err))
		} else {
			v.Executed = true
		}
	}
	if err := s.Reload(ctx); err != nil {
		e.logger.Warn("reload account after dispatch", zap.Int64("account_id", s.account.ID), zap.Error(err))
	}
	return v, nil
}
