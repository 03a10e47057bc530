package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"riskwatch/internal/domain"
	"riskwatch/internal/risk"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultReevaluationLimit bounds how many trades an account-wide
// re-evaluation touches.
const DefaultReevaluationLimit = 200

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp accepts RFC 3339 and the zone-less layouts the dashboard sends.
// Zone-less values are read as UTC.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time)
}

// TradeEvent is the inbound webhook payload. Without trade_id it opens a new
// trade (closing it too when status is "closed"); with trade_id it closes an
// existing trade.
type TradeEvent struct {
	TradeID      *int64             `json:"trade_id,omitempty"`
	AccountLogin int64              `json:"account_login"`
	Type         domain.TradeType   `json:"type"`
	Volume       decimal.Decimal    `json:"volume"`
	OpenTime     Timestamp          `json:"open_time"`
	OpenPrice    decimal.Decimal    `json:"open_price"`
	CloseTime    *Timestamp         `json:"close_time,omitempty"`
	ClosePrice   *decimal.Decimal   `json:"close_price,omitempty"`
	Status       domain.TradeStatus `json:"status,omitempty"`
}

func (ev TradeEvent) isClose() bool {
	return ev.TradeID != nil
}

func (ev TradeEvent) closesOnArrival() bool {
	return ev.TradeID == nil && ev.Status == domain.TradeClosed
}

func (ev TradeEvent) validate() error {
	var v validator
	if ev.isClose() {
		v.check(*ev.TradeID > 0, "trade_id must be positive")
		v.check(ev.CloseTime != nil && !ev.CloseTime.IsZero(), "close_time is required to close a trade")
		v.check(ev.ClosePrice != nil, "close_price is required to close a trade")
		if ev.ClosePrice != nil {
			v.check(ev.ClosePrice.IsPositive(), "close_price must be positive")
		}
		return v.err()
	}

	v.check(ev.AccountLogin > 0, "account_login is required")
	v.check(ev.Type.IsValid(), "type must be BUY or SELL")
	v.check(ev.Volume.IsPositive(), "volume must be positive")
	v.check(ev.OpenPrice.IsPositive(), "open_price must be positive")
	v.check(!ev.OpenTime.IsZero(), "open_time is required")
	v.check(ev.Status == "" || ev.Status == domain.TradeOpen || ev.Status == domain.TradeClosed,
		"status must be open or closed")
	if ev.closesOnArrival() {
		v.check(ev.CloseTime != nil && !ev.CloseTime.IsZero(), "close_time is required when status is closed")
		v.check(ev.ClosePrice != nil, "close_price is required when status is closed")
		if ev.CloseTime != nil && ev.CloseTime.Before(ev.OpenTime.Time) {
			v.add("close_time must not be before open_time")
		}
	}
	return v.err()
}

type ViolationSummary struct {
	RuleID         int64               `json:"rule_id"`
	Rule           string              `json:"rule"`
	Severity       domain.Severity     `json:"severity"`
	IncidentID     int64               `json:"incident_id"`
	TradeID        int64               `json:"trade_id"`
	Trigger        domain.TriggerPoint `json:"trigger"`
	Count          int64               `json:"count"`
	TriggeredValue string              `json:"triggered_value"`
	Fired          bool                `json:"fired"`
	Executed       bool                `json:"executed"`
	FailedActions  []domain.Action     `json:"failed_actions,omitempty"`
}

// IngestResult always reports every detected violation, whether or not its
// actions fired or succeeded.
type IngestResult struct {
	Success            bool               `json:"success"`
	Message            string             `json:"message"`
	TradeID            int64              `json:"trade_id,omitempty"`
	Trade              *domain.Trade      `json:"trade,omitempty"`
	ViolationsDetected int                `json:"violations_detected"`
	ViolationsFired    int                `json:"violations_fired"`
	Violations         []ViolationSummary `json:"violations"`
	SkippedRules       []risk.SkippedRule `json:"skipped_rules,omitempty"`
	RunIDs             []string           `json:"run_ids"`
	EvaluationError    string             `json:"evaluation_error,omitempty"`
}

func newResult() *IngestResult {
	return &IngestResult{Success: true, Violations: []ViolationSummary{}, RunIDs: []string{}}
}

func (r *IngestResult) add(rep *risk.Report) {
	if rep == nil {
		return
	}
	r.RunIDs = append(r.RunIDs, rep.RunID.String())
	r.SkippedRules = append(r.SkippedRules, rep.Skipped...)
	if rep.Incomplete() {
		r.Success = false
	}
	for _, v := range rep.Violations {
		r.ViolationsDetected++
		if v.Fired {
			r.ViolationsFired++
		}
		r.Violations = append(r.Violations, ViolationSummary{
			RuleID:         v.RuleID,
			Rule:           v.RuleName,
			Severity:       v.Severity,
			IncidentID:     v.IncidentID,
			TradeID:        rep.TradeID,
			Trigger:        rep.Trigger,
			Count:          v.Count,
			TriggeredValue: v.MeasuredValue,
			Fired:          v.Fired,
			Executed:       v.Executed,
			FailedActions:  v.FailedActions(),
		})
	}
}

// evaluationFailed notes a run that failed after the trade change was
// persisted. The change stands; re-evaluation retries the rules.
func (r *IngestResult) evaluationFailed(err error) {
	r.Success = false
	r.EvaluationError = err.Error()
}

func (r *IngestResult) summarize(what string) {
	if r.ViolationsDetected == 0 {
		r.Message = what + " without risk violations"
	} else {
		r.Message = fmt.Sprintf("%s with %d risk violations (%d fired)", what, r.ViolationsDetected, r.ViolationsFired)
	}
	if !r.Success {
		r.Message += "; risk evaluation incomplete, re-evaluate the trade to retry"
	}
}

// IngestService is the entry point for trade lifecycle events. It persists
// trades under the account lock and runs the risk engine on them.
type IngestService struct {
	tracer      trace.Tracer
	logger      *zap.Logger
	engine      *risk.Engine
	accounts    AccountStore
	trades      TradeStore
	prices      PriceRecorder
	reevalLimit int
}

func NewIngestService(
	tracer trace.Tracer,
	logger *zap.Logger,
	engine *risk.Engine,
	accounts AccountStore,
	trades TradeStore,
	prices PriceRecorder,
	reevalLimit int,
) *IngestService {
	if reevalLimit <= 0 {
		reevalLimit = DefaultReevaluationLimit
	}
	return &IngestService{
		tracer:      tracer,
		logger:      logger,
		engine:      engine,
		accounts:    accounts,
		trades:      trades,
		prices:      prices,
		reevalLimit: reevalLimit,
	}
}

// Ingest handles one webhook event.
func (s *IngestService) Ingest(ctx context.Context, ev TradeEvent) (*IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingest-service.ingest")
	defer span.End()
	span.SetAttributes(attribute.Int64("account_login", ev.AccountLogin))

	if err := ev.validate(); err != nil {
		return nil, err
	}
	if ev.isClose() {
		return s.closeTrade(ctx, nil, *ev.TradeID, ev.AccountLogin, ev.CloseTime.Time, *ev.ClosePrice)
	}
	return s.openTrade(ctx, ev)
}

func (s *IngestService) openTrade(ctx context.Context, ev TradeEvent) (*IngestResult, error) {
	acc, err := s.accounts.GetAccountByLogin(ctx, ev.AccountLogin)
	if err != nil {
		return nil, translate(err, ErrUnknownAccount)
	}

	result := newResult()
	err = s.engine.WithAccount(ctx, acc.ID, func(ctx context.Context, sess *risk.Session) error {
		current := sess.Account()
		if current.Status != domain.StatusEnabled {
			return ErrAccountDisabled
		}
		if current.TradingStatus != domain.StatusEnabled {
			return ErrTradingDisabled
		}

		trade := &domain.Trade{
			AccountID: current.ID,
			Type:      ev.Type,
			Volume:    ev.Volume,
			OpenTime:  ev.OpenTime.Time,
			OpenPrice: ev.OpenPrice,
			Status:    domain.TradeOpen,
		}
		if err := s.trades.CreateTrade(ctx, trade); err != nil {
			return fmt.Errorf("create trade: %w", err)
		}
		result.TradeID = trade.ID
		s.recordPrice(ctx, current.ID, ev.OpenPrice)

		openPrice := ev.OpenPrice
		rep, err := sess.Evaluate(ctx, *trade, domain.TriggerOpen, &openPrice)
		result.add(rep)
		if err != nil {
			s.logFailure("open evaluation failed", err, zap.Int64("trade_id", trade.ID))
			result.evaluationFailed(err)
		}

		if !ev.closesOnArrival() {
			result.Trade = trade
			result.summarize("Trade opened")
			return nil
		}

		closed, err := s.closeLocked(ctx, sess, trade.ID, ev.CloseTime.Time, *ev.ClosePrice, result)
		if errors.Is(err, domain.ErrTradeClosed) {
			// A remedial action already closed it during the open pass.
			result.Trade = closed
			result.summarize("Trade opened and closed by risk actions")
			return nil
		}
		if err != nil {
			return err
		}
		result.Trade = closed
		result.summarize("Trade opened and closed")
		return nil
	})
	if err != nil {
		s.logFailure("open trade failed", err, zap.Int64("account_id", acc.ID))
		return nil, err
	}
	s.logResult(result, acc.ID)
	return result, nil
}

// CloseTrade closes a trade on behalf of a dashboard user and runs the close
// trigger rules.
func (s *IngestService) CloseTrade(ctx context.Context, caller domain.Caller, tradeID int64, at time.Time, price decimal.Decimal) (*IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingest-service.close-trade")
	defer span.End()

	var v validator
	v.check(!at.IsZero(), "close_time is required")
	v.check(price.IsPositive(), "close_price must be positive")
	if err := v.err(); err != nil {
		return nil, err
	}
	return s.closeTrade(ctx, &caller, tradeID, 0, at, price)
}

func (s *IngestService) closeTrade(ctx context.Context, caller *domain.Caller, tradeID, login int64, at time.Time, price decimal.Decimal) (*IngestResult, error) {
	trade, err := s.trades.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, translate(err, ErrTradeNotFound)
	}
	acc, err := s.accounts.GetAccount(ctx, trade.AccountID)
	if err != nil {
		return nil, translate(err, ErrUnknownAccount)
	}
	if login != 0 && acc.Login != login {
		return nil, &ValidationError{Problems: []string{"trade does not belong to account_login"}}
	}
	if caller != nil && !caller.CanSee(acc.OwnerID) {
		return nil, ErrTradeNotFound
	}

	result := newResult()
	result.TradeID = tradeID
	err = s.engine.WithAccount(ctx, acc.ID, func(ctx context.Context, sess *risk.Session) error {
		closed, err := s.closeLocked(ctx, sess, tradeID, at, price, result)
		if err != nil {
			return err
		}
		result.Trade = closed
		result.summarize("Trade closed")
		return nil
	})
	if err != nil {
		s.logFailure("close trade failed", err, zap.Int64("trade_id", tradeID))
		return nil, err
	}
	s.logResult(result, acc.ID)
	return result, nil
}

// closeLocked transitions the trade and evaluates close-trigger rules into
// result. It must run inside WithAccount. Once the close is stored, an
// evaluation failure is reported in result rather than returned.
func (s *IngestService) closeLocked(ctx context.Context, sess *risk.Session, tradeID int64, at time.Time, price decimal.Decimal, result *IngestResult) (*domain.Trade, error) {
	trade, err := s.trades.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, translate(err, ErrTradeNotFound)
	}
	if err := trade.Close(at, price); err != nil {
		return trade, err
	}
	if err := s.trades.CloseTrade(ctx, tradeID, at, price); err != nil {
		return nil, err
	}
	s.recordPrice(ctx, trade.AccountID, price)

	rep, err := sess.Evaluate(ctx, *trade, domain.TriggerClose, &price)
	result.add(rep)
	if err != nil {
		s.logFailure("close evaluation failed", err, zap.Int64("trade_id", tradeID))
		result.evaluationFailed(err)
	}
	return trade, nil
}

// ReevaluateTrade runs the engine again for a stored trade: the open trigger,
// and the close trigger when the trade is closed. Combinations already
// evaluated are skipped by the engine.
func (s *IngestService) ReevaluateTrade(ctx context.Context, caller domain.Caller, tradeID int64) (*IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingest-service.reevaluate-trade")
	defer span.End()
	span.SetAttributes(attribute.Int64("trade_id", tradeID))

	trade, err := s.trades.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, translate(err, ErrTradeNotFound)
	}
	acc, err := s.accounts.GetAccount(ctx, trade.AccountID)
	if err != nil {
		return nil, translate(err, ErrUnknownAccount)
	}
	if !caller.CanSee(acc.OwnerID) {
		return nil, ErrTradeNotFound
	}

	result := newResult()
	result.TradeID = tradeID
	err = s.engine.WithAccount(ctx, acc.ID, func(ctx context.Context, sess *risk.Session) error {
		return s.reevaluateLocked(ctx, sess, tradeID, result)
	})
	if err != nil {
		s.logFailure("re-evaluation failed", err, zap.Int64("trade_id", tradeID))
		return nil, err
	}
	result.summarize("Trade re-evaluated")
	s.logResult(result, acc.ID)
	return result, nil
}

// ReevaluateAccount re-evaluates the account's most recent trades, oldest
// first, each under its own lock acquisition.
func (s *IngestService) ReevaluateAccount(ctx context.Context, caller domain.Caller, accountID int64) (*IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingest-service.reevaluate-account")
	defer span.End()
	span.SetAttributes(attribute.Int64("account_id", accountID))

	acc, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, translate(err, ErrUnknownAccount)
	}
	if !caller.CanSee(acc.OwnerID) {
		return nil, ErrUnknownAccount
	}

	ids, err := s.trades.RecentTradeIDs(ctx, accountID, s.reevalLimit)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}

	result := newResult()
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		err := s.engine.WithAccount(ctx, accountID, func(ctx context.Context, sess *risk.Session) error {
			return s.reevaluateLocked(ctx, sess, id, result)
		})
		if err != nil {
			s.logFailure("account re-evaluation stopped", err, zap.Int64("account_id", accountID), zap.Int64("trade_id", id))
			return nil, err
		}
	}
	result.summarize(fmt.Sprintf("Account re-evaluated over %d trades", len(ids)))
	s.logResult(result, accountID)
	return result, nil
}

func (s *IngestService) reevaluateLocked(ctx context.Context, sess *risk.Session, tradeID int64, result *IngestResult) error {
	trade, err := s.trades.GetTrade(ctx, tradeID)
	if err != nil {
		return translate(err, ErrTradeNotFound)
	}
	rep, err := sess.Evaluate(ctx, *trade, domain.TriggerOpen, nil)
	result.add(rep)
	if err != nil {
		return err
	}
	if trade.IsOpen() {
		return nil
	}
	var price *decimal.Decimal
	if trade.ClosePrice.Valid {
		p := trade.ClosePrice.Decimal
		price = &p
	}
	rep, err = sess.Evaluate(ctx, *trade, domain.TriggerClose, price)
	result.add(rep)
	return err
}

func (s *IngestService) recordPrice(ctx context.Context, accountID int64, price decimal.Decimal) {
	if s.prices == nil {
		return
	}
	if err := s.prices.RecordPrice(ctx, accountID, price); err != nil {
		s.logger.Warn("record last price failed", zap.Int64("account_id", accountID), zap.Error(err))
	}
}

func (s *IngestService) logResult(r *IngestResult, accountID int64) {
	s.logger.Info("trade event processed",
		zap.Int64("account_id", accountID),
		zap.Int64("trade_id", r.TradeID),
		zap.Int("violations", r.ViolationsDetected),
		zap.Int("fired", r.ViolationsFired),
		zap.Strings("run_ids", r.RunIDs),
	)
}

func (s *IngestService) logFailure(msg string, err error, fields ...zap.Field) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, ErrTradingDisabled), errors.Is(err, ErrAccountDisabled),
		errors.Is(err, domain.ErrTradeClosed), errors.Is(err, domain.ErrCloseBeforeOpen):
		s.logger.Info(msg, append(fields, zap.Error(err))...)
	default:
		s.logger.Error(msg, append(fields, zap.Error(err))...)
	}
}
