package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"riskwatch/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ActionOutcome reports how one configured action went.
type ActionOutcome struct {
	Action domain.Action `json:"action"`
	OK     bool          `json:"ok"`
	Error  string        `json:"error,omitempty"`
}

// AllSucceeded is true when every outcome is OK, including the empty list.
func AllSucceeded(outcomes []ActionOutcome) bool {
	for _, o := range outcomes {
		if !o.OK {
			return false
		}
	}
	return true
}

type DispatchRequest struct {
	Account  domain.Account
	Rule     domain.RiskRule
	Incident *domain.Incident
	// EvalPrice is the price known at evaluation time, if the event carried one.
	EvalPrice *decimal.Decimal
}

// ActionDispatcher executes a fired rule's actions in configured order.
// Every action is attempted; failures are collected, never rolled back.
type ActionDispatcher struct {
	tracer   trace.Tracer
	logger   *zap.Logger
	accounts AccountMutator
	notes    NotificationWriter
	admins   AdminDirectory
	prices   PriceBook
	relay    AdminRelay
	now      func() time.Time
}

func NewActionDispatcher(
	tracer trace.Tracer,
	logger *zap.Logger,
	accounts AccountMutator,
	notes NotificationWriter,
	admins AdminDirectory,
	prices PriceBook,
) *ActionDispatcher {
	return &ActionDispatcher{
		tracer:   tracer,
		logger:   logger,
		accounts: accounts,
		notes:    notes,
		admins:   admins,
		prices:   prices,
		now:      time.Now,
	}
}

// SetRelay enables out-of-band delivery of admin notices.
func (d *ActionDispatcher) SetRelay(relay AdminRelay) {
	d.relay = relay
}

func (d *ActionDispatcher) Dispatch(ctx context.Context, req DispatchRequest) []ActionOutcome {
	ctx, span := d.tracer.Start(ctx, "action-dispatcher.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("incident_id", req.Incident.ID),
		attribute.Int("actions", len(req.Rule.Actions)),
	)

	outcomes := make([]ActionOutcome, 0, len(req.Rule.Actions))
	for _, action := range req.Rule.Actions {
		err := d.execute(ctx, action, req)
		outcome := ActionOutcome{Action: action, OK: err == nil}
		if err != nil {
			outcome.Error = err.Error()
			d.logger.Warn("action failed",
				zap.String("action", string(action)),
				zap.Int64("incident_id", req.Incident.ID),
				zap.Int64("account_id", req.Account.ID),
				zap.Int64("rule_id", req.Rule.ID),
				zap.Error(err),
			)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (d *ActionDispatcher) execute(ctx context.Context, action domain.Action, req DispatchRequest) error {
	switch action {
	case domain.ActionNotifyEmail:
		return d.notifyOwner(ctx, req, string(action), ruleMessage(req))
	case domain.ActionNotifyAdmin:
		return d.notifyAdmins(ctx, req)
	case domain.ActionDisableAccount:
		if err := d.accounts.SetAccountStatus(ctx, req.Account.ID, domain.StatusDisabled); err != nil {
			return err
		}
		d.notice(ctx, req, domain.NoticeAccountDisabled,
			fmt.Sprintf("Account %d was disabled by rule %q", req.Account.Login, req.Rule.Name))
		return nil
	case domain.ActionDisableTrading:
		if err := d.accounts.SetTradingStatus(ctx, req.Account.ID, domain.StatusDisabled); err != nil {
			return err
		}
		d.notice(ctx, req, domain.NoticeTradingDisabled,
			fmt.Sprintf("Trading on account %d was disabled by rule %q", req.Account.Login, req.Rule.Name))
		return nil
	case domain.ActionCloseOpenTrades:
		closed, err := d.closeOpenTrades(ctx, req)
		if closed > 0 {
			d.notice(ctx, req, domain.NoticeTradesClosed,
				fmt.Sprintf("%d open trades on account %d were closed by rule %q", closed, req.Account.Login, req.Rule.Name))
		}
		return err
	case domain.ActionLogIncident:
		return nil
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func (d *ActionDispatcher) closeOpenTrades(ctx context.Context, req DispatchRequest) (int, error) {
	trades, err := d.accounts.ListOpenTrades(ctx, req.Account.ID)
	if err != nil {
		return 0, fmt.Errorf("list open trades: %w", err)
	}

	fallback, haveFallback := decimal.Zero, false
	if req.EvalPrice != nil {
		fallback, haveFallback = *req.EvalPrice, true
	} else if d.prices != nil {
		p, ok, err := d.prices.LastPrice(ctx, req.Account.ID)
		if err != nil {
			d.logger.Warn("last price lookup failed", zap.Int64("account_id", req.Account.ID), zap.Error(err))
		} else if ok {
			fallback, haveFallback = p, true
		}
	}

	at := d.now()
	closed := 0
	var errs []error
	for _, t := range trades {
		if t.AccountID != req.Account.ID {
			continue
		}
		price := t.OpenPrice
		if haveFallback {
			price = fallback
		}
		closeAt := at
		if closeAt.Before(t.OpenTime) {
			closeAt = t.OpenTime
		}
		if err := d.accounts.CloseTrade(ctx, t.ID, closeAt, price); err != nil {
			if errors.Is(err, domain.ErrTradeClosed) {
				continue
			}
			errs = append(errs, fmt.Errorf("close trade %d: %w", t.ID, err))
			continue
		}
		closed++
	}
	return closed, errors.Join(errs...)
}

func (d *ActionDispatcher) notifyOwner(ctx context.Context, req DispatchRequest, action, message string) error {
	return d.notes.CreateNotification(ctx, &domain.Notification{
		UserID:   req.Account.OwnerID,
		Message:  message,
		Metadata: metadataFor(req, action),
	})
}

func (d *ActionDispatcher) notifyAdmins(ctx context.Context, req DispatchRequest) error {
	admins, err := d.admins.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	msg := ruleMessage(req)
	var errs []error
	for _, admin := range admins {
		err := d.notes.CreateNotification(ctx, &domain.Notification{
			UserID:   admin.ID,
			Message:  msg,
			Metadata: metadataFor(req, string(domain.ActionNotifyAdmin)),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("notify admin %d: %w", admin.ID, err))
		}
	}
	if d.relay != nil {
		if err := d.relay.Relay(ctx, msg); err != nil {
			d.logger.Warn("admin relay failed", zap.Int64("incident_id", req.Incident.ID), zap.Error(err))
		}
	}
	return errors.Join(errs...)
}

// notice informs the owner that a remedial action was applied. Failure to
// write the notice does not fail the action itself.
func (d *ActionDispatcher) notice(ctx context.Context, req DispatchRequest, action, message string) {
	if err := d.notifyOwner(ctx, req, action, message); err != nil {
		d.logger.Warn("owner notice failed",
			zap.String("notice", action),
			zap.Int64("account_id", req.Account.ID),
			zap.Error(err),
		)
	}
}

func metadataFor(req DispatchRequest, action string) domain.NotificationMetadata {
	return domain.NotificationMetadata{
		RuleID:     req.Rule.ID,
		IncidentID: req.Incident.ID,
		AccountID:  req.Account.ID,
		Severity:   req.Rule.Severity,
		Action:     action,
	}
}

func ruleMessage(req DispatchRequest) string {
	return fmt.Sprintf("%s rule %q violated on account %d (violation #%d): %s",
		req.Rule.Severity, req.Rule.Name, req.Account.Login, req.Incident.Count, req.Incident.TriggeredValue)
}
