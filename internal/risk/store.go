package risk

import (
	"context"
	"time"

	"riskwatch/internal/domain"

	"github.com/shopspring/decimal"
)

// The engine depends only on these narrow views of storage. The repository
// package provides the Postgres implementations.

type AccountReader interface {
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
}

type RuleSource interface {
	ActiveRulesForOwner(ctx context.Context, ownerID int64) ([]domain.RiskRule, error)
}

type TradeHistory interface {
	// RecentTradesBefore returns up to limit trades of the account opened
	// before trade (ties broken by id), newest first.
	RecentTradesBefore(ctx context.Context, accountID int64, trade domain.Trade, limit int) ([]domain.Trade, error)
	CountOpenTradesInWindow(ctx context.Context, accountID int64, from, to time.Time) (int, error)
}

type CounterStore interface {
	LoadCounter(ctx context.Context, accountID, ruleID int64) (int64, error)
	DeleteRuleCounters(ctx context.Context, ruleID int64) error
}

// EvaluationKey identifies one evaluation of a rule version against a trade
// at a trigger point.
type EvaluationKey struct {
	TradeID     int64
	RuleID      int64
	RuleVersion int
	Trigger     domain.TriggerPoint
}

type EvaluationMarks interface {
	HasEvaluation(ctx context.Context, key EvaluationKey) (bool, error)
	MarkEvaluated(ctx context.Context, key EvaluationKey) error
}

// ViolationRecord is written as one unit: the evaluation mark, the incident
// row and the new counter value commit together or not at all.
type ViolationRecord struct {
	Key      EvaluationKey
	Incident *domain.Incident
	Counter  int64
}

type IncidentStore interface {
	RecordViolation(ctx context.Context, rec ViolationRecord) error
	MarkExecuted(ctx context.Context, incidentID int64) error
}

type AccountMutator interface {
	SetAccountStatus(ctx context.Context, accountID int64, status domain.Status) error
	SetTradingStatus(ctx context.Context, accountID int64, status domain.Status) error
	ListOpenTrades(ctx context.Context, accountID int64) ([]domain.Trade, error)
	CloseTrade(ctx context.Context, tradeID int64, at time.Time, price decimal.Decimal) error
}

type NotificationWriter interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
}

type AdminDirectory interface {
	ListAdmins(ctx context.Context) ([]domain.User, error)
}

type PriceBook interface {
	LastPrice(ctx context.Context, accountID int64) (decimal.Decimal, bool, error)
}

// AdminRelay pushes admin notices to an out-of-band channel such as a chat.
type AdminRelay interface {
	Relay(ctx context.Context, message string) error
}
