package service

import (
	"context"
	"errors"
	"time"

	"riskwatch/internal/domain"

	"github.com/shopspring/decimal"
)

type AccountStore interface {
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	GetAccountByLogin(ctx context.Context, login int64) (*domain.Account, error)
	ListAccounts(ctx context.Context, ownerID *int64) ([]domain.Account, error)
	CreateAccount(ctx context.Context, a *domain.Account) error
	SetAccountStatus(ctx context.Context, accountID int64, status domain.Status) error
	SetTradingStatus(ctx context.Context, accountID int64, status domain.Status) error
}

type TradeStore interface {
	CreateTrade(ctx context.Context, t *domain.Trade) error
	GetTrade(ctx context.Context, id int64) (*domain.Trade, error)
	ListTrades(ctx context.Context, f domain.TradeFilter) ([]domain.Trade, error)
	CloseTrade(ctx context.Context, tradeID int64, at time.Time, price decimal.Decimal) error
	RecentTradeIDs(ctx context.Context, accountID int64, limit int) ([]int64, error)
}

type RuleStore interface {
	GetRule(ctx context.Context, id int64) (*domain.RiskRule, error)
	ListRules(ctx context.Context, ownerID *int64) ([]domain.RiskRule, error)
	ActiveRulesForOwner(ctx context.Context, ownerID int64) ([]domain.RiskRule, error)
	CreateRule(ctx context.Context, rule *domain.RiskRule) error
	UpdateRule(ctx context.Context, rule *domain.RiskRule, definitionChanged bool) error
	DeleteRule(ctx context.Context, id int64) error
}

type IncidentLister interface {
	ListIncidents(ctx context.Context, f domain.IncidentFilter) ([]domain.Incident, error)
}

type NotificationStore interface {
	ListNotifications(ctx context.Context, userID int64, limit int) ([]domain.Notification, error)
	DeleteNotification(ctx context.Context, id, userID int64) error
}

type UserStore interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

type PriceRecorder interface {
	RecordPrice(ctx context.Context, accountID int64, price decimal.Decimal) error
}

// scopeOwner returns the owner filter for list queries: nil for admins.
func scopeOwner(caller domain.Caller) *int64 {
	if caller.IsAdmin {
		return nil
	}
	id := caller.UserID
	return &id
}

// translate maps a storage miss to the given service error.
func translate(err, notFound error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return notFound
	}
	return err
}
