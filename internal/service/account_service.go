package service

import (
	"context"
	"fmt"

	"riskwatch/internal/domain"
	"riskwatch/internal/risk"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type AccountInput struct {
	OwnerID       int64         `json:"owner_id"`
	Login         int64         `json:"login"`
	TradingStatus domain.Status `json:"trading_status"`
	Status        domain.Status `json:"status"`
}

// StatusUpdate changes either status flag; nil fields are left unchanged.
type StatusUpdate struct {
	TradingStatus *domain.Status `json:"trading_status"`
	Status        *domain.Status `json:"status"`
}

type AccountService struct {
	tracer   trace.Tracer
	logger   *zap.Logger
	accounts AccountStore
	trades   TradeStore
	locker   *risk.AccountLocker
}

func NewAccountService(tracer trace.Tracer, logger *zap.Logger, accounts AccountStore, trades TradeStore, locker *risk.AccountLocker) *AccountService {
	return &AccountService{tracer: tracer, logger: logger, accounts: accounts, trades: trades, locker: locker}
}

func (s *AccountService) ListAccounts(ctx context.Context, caller domain.Caller) ([]domain.Account, error) {
	ctx, span := s.tracer.Start(ctx, "account-service.list-accounts")
	defer span.End()

	accounts, err := s.accounts.ListAccounts(ctx, scopeOwner(caller))
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	return accounts, nil
}

func (s *AccountService) GetAccount(ctx context.Context, caller domain.Caller, id int64) (*domain.Account, error) {
	acc, err := s.accounts.GetAccount(ctx, id)
	if err != nil {
		return nil, translate(err, ErrUnknownAccount)
	}
	if !caller.CanSee(acc.OwnerID) {
		return nil, ErrUnknownAccount
	}
	return acc, nil
}

func (s *AccountService) CreateAccount(ctx context.Context, caller domain.Caller, in AccountInput) (*domain.Account, error) {
	ctx, span := s.tracer.Start(ctx, "account-service.create-account")
	defer span.End()

	owner := caller.UserID
	if in.OwnerID != 0 && in.OwnerID != caller.UserID {
		if !caller.IsAdmin {
			return nil, ErrForbidden
		}
		owner = in.OwnerID
	}
	if in.TradingStatus == "" {
		in.TradingStatus = domain.StatusEnabled
	}
	if in.Status == "" {
		in.Status = domain.StatusEnabled
	}

	var v validator
	v.check(in.Login > 0, "login must be positive")
	v.check(in.TradingStatus.IsValid(), "trading_status must be enable or disable")
	v.check(in.Status.IsValid(), "status must be enable or disable")
	if err := v.err(); err != nil {
		return nil, err
	}

	acc := &domain.Account{
		OwnerID:       owner,
		Login:         in.Login,
		TradingStatus: in.TradingStatus,
		Status:        in.Status,
	}
	if err := s.accounts.CreateAccount(ctx, acc); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.logger.Info("account created", zap.Int64("account_id", acc.ID), zap.Int64("login", acc.Login))
	return acc, nil
}

// UpdateStatus applies a manual status change. It takes the account lock so
// the change is ordered against in-flight trade events.
func (s *AccountService) UpdateStatus(ctx context.Context, caller domain.Caller, id int64, upd StatusUpdate) (*domain.Account, error) {
	ctx, span := s.tracer.Start(ctx, "account-service.update-status")
	defer span.End()
	span.SetAttributes(attribute.Int64("account_id", id))

	var v validator
	v.check(upd.TradingStatus != nil || upd.Status != nil, "trading_status or status is required")
	if upd.TradingStatus != nil {
		v.check(upd.TradingStatus.IsValid(), "trading_status must be enable or disable")
	}
	if upd.Status != nil {
		v.check(upd.Status.IsValid(), "status must be enable or disable")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	if _, err := s.GetAccount(ctx, caller, id); err != nil {
		return nil, err
	}

	var updated *domain.Account
	err := s.locker.Do(ctx, id, func(ctx context.Context) error {
		if upd.Status != nil {
			if err := s.accounts.SetAccountStatus(ctx, id, *upd.Status); err != nil {
				return translate(err, ErrUnknownAccount)
			}
		}
		if upd.TradingStatus != nil {
			if err := s.accounts.SetTradingStatus(ctx, id, *upd.TradingStatus); err != nil {
				return translate(err, ErrUnknownAccount)
			}
		}
		acc, err := s.accounts.GetAccount(ctx, id)
		if err != nil {
			return translate(err, ErrUnknownAccount)
		}
		updated = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("account status updated",
		zap.Int64("account_id", id),
		zap.String("status", string(updated.Status)),
		zap.String("trading_status", string(updated.TradingStatus)),
	)
	return updated, nil
}

// ListTrades lists trades visible to the caller. A non-admin filtering by
// someone else's account gets an empty list.
func (s *AccountService) ListTrades(ctx context.Context, caller domain.Caller, f domain.TradeFilter) ([]domain.Trade, error) {
	ctx, span := s.tracer.Start(ctx, "account-service.list-trades")
	defer span.End()

	if f.Status != nil && *f.Status != domain.TradeOpen && *f.Status != domain.TradeClosed {
		return nil, &ValidationError{Problems: []string{"status must be open or closed"}}
	}
	f.OwnerID = scopeOwner(caller)
	trades, err := s.trades.ListTrades(ctx, f)
	if err != nil {
		return nil, err
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	return trades, nil
}
