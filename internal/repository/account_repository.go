package repository

import (
	"context"
	"fmt"

	"riskwatch/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const accountColumns = `id, owner_id, login, trading_status, status, created_at, updated_at`

type AccountRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewAccountRepository(pool PgxPool, tracer trace.Tracer) *AccountRepository {
	return &AccountRepository{pool: pool, tracer: tracer}
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(&a.ID, &a.OwnerID, &a.Login, &a.TradingStatus, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (r *AccountRepository) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	ctx, span := r.tracer.Start(ctx, "account-repo.get-account")
	defer span.End()
	span.SetAttributes(attribute.Int64("account_id", id))

	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *AccountRepository) GetAccountByLogin(ctx context.Context, login int64) (*domain.Account, error) {
	ctx, span := r.tracer.Start(ctx, "account-repo.get-account-by-login")
	defer span.End()
	span.SetAttributes(attribute.Int64("login", login))

	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE login = $1`, login))
}

// ListAccounts returns accounts, restricted to one owner when ownerID is set.
func (r *AccountRepository) ListAccounts(ctx context.Context, ownerID *int64) ([]domain.Account, error) {
	ctx, span := r.tracer.Start(ctx, "account-repo.list-accounts")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE ($1::BIGINT IS NULL OR owner_id = $1)
		 ORDER BY id`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) CreateAccount(ctx context.Context, a *domain.Account) error {
	ctx, span := r.tracer.Start(ctx, "account-repo.create-account")
	defer span.End()

	return r.pool.QueryRow(ctx,
		`INSERT INTO accounts (owner_id, login, trading_status, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		a.OwnerID, a.Login, a.TradingStatus, a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepository) SetAccountStatus(ctx context.Context, accountID int64, status domain.Status) error {
	ctx, span := r.tracer.Start(ctx, "account-repo.set-account-status")
	defer span.End()

	return r.setColumn(ctx, "status", accountID, status)
}

func (r *AccountRepository) SetTradingStatus(ctx context.Context, accountID int64, status domain.Status) error {
	ctx, span := r.tracer.Start(ctx, "account-repo.set-trading-status")
	defer span.End()

	return r.setColumn(ctx, "trading_status", accountID, status)
}

// column is one of two fixed identifiers, never caller input.
func (r *AccountRepository) setColumn(ctx context.Context, column string, accountID int64, status domain.Status) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status %q", status)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET `+column+` = $2, updated_at = NOW() WHERE id = $1`,
		accountID, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
