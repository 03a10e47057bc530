package repository

import (
	"context"
	"time"

	"riskwatch/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tradeColumns = `id, account_id, type, volume, open_time, open_price, close_time, close_price, status, created_at, updated_at`

type TradeRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewTradeRepository(pool PgxPool, tracer trace.Tracer) *TradeRepository {
	return &TradeRepository{pool: pool, tracer: tracer}
}

func scanTrade(row pgx.Row) (*domain.Trade, error) {
	t := &domain.Trade{}
	err := row.Scan(&t.ID, &t.AccountID, &t.Type, &t.Volume, &t.OpenTime, &t.OpenPrice,
		&t.CloseTime, &t.ClosePrice, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func collectTrades(rows pgx.Rows) ([]domain.Trade, error) {
	defer rows.Close()
	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *t)
	}
	return trades, rows.Err()
}

// CreateTrade inserts t. A trade that arrives already closed is stored with
// its close fields in the same row.
func (r *TradeRepository) CreateTrade(ctx context.Context, t *domain.Trade) error {
	ctx, span := r.tracer.Start(ctx, "trade-repo.create-trade")
	defer span.End()
	span.SetAttributes(attribute.Int64("account_id", t.AccountID))

	if t.Status == "" {
		t.Status = domain.TradeOpen
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO trades (account_id, type, volume, open_time, open_price, close_time, close_price, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		t.AccountID, t.Type, t.Volume, t.OpenTime, t.OpenPrice, t.CloseTime, t.ClosePrice, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *TradeRepository) GetTrade(ctx context.Context, id int64) (*domain.Trade, error) {
	ctx, span := r.tracer.Start(ctx, "trade-repo.get-trade")
	defer span.End()

	return scanTrade(r.pool.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id))
}

func (r *TradeRepository) ListTrades(ctx context.Context, f domain.TradeFilter) ([]domain.Trade, error) {
	ctx, span := r.tracer.Start(ctx, "trade-repo.list-trades")
	defer span.End()

	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}
	rows, err := r.pool.Query(ctx,
		`SELECT t.id, t.account_id, t.type, t.volume, t.open_time, t.open_price, t.close_time,
		        t.close_price, t.status, t.created_at, t.updated_at
		 FROM trades t
		 JOIN accounts a ON a.id = t.account_id
		 WHERE ($1::BIGINT IS NULL OR a.owner_id = $1)
		   AND ($2::BIGINT IS NULL OR t.account_id = $2)
		   AND ($3::TEXT IS NULL OR t.status = $3)
		 ORDER BY t.open_time DESC, t.id DESC
		 LIMIT $4`,
		f.OwnerID, f.AccountID, status, clampLimit(f.Limit),
	)
	if err != nil {
		return nil, err
	}
	return collectTrades(rows)
}

func (r *TradeRepository) ListOpenTrades(ctx context.Context, accountID int64) ([]domain.Trade, error) {
	ctx, span := r.tracer.Start(ctx, "trade-repo.list-open-trades")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades
		 WHERE account_id = $1 AND status = 'open'
		 ORDER BY open_time, id`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	return collectTrades(rows)
}

// CloseTrade sets the close fields of an open trade. The transition happens
// at most once: a second close returns domain.ErrTradeClosed.
func (r *TradeRepository) CloseTrade(ctx context.Context, tradeID int64, at time.Time, price decimal.Decimal) error {
	ctx, span := r.tracer.Start(ctx, "trade-repo.close-trade")
	defer span.End()
	span.SetAttributes(attribute.Int64("trade_id", tradeID))

	tag, err := r.pool.Exec(ctx,
		`UPDATE trades
		 SET status = 'closed', close_time = $2, close_price = $3, updated_at = NOW()
		 WHERE id = $1 AND status = 'open' AND open_time <= $2`,
		tradeID, at, price,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	current, err := r.GetTrade(ctx, tradeID)
	if err != nil {
		return err
	}
	if !current.IsOpen() {
		return domain.ErrTradeClosed
	}
	return domain.ErrCloseBeforeOpen
}

// RecentTradesBefore returns up to limit trades of the account that precede
// trade in (open_time, id) order, newest first.
func (r *TradeRepository) RecentTradesBefore(ctx context.Context, accountID int64, trade domain.Trade, limit int) ([]domain.Trade, error) {
	ctx, span := r.tracer.Start(ctx, "trade-repo.recent-trades-before")
	defer span.End()
	span.SetAttributes(attribute.Int64("account_id", accountID), attribute.Int("limit", limit))

	rows, err := r.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades
		 WHERE account_id = $1 AND (open_time, id) < ($2, $3)
		 ORDER BY open_time DESC, id DESC
		 LIMIT $4`,
		accountID, trade.OpenTime, trade.ID, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectTrades(rows)
}

func (r *TradeRepository) CountOpenTradesInWindow(ctx context.Context, accountID int64, from, to time.Time) (int, error) {
	ctx, span := r.tracer.Start(ctx, "trade-repo.count-open-trades-in-window")
	defer span.End()

	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM trades
		 WHERE account_id = $1 AND status = 'open' AND open_time BETWEEN $2 AND $3`,
		accountID, from, to,
	).Scan(&n)
	return n, err
}

// RecentTradeIDs lists the newest trade ids of an account, used to bound
// account-wide re-evaluation.
func (r *TradeRepository) RecentTradeIDs(ctx context.Context, accountID int64, limit int) ([]int64, error) {
	ctx, span := r.tracer.Start(ctx, "trade-repo.recent-trade-ids")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id FROM trades WHERE account_id = $1 ORDER BY open_time DESC, id DESC LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
