package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrTradeClosed     = errors.New("trade is already closed")
	ErrCloseBeforeOpen = errors.New("close time is before open time")
)

type TradeType string

const (
	TradeBuy  TradeType = "BUY"
	TradeSell TradeType = "SELL"
)

func (t TradeType) IsValid() bool {
	return t == TradeBuy || t == TradeSell
}

type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// Trade belongs to exactly one account. CloseTime and ClosePrice are set
// together, once, when the trade transitions to closed.
type Trade struct {
	ID         int64               `json:"id"`
	AccountID  int64               `json:"account_id"`
	Type       TradeType           `json:"type"`
	Volume     decimal.Decimal     `json:"volume"`
	OpenTime   time.Time           `json:"open_time"`
	OpenPrice  decimal.Decimal     `json:"open_price"`
	CloseTime  *time.Time          `json:"close_time,omitempty"`
	ClosePrice decimal.NullDecimal `json:"close_price"`
	Status     TradeStatus         `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func (t Trade) IsOpen() bool {
	return t.Status == TradeOpen
}

// Close transitions the trade to closed. It fails if the trade was already
// closed or if at precedes the open time.
func (t *Trade) Close(at time.Time, price decimal.Decimal) error {
	if t.Status == TradeClosed {
		return ErrTradeClosed
	}
	if at.Before(t.OpenTime) {
		return ErrCloseBeforeOpen
	}
	closeTime := at
	t.CloseTime = &closeTime
	t.ClosePrice = decimal.NewNullDecimal(price)
	t.Status = TradeClosed
	return nil
}

// HeldFor returns how long a closed trade stayed open. Open trades report zero.
func (t Trade) HeldFor() time.Duration {
	if t.CloseTime == nil {
		return 0
	}
	return t.CloseTime.Sub(t.OpenTime)
}

type TradeFilter struct {
	OwnerID   *int64
	AccountID *int64
	Status    *TradeStatus
	Limit     int
}
