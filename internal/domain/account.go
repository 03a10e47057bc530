package domain

import "time"

// Status is the enable/disable flag used for both account status fields.
// Values match what the dashboard sends.
type Status string

const (
	StatusEnabled  Status = "enable"
	StatusDisabled Status = "disable"
)

func (s Status) IsValid() bool {
	return s == StatusEnabled || s == StatusDisabled
}

// Account is a trading account identified externally by its numeric login.
type Account struct {
	ID            int64     `json:"id"`
	OwnerID       int64     `json:"owner_id"`
	Login         int64     `json:"login"`
	TradingStatus Status    `json:"trading_status"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CanOpenTrades reports whether new trades may be accepted for the account.
func (a Account) CanOpenTrades() bool {
	return a.Status == StatusEnabled && a.TradingStatus == StatusEnabled
}

// User is the owner of accounts and rules, and the recipient of notifications.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// Caller is the identity supplied by the external auth layer for a request.
type Caller struct {
	UserID  int64
	IsAdmin bool
}

// CanSee reports whether the caller may read or act on data owned by ownerID.
func (c Caller) CanSee(ownerID int64) bool {
	return c.IsAdmin || c.UserID == ownerID
}
