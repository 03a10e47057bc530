package domain

import "time"

// Incident is one detected violation. Rows are append-only: IsExecuted is the
// only field set after insert, once dispatch for the incident has finished.
type Incident struct {
	ID             int64        `json:"id"`
	AccountID      int64        `json:"account_id"`
	RiskRuleID     int64        `json:"risk_rule_id"`
	TradeID        *int64       `json:"trade_id,omitempty"`
	Trigger        TriggerPoint `json:"trigger"`
	Count          int64        `json:"count"`
	TriggeredValue string       `json:"triggered_value"`
	Fired          bool         `json:"fired"`
	IsExecuted     bool         `json:"is_executed"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`

	// Populated by listing queries only. RuleName is empty when the rule was deleted.
	RuleName     string   `json:"rule_name,omitempty"`
	RuleSeverity Severity `json:"rule_severity,omitempty"`
	AccountLogin int64    `json:"account_login,omitempty"`
}

type IncidentFilter struct {
	OwnerID   *int64
	AccountID *int64
	Limit     int
}

// Notice values carried in Notification metadata for remedial actions.
const (
	NoticeAccountDisabled = "account_disabled"
	NoticeTradingDisabled = "trading_disabled"
	NoticeTradesClosed    = "trades_closed"
)

type NotificationMetadata struct {
	RuleID     int64    `json:"rule_id,omitempty"`
	IncidentID int64    `json:"incident_id,omitempty"`
	AccountID  int64    `json:"account_id,omitempty"`
	Severity   Severity `json:"severity,omitempty"`
	Action     string   `json:"action,omitempty"`
}

type Notification struct {
	ID        int64                `json:"id"`
	UserID    int64                `json:"user_id"`
	Message   string               `json:"message"`
	Metadata  NotificationMetadata `json:"metadata"`
	CreatedAt time.Time            `json:"created_at"`
}
