package handler

import (
	"context"
	"time"

	"riskwatch/internal/domain"
	"riskwatch/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

type Ingestor interface {
	Ingest(ctx context.Context, ev service.TradeEvent) (*service.IngestResult, error)
	CloseTrade(ctx context.Context, caller domain.Caller, tradeID int64, at time.Time, price decimal.Decimal) (*service.IngestResult, error)
	ReevaluateTrade(ctx context.Context, caller domain.Caller, tradeID int64) (*service.IngestResult, error)
	ReevaluateAccount(ctx context.Context, caller domain.Caller, accountID int64) (*service.IngestResult, error)
}

type RuleManager interface {
	RuleTypes() []domain.RuleType
	Actions() []domain.ActionDef
	ListRules(ctx context.Context, caller domain.Caller) ([]domain.RiskRule, error)
	GetRule(ctx context.Context, caller domain.Caller, id int64) (*domain.RiskRule, error)
	CreateRule(ctx context.Context, caller domain.Caller, in service.RuleInput) (*domain.RiskRule, error)
	UpdateRule(ctx context.Context, caller domain.Caller, id int64, p service.RulePatch) (*domain.RiskRule, error)
	DeleteRule(ctx context.Context, caller domain.Caller, id int64) error
}

type AccountManager interface {
	ListAccounts(ctx context.Context, caller domain.Caller) ([]domain.Account, error)
	GetAccount(ctx context.Context, caller domain.Caller, id int64) (*domain.Account, error)
	CreateAccount(ctx context.Context, caller domain.Caller, in service.AccountInput) (*domain.Account, error)
	UpdateStatus(ctx context.Context, caller domain.Caller, id int64, upd service.StatusUpdate) (*domain.Account, error)
	ListTrades(ctx context.Context, caller domain.Caller, f domain.TradeFilter) ([]domain.Trade, error)
}

type IncidentReader interface {
	ListIncidents(ctx context.Context, caller domain.Caller, accountID *int64, limit int) ([]domain.Incident, error)
	ListNotifications(ctx context.Context, caller domain.Caller, limit int) ([]domain.Notification, error)
	DismissNotification(ctx context.Context, caller domain.Caller, id int64) error
}

type Handler struct {
	tracer    trace.Tracer
	ingest    Ingestor
	rules     RuleManager
	accounts  AccountManager
	incidents IncidentReader
}

func New(tracer trace.Tracer, ingest Ingestor, rules RuleManager, accounts AccountManager, incidents IncidentReader) *Handler {
	return &Handler{
		tracer:    tracer,
		ingest:    ingest,
		rules:     rules,
		accounts:  accounts,
		incidents: incidents,
	}
}

// RegisterRoutes mounts every endpoint. The webhook is guarded by webhookKey;
// everything else requires a caller identity resolved through users.
func (h *Handler) RegisterRoutes(r *gin.Engine, webhookKey string, users service.UserStore) {
	r.Use(RequestID())
	r.GET("/health", h.Health)

	webhook := APIKeyAuth(webhookKey)
	r.POST("/webhook/trade", webhook, h.IngestTrade)
	r.POST("/api/webhook/trade", webhook, h.IngestTrade)

	scoped := CallerScope(users)
	for _, prefix := range []string{"", "/api"} {
		eval := r.Group(prefix+"/risk-evaluation", scoped)
		eval.POST("/trade/:id", h.ReevaluateTrade)
		eval.POST("/account/:id", h.ReevaluateAccount)
	}

	api := r.Group("/api", scoped)

	api.GET("/risk-rules/types", h.ListRuleTypes)
	api.GET("/risk-rules/actions", h.ListRuleActions)
	api.GET("/risk-rules", h.ListRules)
	api.POST("/risk-rules", h.CreateRule)
	api.GET("/risk-rules/:id", h.GetRule)
	api.PUT("/risk-rules/:id", h.UpdateRule)
	api.DELETE("/risk-rules/:id", h.DeleteRule)

	api.GET("/accounts", h.ListAccounts)
	api.POST("/accounts", h.CreateAccount)
	api.GET("/accounts/:id", h.GetAccount)
	api.PUT("/accounts/:id", h.UpdateAccountStatus)

	api.GET("/trades", h.ListTrades)
	api.PUT("/trades/:id", h.CloseTrade)

	api.GET("/incidents", h.ListIncidents)
	api.GET("/notifications", h.ListNotifications)
	api.DELETE("/notifications/:id", h.DeleteNotification)
}
