package handler

import (
	"net/http"

	"riskwatch/internal/domain"
	"riskwatch/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CloseTradeRequest closes an open trade from the dashboard.
type CloseTradeRequest struct {
	CloseTime  service.Timestamp `json:"close_time"`
	ClosePrice decimal.Decimal   `json:"close_price"`
}

// ListAccounts godoc
// @Summary      List trading accounts
// @Tags         accounts
// @Produce      json
// @Param        X-User-ID  header    int  true  "Caller user id"
// @Success      200        {array}   domain.Account
// @Router       /api/accounts [get]
func (h *Handler) ListAccounts(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-accounts")
	defer span.End()

	accounts, err := h.accounts.ListAccounts(ctx, callerFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

// GetAccount godoc
// @Summary      Get a trading account
// @Tags         accounts
// @Produce      json
// @Param        X-User-ID  header    int  true  "Caller user id"
// @Param        id         path      int  true  "Account ID"
// @Success      200        {object}  domain.Account
// @Failure      404        {object}  map[string]string
// @Router       /api/accounts/{id} [get]
func (h *Handler) GetAccount(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-account")
	defer span.End()

	id, ok := pathID(c)
	if !ok {
		return
	}
	account, err := h.accounts.GetAccount(ctx, callerFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// CreateAccount godoc
// @Summary      Register a trading account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header    int                   true  "Caller user id"
// @Param        account    body      service.AccountInput  true  "Account"
// @Success      201        {object}  domain.Account
// @Failure      403        {object}  map[string]string
// @Failure      422        {object}  map[string]any
// @Router       /api/accounts [post]
func (h *Handler) CreateAccount(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.create-account")
	defer span.End()

	var in service.AccountInput
	if !bindJSON(c, &in) {
		return
	}
	account, err := h.accounts.CreateAccount(ctx, callerFrom(c), in)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

// UpdateAccountStatus godoc
// @Summary      Change account status flags
// @Description  Re-enables or disables trading and the account itself
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header    int                   true  "Caller user id"
// @Param        id         path      int                   true  "Account ID"
// @Param        update     body      service.StatusUpdate  true  "Status flags"
// @Success      200        {object}  domain.Account
// @Failure      404        {object}  map[string]string
// @Failure      422        {object}  map[string]any
// @Failure      503        {object}  map[string]string
// @Router       /api/accounts/{id} [put]
func (h *Handler) UpdateAccountStatus(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.update-account-status")
	defer span.End()

	id, ok := pathID(c)
	if !ok {
		return
	}
	var upd service.StatusUpdate
	if !bindJSON(c, &upd) {
		return
	}
	account, err := h.accounts.UpdateStatus(ctx, callerFrom(c), id, upd)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// ListTrades godoc
// @Summary      List trades
// @Tags         trades
// @Produce      json
// @Param        X-User-ID   header    int     true   "Caller user id"
// @Param        account_id  query     int     false  "Filter by account"
// @Param        status      query     string  false  "open or closed"
// @Param        limit       query     int     false  "Max rows"
// @Success      200         {array}   domain.Trade
// @Failure      400         {object}  map[string]string
// @Failure      422         {object}  map[string]any
// @Router       /api/trades [get]
func (h *Handler) ListTrades(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-trades")
	defer span.End()

	accountID, ok := queryInt64(c, "account_id")
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	f := domain.TradeFilter{AccountID: accountID, Limit: limit}
	if s := c.Query("status"); s != "" {
		status := domain.TradeStatus(s)
		f.Status = &status
	}

	trades, err := h.accounts.ListTrades(ctx, callerFrom(c), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

// CloseTrade godoc
// @Summary      Close a trade
// @Description  Closes an open trade and evaluates close-time rules
// @Tags         trades
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header    int                true  "Caller user id"
// @Param        id         path      int                true  "Trade ID"
// @Param        close      body      CloseTradeRequest  true  "Close details"
// @Success      200        {object}  service.IngestResult
// @Failure      404        {object}  map[string]string
// @Failure      409        {object}  map[string]string
// @Failure      422        {object}  map[string]any
// @Failure      503        {object}  map[string]string
// @Router       /api/trades/{id} [put]
func (h *Handler) CloseTrade(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.close-trade")
	defer span.End()

	id, ok := pathID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("trade.id", id))

	var req CloseTradeRequest
	if !bindJSON(c, &req) {
		return
	}
	var problems []string
	if req.CloseTime.IsZero() {
		problems = append(problems, "close_time is required")
	}
	if !req.ClosePrice.IsPositive() {
		problems = append(problems, "close_price must be positive")
	}
	if len(problems) > 0 {
		writeError(c, &service.ValidationError{Problems: problems})
		return
	}

	result, err := h.ingest.CloseTrade(ctx, callerFrom(c), id, req.CloseTime.Time, req.ClosePrice)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
