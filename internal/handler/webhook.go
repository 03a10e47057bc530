package handler

import (
	"net/http"

	"riskwatch/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// IngestTrade godoc
// @Summary      Ingest a trade event
// @Description  Opens a trade, or closes one when trade_id is set, and evaluates the owner's active risk rules
// @Tags         webhook
// @Accept       json
// @Produce      json
// @Param        event  body      service.TradeEvent  true  "Trade event"
// @Success      200    {object}  service.IngestResult
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Failure      409    {object}  map[string]string
// @Failure      422    {object}  map[string]any
// @Failure      503    {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /webhook/trade [post]
func (h *Handler) IngestTrade(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.ingest-trade")
	defer span.End()

	var ev service.TradeEvent
	if !bindJSON(c, &ev) {
		return
	}
	span.SetAttributes(attribute.Int64("account.login", ev.AccountLogin))

	result, err := h.ingest.Ingest(ctx, ev)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(c, err)
		return
	}
	span.SetAttributes(attribute.Int("violations.detected", result.ViolationsDetected))
	c.JSON(http.StatusOK, result)
}

// ReevaluateTrade godoc
// @Summary      Re-evaluate a trade
// @Description  Runs the current active rules against a stored trade; violations already recorded for this rule version are not repeated
// @Tags         risk-evaluation
// @Produce      json
// @Param        X-User-ID  header    int  true  "Caller user id"
// @Param        id         path      int  true  "Trade ID"
// @Success      200        {object}  service.IngestResult
// @Failure      400        {object}  map[string]string
// @Failure      404        {object}  map[string]string
// @Failure      503        {object}  map[string]string
// @Router       /risk-evaluation/trade/{id} [post]
func (h *Handler) ReevaluateTrade(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.reevaluate-trade")
	defer span.End()

	id, ok := pathID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("trade.id", id))

	result, err := h.ingest.ReevaluateTrade(ctx, callerFrom(c), id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ReevaluateAccount godoc
// @Summary      Re-evaluate an account
// @Description  Re-evaluates the account's most recent trades oldest first
// @Tags         risk-evaluation
// @Produce      json
// @Param        X-User-ID  header    int  true  "Caller user id"
// @Param        id         path      int  true  "Account ID"
// @Success      200        {object}  service.IngestResult
// @Failure      400        {object}  map[string]string
// @Failure      404        {object}  map[string]string
// @Failure      503        {object}  map[string]string
// @Router       /risk-evaluation/account/{id} [post]
func (h *Handler) ReevaluateAccount(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.reevaluate-account")
	defer span.End()

	id, ok := pathID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("account.id", id))

	result, err := h.ingest.ReevaluateAccount(ctx, callerFrom(c), id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
