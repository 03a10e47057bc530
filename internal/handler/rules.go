package handler

import (
	"net/http"

	"riskwatch/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ListRuleTypes godoc
// @Summary      List rule types
// @Tags         risk-rules
// @Produce      json
// @Param        X-User-ID  header    int  true  "Caller user id"
// @Success      200        {array}   domain.RuleType
// @Router       /api/risk-rules/types [get]
func (h *Handler) ListRuleTypes(c *gin.Context) {
	c.JSON(http.StatusOK, h.rules.RuleTypes())
}

// ListRuleActions godoc
// @Summary      List rule actions
// @Tags         risk-rules
// @Produce      json
// @Param        X-User-ID  header    int  true  "Caller user id"
// @Success      200        {array}   domain.ActionDef
// @Router       /api/risk-rules/actions [get]
func (h *Handler) ListRuleActions(c *gin.Context) {
	c.JSON(http.StatusOK, h.rules.Actions())
}

// ListRules godoc
// @Summary      List risk rules
// @Description  Admins see every rule; other users see their own
// @Tags         risk-rules
// @Produce      json
// @Param        X-User-ID  header    int  true  "Caller user id"
// @Success      200        {array}   domain.RiskRule
// @Failure      401        {object}  map[string]string
// @Router       /api/risk-rules [get]
func (h *Handler) ListRules(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-rules")
	defer span.End()

	rules, err := h.rules.ListRules(ctx, callerFrom(c))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// GetRule godoc
// @Summary      Get a risk rule
// @Tags         risk-rules
// @Produce      json
// @Param        X-User-ID  header    int  true  "Caller user id"
// @Param        id         path      int  true  "Rule ID"
// @Success      200        {object}  domain.RiskRule
// @Failure      404        {object}  map[string]string
// @Router       /api/risk-rules/{id} [get]
func (h *Handler) GetRule(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-rule")
	defer span.End()

	id, ok := pathID(c)
	if !ok {
		return
	}
	rule, err := h.rules.GetRule(ctx, callerFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// CreateRule godoc
// @Summary      Create a risk rule
// @Tags         risk-rules
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header    int                true  "Caller user id"
// @Param        rule       body      service.RuleInput  true  "Rule definition"
// @Success      201        {object}  domain.RiskRule
// @Failure      400        {object}  map[string]string
// @Failure      403        {object}  map[string]string
// @Failure      422        {object}  map[string]any
// @Router       /api/risk-rules [post]
func (h *Handler) CreateRule(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.create-rule")
	defer span.End()

	var in service.RuleInput
	if !bindJSON(c, &in) {
		return
	}
	rule, err := h.rules.CreateRule(ctx, callerFrom(c), in)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(c, err)
		return
	}
	span.SetAttributes(attribute.Int64("rule.id", rule.ID))
	c.JSON(http.StatusCreated, rule)
}

// UpdateRule godoc
// @Summary      Update a risk rule
// @Description  Partial update. Any change other than is_active starts a new rule version.
// @Tags         risk-rules
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header    int                true  "Caller user id"
// @Param        id         path      int                true  "Rule ID"
// @Param        patch      body      service.RulePatch  true  "Fields to change"
// @Success      200        {object}  domain.RiskRule
// @Failure      400        {object}  map[string]string
// @Failure      404        {object}  map[string]string
// @Failure      422        {object}  map[string]any
// @Router       /api/risk-rules/{id} [put]
func (h *Handler) UpdateRule(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.update-rule")
	defer span.End()

	id, ok := pathID(c)
	if !ok {
		return
	}
	var patch service.RulePatch
	if !bindJSON(c, &patch) {
		return
	}
	rule, err := h.rules.UpdateRule(ctx, callerFrom(c), id, patch)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeleteRule godoc
// @Summary      Delete a risk rule
// @Tags         risk-rules
// @Param        X-User-ID  header    int  true  "Caller user id"
// @Param        id         path      int  true  "Rule ID"
// @Success      204
// @Failure      404        {object}  map[string]string
// @Router       /api/risk-rules/{id} [delete]
func (h *Handler) DeleteRule(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.delete-rule")
	defer span.End()

	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.rules.DeleteRule(ctx, callerFrom(c), id); err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
