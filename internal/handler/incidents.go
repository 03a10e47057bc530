package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListIncidents godoc
// @Summary      List incidents
// @Description  Newest first, scoped to the caller's accounts unless the caller is an admin
// @Tags         incidents
// @Produce      json
// @Param        X-User-ID   header    int  true   "Caller user id"
// @Param        account_id  query     int  false  "Filter by account"
// @Param        limit       query     int  false  "Max rows"
// @Success      200         {array}   domain.Incident
// @Failure      400         {object}  map[string]string
// @Router       /api/incidents [get]
func (h *Handler) ListIncidents(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-incidents")
	defer span.End()

	accountID, ok := queryInt64(c, "account_id")
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	incidents, err := h.incidents.ListIncidents(ctx, callerFrom(c), accountID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, incidents)
}

// ListNotifications godoc
// @Summary      List notifications
// @Tags         notifications
// @Produce      json
// @Param        X-User-ID  header    int  true   "Caller user id"
// @Param        limit      query     int  false  "Max rows"
// @Success      200        {array}   domain.Notification
// @Router       /api/notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-notifications")
	defer span.End()

	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	notes, err := h.incidents.ListNotifications(ctx, callerFrom(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

// DeleteNotification godoc
// @Summary      Dismiss a notification
// @Tags         notifications
// @Param        X-User-ID  header    int  true  "Caller user id"
// @Param        id         path      int  true  "Notification ID"
// @Success      204
// @Failure      404        {object}  map[string]string
// @Router       /api/notifications/{id} [delete]
func (h *Handler) DeleteNotification(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.delete-notification")
	defer span.End()

	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.incidents.DismissNotification(ctx, callerFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
