package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wiretrace/wiretrace/internal/model"
	"github.com/wiretrace/wiretrace/internal/pkg/apperrors"
	"github.com/wiretrace/wiretrace/internal/service"
)

type EventHandler struct {
	ingest *service.IngestService
	query  *service.QueryService
}

func NewEventHandler(ingest *service.IngestService, query *service.QueryService) *EventHandler {
	return &EventHandler{ingest: ingest, query: query}
}

func (h *EventHandler) Ingest(c *gin.Context) {
	var raw model.IncomingEvent
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.Error(apperrors.NewInvalidEvent(err.Error()))
		return
	}

	id, err := h.ingest.Ingest(c.Request.Context(), &raw)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, model.IngestResult{ID: id, Success: true})
}

func (h *EventHandler) List(c *gin.Context) {
	var q model.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.Error(apperrors.NewInvalidEvent(err.Error()))
		return
	}
	// Clamp here: the query service takes page and limit as given.
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 1000 {
		q.Limit = 100
	}

	result, err := h.query.List(c.Request.Context(), q)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *EventHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(apperrors.NewNotFound("Event not found"))
		return
	}

	event, err := h.query.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (h *EventHandler) Hosts(c *gin.Context) {
	hosts, err := h.query.Hosts(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, hosts)
}

func (h *EventHandler) Clear(c *gin.Context) {
	if err := h.query.Clear(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *EventHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
