package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/service"
	appErrors "github.com/risky-biz/harmoni-hse-360-sub005/pkg/errors"
	"github.com/risky-biz/harmoni-hse-360-sub005/pkg/response"
)

type auditService interface {
	List(ctx context.Context, filter models.AuditFilter, actor service.Actor) ([]models.AuditLog, error)
	EntityTrail(ctx context.Context, entityType models.EntityType, entityID string, actor service.Actor) ([]models.AuditLog, error)
}

// AuditHandler exposes the audit trail endpoints.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(service auditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// List godoc
// @Summary Query the audit trail
// @Tags Audit
// @Produce json
// @Param entityType query string false "Entity type (HAZARD, LICENSE, TRAINING, USER)"
// @Param entityId query string false "Entity ID"
// @Param actorId query string false "Actor ID"
// @Param action query string false "Action name"
// @Success 200 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.AuditFilter{
		EntityType: models.EntityType(strings.ToUpper(c.Query("entityType"))),
		EntityID:   strings.TrimSpace(c.Query("entityId")),
		ActorID:    strings.TrimSpace(c.Query("actorId")),
		Action:     strings.TrimSpace(c.Query("action")),
		From:       parseDateQuery(c.Query("from")),
		To:         parseDateQuery(c.Query("to")),
	}
	filter.Limit = parseIntQuery(c.Query("limit"), 100)
	filter.Offset = parseIntQuery(c.Query("offset"), 0)

	entries, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// EntityTrail godoc
// @Summary Full audit trail for one entity
// @Tags Audit
// @Produce json
// @Param entityType path string true "Entity type"
// @Param entityId path string true "Entity ID"
// @Success 200 {object} response.Envelope
// @Router /audit-logs/{entityType}/{entityId} [get]
func (h *AuditHandler) EntityTrail(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entityType := models.EntityType(strings.ToUpper(c.Param("entityType")))
	entries, err := h.service.EntityTrail(c.Request.Context(), entityType, c.Param("entityId"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
