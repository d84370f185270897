package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/dto"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/lifecycle"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/service"
	appErrors "github.com/risky-biz/harmoni-hse-360-sub005/pkg/errors"
	"github.com/risky-biz/harmoni-hse-360-sub005/pkg/response"
)

type hazardService interface {
	Report(ctx context.Context, req dto.CreateHazardRequest, actor service.Actor) (*dto.HazardResponse, error)
	Get(ctx context.Context, id string, actor service.Actor) (*dto.HazardResponse, error)
	Update(ctx context.Context, id string, req dto.UpdateHazardRequest, actor service.Actor) (*dto.HazardResponse, error)
	Delete(ctx context.Context, id string, actor service.Actor) error
	Execute(ctx context.Context, id string, action lifecycle.Action, req dto.TransitionRequest, actor service.Actor) (*dto.HazardResponse, error)
	AddMitigation(ctx context.Context, hazardID string, req dto.CreateMitigationRequest, actor service.Actor) (*models.MitigationAction, error)
	CompleteMitigation(ctx context.Context, hazardID, actionID string, actor service.Actor) error
	List(ctx context.Context, filter models.HazardFilter, actor service.Actor) ([]dto.HazardResponse, *models.Pagination, error)
}

// HazardHandler exposes REST endpoints for the hazard register.
type HazardHandler struct {
	service hazardService
}

// NewHazardHandler constructs the handler.
func NewHazardHandler(service hazardService) *HazardHandler {
	return &HazardHandler{service: service}
}

// Create godoc
// @Summary Report a new hazard
// @Tags Hazards
// @Accept json
// @Produce json
// @Param payload body dto.CreateHazardRequest true "Hazard payload"
// @Success 201 {object} response.Envelope
// @Router /hazards [post]
func (h *HazardHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateHazardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid hazard payload"))
		return
	}
	hazard, err := h.service.Report(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, hazard, nil)
}

// List godoc
// @Summary List hazards
// @Tags Hazards
// @Produce json
// @Param search query string false "Free text search"
// @Param status query string false "Status filter"
// @Param category query string false "Category filter"
// @Param riskLevel query string false "Risk level filter"
// @Success 200 {object} response.Envelope
// @Router /hazards [get]
func (h *HazardHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := hazardFilterFromQuery(c)
	hazards, pagination, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hazards, pagination)
}

// Get godoc
// @Summary Get hazard detail
// @Tags Hazards
// @Produce json
// @Param id path string true "Hazard ID"
// @Success 200 {object} response.Envelope
// @Router /hazards/{id} [get]
func (h *HazardHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	hazard, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hazard, nil)
}

// Update godoc
// @Summary Update an open hazard
// @Tags Hazards
// @Accept json
// @Produce json
// @Param id path string true "Hazard ID"
// @Param payload body dto.UpdateHazardRequest true "Hazard payload"
// @Success 200 {object} response.Envelope
// @Router /hazards/{id} [put]
func (h *HazardHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateHazardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid hazard payload"))
		return
	}
	hazard, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hazard, nil)
}

// Delete godoc
// @Summary Delete an open hazard
// @Tags Hazards
// @Param id path string true "Hazard ID"
// @Success 204
// @Router /hazards/{id} [delete]
func (h *HazardHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Action godoc
// @Summary Execute a hazard workflow action
// @Tags Hazards
// @Accept json
// @Produce json
// @Param id path string true "Hazard ID"
// @Param action path string true "Workflow action (assess, resolve, close, reopen)"
// @Param payload body dto.TransitionRequest false "Reason and optional assessment"
// @Success 200 {object} response.Envelope
// @Router /hazards/{id}/actions/{action} [post]
func (h *HazardHandler) Action(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.TransitionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transition payload"))
			return
		}
	}
	action := lifecycle.Action(strings.ToLower(c.Param("action")))
	hazard, err := h.service.Execute(c.Request.Context(), c.Param("id"), action, req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hazard, nil)
}

// AddMitigation godoc
// @Summary Attach a mitigation action
// @Tags Hazards
// @Accept json
// @Produce json
// @Param id path string true "Hazard ID"
// @Param payload body dto.CreateMitigationRequest true "Mitigation payload"
// @Success 201 {object} response.Envelope
// @Router /hazards/{id}/mitigations [post]
func (h *HazardHandler) AddMitigation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateMitigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid mitigation payload"))
		return
	}
	action, err := h.service.AddMitigation(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, action, nil)
}

// CompleteMitigation godoc
// @Summary Mark a mitigation action complete
// @Tags Hazards
// @Param id path string true "Hazard ID"
// @Param actionId path string true "Mitigation action ID"
// @Success 204
// @Router /hazards/{id}/mitigations/{actionId}/complete [post]
func (h *HazardHandler) CompleteMitigation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.CompleteMitigation(c.Request.Context(), c.Param("id"), c.Param("actionId"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func hazardFilterFromQuery(c *gin.Context) models.HazardFilter {
	filter := models.HazardFilter{
		Search:     strings.TrimSpace(c.Query("search")),
		Department: strings.TrimSpace(c.Query("department")),
		SortBy:     c.Query("sortBy"),
		SortOrder:  c.Query("sortOrder"),
	}
	if raw := c.Query("category"); raw != "" {
		category := models.HazardCategory(strings.ToUpper(raw))
		filter.Category = &category
	}
	if raw := c.Query("status"); raw != "" {
		status := models.HazardStatus(strings.ToUpper(raw))
		filter.Status = &status
	}
	if raw := c.Query("riskLevel"); raw != "" {
		level := models.RiskLevel(strings.ToUpper(raw))
		filter.RiskLevel = &level
	}
	filter.IdentifiedFrom = parseDateQuery(c.Query("identifiedFrom"))
	filter.IdentifiedTo = parseDateQuery(c.Query("identifiedTo"))
	filter.Latitude = parseFloatQuery(c.Query("latitude"))
	filter.Longitude = parseFloatQuery(c.Query("longitude"))
	filter.RadiusKm = parseFloatQuery(c.Query("radiusKm"))
	filter.OnlyUnassessed = parseBoolQuery(c.Query("unassessed"))
	filter.OnlyOverdue = parseBoolQuery(c.Query("overdue"))
	filter.OnlyHighRisk = parseBoolQuery(c.Query("highRisk"))
	filter.OnlyMine = parseBoolQuery(c.Query("mine"))
	filter.Page, filter.PageSize = parsePaginationQuery(c)
	return filter
}

func parsePaginationQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	return page, pageSize
}

func parseIntQuery(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func parseDateQuery(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	if ts, err := time.Parse("2006-01-02", raw); err == nil {
		return &ts
	}
	return nil
}

func parseFloatQuery(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &value
}

func parseBoolQuery(raw string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && value
}
