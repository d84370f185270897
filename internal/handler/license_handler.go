package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/dto"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/lifecycle"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/service"
	appErrors "github.com/risky-biz/harmoni-hse-360-sub005/pkg/errors"
	"github.com/risky-biz/harmoni-hse-360-sub005/pkg/response"
)

type licenseService interface {
	Register(ctx context.Context, req dto.CreateLicenseRequest, actor service.Actor) (*dto.LicenseResponse, error)
	Get(ctx context.Context, id string, actor service.Actor) (*dto.LicenseResponse, error)
	Update(ctx context.Context, id string, req dto.UpdateLicenseRequest, actor service.Actor) (*dto.LicenseResponse, error)
	Delete(ctx context.Context, id string, actor service.Actor) error
	Execute(ctx context.Context, id string, action lifecycle.Action, reason string, actor service.Actor) (*dto.LicenseResponse, error)
	AddCondition(ctx context.Context, licenseID string, req dto.CreateLicenseConditionRequest, actor service.Actor) (*models.LicenseCondition, error)
	CompleteCondition(ctx context.Context, licenseID, conditionID string, actor service.Actor) error
	List(ctx context.Context, filter models.LicenseFilter, actor service.Actor) ([]dto.LicenseResponse, *models.Pagination, error)
}

// LicenseHandler exposes REST endpoints for the license register.
type LicenseHandler struct {
	service licenseService
}

// NewLicenseHandler constructs the handler.
func NewLicenseHandler(service licenseService) *LicenseHandler {
	return &LicenseHandler{service: service}
}

// Create godoc
// @Summary Register a new license
// @Tags Licenses
// @Accept json
// @Produce json
// @Param payload body dto.CreateLicenseRequest true "License payload"
// @Success 201 {object} response.Envelope
// @Router /licenses [post]
func (h *LicenseHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid license payload"))
		return
	}
	license, err := h.service.Register(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, license, nil)
}

// List godoc
// @Summary List licenses
// @Tags Licenses
// @Produce json
// @Param search query string false "Free text search"
// @Param status query string false "Status filter"
// @Param type query string false "Type filter"
// @Param priority query string false "Priority filter"
// @Success 200 {object} response.Envelope
// @Router /licenses [get]
func (h *LicenseHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := licenseFilterFromQuery(c)
	licenses, pagination, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, licenses, pagination)
}

// Get godoc
// @Summary Get license detail
// @Tags Licenses
// @Produce json
// @Param id path string true "License ID"
// @Success 200 {object} response.Envelope
// @Router /licenses/{id} [get]
func (h *LicenseHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	license, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, license, nil)
}

// Update godoc
// @Summary Update the mutable fields of a license
// @Tags Licenses
// @Accept json
// @Produce json
// @Param id path string true "License ID"
// @Param payload body dto.UpdateLicenseRequest true "License payload"
// @Success 200 {object} response.Envelope
// @Router /licenses/{id} [put]
func (h *LicenseHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid license payload"))
		return
	}
	license, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, license, nil)
}

// Delete godoc
// @Summary Delete a draft license
// @Tags Licenses
// @Param id path string true "License ID"
// @Success 204
// @Router /licenses/{id} [delete]
func (h *LicenseHandler) Delete(c *gin.Context) {
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
// @Summary Execute a license workflow action
// @Tags Licenses
// @Accept json
// @Produce json
// @Param id path string true "License ID"
// @Param action path string true "Workflow action (submit, approve, reject, activate, suspend, reactivate, revoke, renew)"
// @Param payload body dto.TransitionRequest false "Optional reason"
// @Success 200 {object} response.Envelope
// @Router /licenses/{id}/actions/{action} [post]
func (h *LicenseHandler) Action(c *gin.Context) {
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
	license, err := h.service.Execute(c.Request.Context(), c.Param("id"), action, req.Reason, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, license, nil)
}

// AddCondition godoc
// @Summary Attach a compliance condition
// @Tags Licenses
// @Accept json
// @Produce json
// @Param id path string true "License ID"
// @Param payload body dto.CreateLicenseConditionRequest true "Condition payload"
// @Success 201 {object} response.Envelope
// @Router /licenses/{id}/conditions [post]
func (h *LicenseHandler) AddCondition(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateLicenseConditionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid condition payload"))
		return
	}
	condition, err := h.service.AddCondition(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, condition, nil)
}

// CompleteCondition godoc
// @Summary Mark a compliance condition complete
// @Tags Licenses
// @Param id path string true "License ID"
// @Param conditionId path string true "Condition ID"
// @Success 204
// @Router /licenses/{id}/conditions/{conditionId}/complete [post]
func (h *LicenseHandler) CompleteCondition(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.CompleteCondition(c.Request.Context(), c.Param("id"), c.Param("conditionId"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func licenseFilterFromQuery(c *gin.Context) models.LicenseFilter {
	filter := models.LicenseFilter{
		Search:     strings.TrimSpace(c.Query("search")),
		Department: strings.TrimSpace(c.Query("department")),
		SortBy:     c.Query("sortBy"),
		SortOrder:  c.Query("sortOrder"),
	}
	if raw := c.Query("type"); raw != "" {
		licenseType := models.LicenseType(strings.ToUpper(raw))
		filter.Type = &licenseType
	}
	if raw := c.Query("status"); raw != "" {
		status := models.LicenseStatus(strings.ToUpper(raw))
		filter.Status = &status
	}
	if raw := c.Query("priority"); raw != "" {
		priority := models.Priority(strings.ToUpper(raw))
		filter.Priority = &priority
	}
	filter.IssuedFrom = parseDateQuery(c.Query("issuedFrom"))
	filter.IssuedTo = parseDateQuery(c.Query("issuedTo"))
	filter.ExpiryFrom = parseDateQuery(c.Query("expiryFrom"))
	filter.ExpiryTo = parseDateQuery(c.Query("expiryTo"))
	filter.OnlyOverdue = parseBoolQuery(c.Query("overdue"))
	filter.OnlyMine = parseBoolQuery(c.Query("mine"))
	filter.Page, filter.PageSize = parsePaginationQuery(c)
	return filter
}
