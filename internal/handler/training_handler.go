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

type trainingService interface {
	Create(ctx context.Context, req dto.CreateTrainingRequest, actor service.Actor) (*dto.TrainingResponse, error)
	Get(ctx context.Context, id string, actor service.Actor) (*dto.TrainingResponse, error)
	Update(ctx context.Context, id string, req dto.UpdateTrainingRequest, actor service.Actor) (*dto.TrainingResponse, error)
	Delete(ctx context.Context, id string, actor service.Actor) error
	Execute(ctx context.Context, id string, action lifecycle.Action, reason string, actor service.Actor) (*dto.TrainingResponse, error)
	Enroll(ctx context.Context, trainingID string, req dto.EnrollRequest, actor service.Actor) (*models.Enrollment, error)
	UpdateEnrollment(ctx context.Context, trainingID, enrollmentID string, req dto.UpdateEnrollmentRequest, actor service.Actor) error
	List(ctx context.Context, filter models.TrainingFilter, actor service.Actor) ([]dto.TrainingResponse, *models.Pagination, error)
}

// TrainingHandler exposes REST endpoints for training sessions.
type TrainingHandler struct {
	service trainingService
}

// NewTrainingHandler constructs the handler.
func NewTrainingHandler(service trainingService) *TrainingHandler {
	return &TrainingHandler{service: service}
}

// Create godoc
// @Summary Draft a training session
// @Tags Trainings
// @Accept json
// @Produce json
// @Param payload body dto.CreateTrainingRequest true "Training payload"
// @Success 201 {object} response.Envelope
// @Router /trainings [post]
func (h *TrainingHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid training payload"))
		return
	}
	training, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, training, nil)
}

// List godoc
// @Summary List training sessions
// @Tags Trainings
// @Produce json
// @Param search query string false "Free text search"
// @Param status query string false "Status filter"
// @Param type query string false "Type filter"
// @Success 200 {object} response.Envelope
// @Router /trainings [get]
func (h *TrainingHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := trainingFilterFromQuery(c)
	trainings, pagination, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trainings, pagination)
}

// Get godoc
// @Summary Get training detail
// @Tags Trainings
// @Produce json
// @Param id path string true "Training ID"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id} [get]
func (h *TrainingHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	training, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, training, nil)
}

// Update godoc
// @Summary Update a draft training session
// @Tags Trainings
// @Accept json
// @Produce json
// @Param id path string true "Training ID"
// @Param payload body dto.UpdateTrainingRequest true "Training payload"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id} [put]
func (h *TrainingHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid training payload"))
		return
	}
	training, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, training, nil)
}

// Delete godoc
// @Summary Delete a draft training session
// @Tags Trainings
// @Param id path string true "Training ID"
// @Success 204
// @Router /trainings/{id} [delete]
func (h *TrainingHandler) Delete(c *gin.Context) {
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
// @Summary Execute a training workflow action
// @Tags Trainings
// @Accept json
// @Produce json
// @Param id path string true "Training ID"
// @Param action path string true "Workflow action (schedule, start, complete, cancel)"
// @Param payload body dto.TransitionRequest false "Optional reason"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id}/actions/{action} [post]
func (h *TrainingHandler) Action(c *gin.Context) {
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
	training, err := h.service.Execute(c.Request.Context(), c.Param("id"), action, req.Reason, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, training, nil)
}

// Enroll godoc
// @Summary Enroll a participant
// @Tags Trainings
// @Accept json
// @Produce json
// @Param id path string true "Training ID"
// @Param payload body dto.EnrollRequest true "Participant payload"
// @Success 201 {object} response.Envelope
// @Router /trainings/{id}/enrollments [post]
func (h *TrainingHandler) Enroll(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid enrollment payload"))
		return
	}
	enrollment, err := h.service.Enroll(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, enrollment, nil)
}

// UpdateEnrollment godoc
// @Summary Record attendance and completion
// @Tags Trainings
// @Accept json
// @Param id path string true "Training ID"
// @Param enrollmentId path string true "Enrollment ID"
// @Param payload body dto.UpdateEnrollmentRequest true "Attendance payload"
// @Success 204
// @Router /trainings/{id}/enrollments/{enrollmentId} [put]
func (h *TrainingHandler) UpdateEnrollment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid attendance payload"))
		return
	}
	if err := h.service.UpdateEnrollment(c.Request.Context(), c.Param("id"), c.Param("enrollmentId"), req, actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func trainingFilterFromQuery(c *gin.Context) models.TrainingFilter {
	filter := models.TrainingFilter{
		Search:     strings.TrimSpace(c.Query("search")),
		Department: strings.TrimSpace(c.Query("department")),
		SortBy:     c.Query("sortBy"),
		SortOrder:  c.Query("sortOrder"),
	}
	if raw := c.Query("type"); raw != "" {
		trainingType := models.TrainingType(strings.ToUpper(raw))
		filter.Type = &trainingType
	}
	if raw := c.Query("status"); raw != "" {
		status := models.TrainingStatus(strings.ToUpper(raw))
		filter.Status = &status
	}
	filter.ScheduledFrom = parseDateQuery(c.Query("scheduledFrom"))
	filter.ScheduledTo = parseDateQuery(c.Query("scheduledTo"))
	filter.OnlyMine = parseBoolQuery(c.Query("mine"))
	filter.Page, filter.PageSize = parsePaginationQuery(c)
	return filter
}
