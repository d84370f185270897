package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/dto"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/lifecycle"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/repository"
	appErrors "github.com/risky-biz/harmoni-hse-360-sub005/pkg/errors"
)

type hazardStore interface {
	Create(ctx context.Context, hazard *models.Hazard) error
	GetByID(ctx context.Context, id string) (*models.Hazard, error)
	Update(ctx context.Context, hazard *models.Hazard) error
	Delete(ctx context.Context, id string, status models.HazardStatus) error
	Transition(ctx context.Context, params repository.HazardTransitionParams) error
	AddMitigation(ctx context.Context, action *models.MitigationAction) error
	CompleteMitigation(ctx context.Context, hazardID, actionID string, completedAt time.Time) error
	List(ctx context.Context, filter models.HazardFilter) ([]models.Hazard, int, error)
	Summary(ctx context.Context) (*models.HazardSummary, error)
}

type auditWriter interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// HazardService orchestrates hazard reporting and its workflow.
type HazardService struct {
	repo   hazardStore
	audit  auditWriter
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
}

// NewHazardService constructs the service. Cache may be nil.
func NewHazardService(repo hazardStore, audit auditWriter, cache *CacheService, logger *zap.Logger) *HazardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HazardService{repo: repo, audit: audit, cache: cache, logger: logger, now: time.Now}
}

// Report registers a new hazard in the initial status.
func (s *HazardService) Report(ctx context.Context, req dto.CreateHazardRequest, actor Actor) (*dto.HazardResponse, error) {
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "latitude and longitude must be provided together")
	}
	now := s.now().UTC()
	hazard := &models.Hazard{
		Title:                  req.Title,
		Description:            req.Description,
		Category:               req.Category,
		Status:                 lifecycle.HazardMachine.Initial(),
		Location:               req.Location,
		Latitude:               req.Latitude,
		Longitude:              req.Longitude,
		Department:             req.Department,
		ReporterID:             actor.ID,
		ReporterName:           actor.Name,
		IdentifiedDate:         now,
		ExpectedResolutionDate: req.ExpectedResolutionDate,
	}
	if hazard.Department == "" {
		hazard.Department = actor.Department
	}
	if err := s.repo.Create(ctx, hazard); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create hazard")
	}
	s.emitAudit(ctx, actor, models.EntityHazard, hazard.ID, models.AuditActionCreate, "", string(hazard.Status), nil)
	s.invalidateSummaries(ctx)
	resp := dto.NewHazardResponse(hazard, actor.ID, actor.Role, now)
	return &resp, nil
}

// Get returns one hazard with its assessments and mitigations. Visibility is
// role scoped; a denied read is indistinguishable from a missing record.
func (s *HazardService) Get(ctx context.Context, id string, actor Actor) (*dto.HazardResponse, error) {
	hazard, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanViewHazard(hazard, actor.ID, actor.Role, actor.Department) {
		return nil, appErrors.ErrNotFound
	}
	resp := dto.NewHazardResponse(hazard, actor.ID, actor.Role, s.now().UTC())
	return &resp, nil
}

// Update edits a hazard that has not yet been assessed.
func (s *HazardService) Update(ctx context.Context, id string, req dto.UpdateHazardRequest, actor Actor) (*dto.HazardResponse, error) {
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "latitude and longitude must be provided together")
	}
	hazard, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanViewHazard(hazard, actor.ID, actor.Role, actor.Department) {
		return nil, appErrors.ErrNotFound
	}
	caps := lifecycle.EvaluateHazard(hazard, actor.ID, actor.Role)
	if !caps.CanEdit {
		if hazard.Status != models.HazardStatusOpen {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "hazard can only be edited while open")
		}
		return nil, appErrors.ErrForbidden
	}
	hazard.Title = req.Title
	hazard.Description = req.Description
	hazard.Category = req.Category
	hazard.Location = req.Location
	hazard.Latitude = req.Latitude
	hazard.Longitude = req.Longitude
	hazard.Department = req.Department
	hazard.ExpectedResolutionDate = req.ExpectedResolutionDate
	if err := s.repo.Update(ctx, hazard); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update hazard")
	}
	s.emitAudit(ctx, actor, models.EntityHazard, hazard.ID, models.AuditActionUpdate, "", "", nil)
	resp := dto.NewHazardResponse(hazard, actor.ID, actor.Role, s.now().UTC())
	return &resp, nil
}

// Delete removes a hazard that is still open.
func (s *HazardService) Delete(ctx context.Context, id string, actor Actor) error {
	hazard, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !lifecycle.CanViewHazard(hazard, actor.ID, actor.Role, actor.Department) {
		return appErrors.ErrNotFound
	}
	caps := lifecycle.EvaluateHazard(hazard, actor.ID, actor.Role)
	if !caps.CanDelete {
		if hazard.Status != models.HazardStatusOpen {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "hazard can only be deleted while open")
		}
		return appErrors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id, models.HazardStatusOpen); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleStatus):
			return appErrors.ErrConcurrentModification
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.ErrNotFound
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete hazard")
		}
	}
	s.emitAudit(ctx, actor, models.EntityHazard, id, models.AuditActionDelete, string(hazard.Status), "", nil)
	s.invalidateSummaries(ctx)
	return nil
}

// Execute runs a workflow action against a hazard. The assessment payload is
// mandatory for assess and ignored for every other action.
func (s *HazardService) Execute(ctx context.Context, id string, action lifecycle.Action, req dto.TransitionRequest, actor Actor) (*dto.HazardResponse, error) {
	hazard, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanViewHazard(hazard, actor.ID, actor.Role, actor.Department) {
		return nil, appErrors.ErrNotFound
	}
	rule, err := lifecycle.Authorize(lifecycle.HazardMachine, hazard.Status, action, actor.Role, req.Reason)
	if err != nil {
		return nil, err
	}
	caps := lifecycle.EvaluateHazard(hazard, actor.ID, actor.Role)
	if !caps.Allows(action) {
		return nil, appErrors.ErrForbidden
	}

	var assessment *models.RiskAssessment
	if action == lifecycle.ActionAssess {
		if req.Assessment == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "assessment payload is required for assess")
		}
		assessment = &models.RiskAssessment{
			HazardID:   hazard.ID,
			RiskLevel:  req.Assessment.RiskLevel,
			Likelihood: req.Assessment.Likelihood,
			Severity:   req.Assessment.Severity,
			Notes:      req.Assessment.Notes,
			AssessorID: actor.ID,
			IsCurrent:  true,
			AssessedAt: s.now().UTC(),
		}
	}

	params := repository.HazardTransitionParams{
		ID:         hazard.ID,
		OldStatus:  hazard.Status,
		NewStatus:  rule.Target,
		Assessment: assessment,
		Audit:      s.auditEntry(actor, models.EntityHazard, hazard.ID, string(action), string(hazard.Status), string(rule.Target), req.Reason),
	}
	if err := s.repo.Transition(ctx, params); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleStatus):
			return nil, appErrors.ErrConcurrentModification
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.ErrNotFound
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to execute hazard transition")
		}
	}

	hazard.Status = rule.Target
	if assessment != nil {
		hazard.CurrentRiskLevel = &assessment.RiskLevel
		hazard.Assessments = append([]models.RiskAssessment{*assessment}, markSuperseded(hazard.Assessments)...)
	}
	s.invalidateSummaries(ctx)
	resp := dto.NewHazardResponse(hazard, actor.ID, actor.Role, s.now().UTC())
	return &resp, nil
}

// AddMitigation attaches a follow-up action to a hazard.
func (s *HazardService) AddMitigation(ctx context.Context, hazardID string, req dto.CreateMitigationRequest, actor Actor) (*models.MitigationAction, error) {
	hazard, err := s.load(ctx, hazardID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanViewHazard(hazard, actor.ID, actor.Role, actor.Department) {
		return nil, appErrors.ErrNotFound
	}
	if lifecycle.HazardMachine.IsTerminal(hazard.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot add mitigation to a closed hazard")
	}
	action := &models.MitigationAction{
		HazardID:    hazard.ID,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
	}
	if err := s.repo.AddMitigation(ctx, action); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add mitigation")
	}
	s.emitAudit(ctx, actor, models.EntityHazard, hazard.ID, models.AuditActionUpdate, "", "", nil)
	return action, nil
}

// CompleteMitigation marks a mitigation action done.
func (s *HazardService) CompleteMitigation(ctx context.Context, hazardID, actionID string, actor Actor) error {
	hazard, err := s.load(ctx, hazardID)
	if err != nil {
		return err
	}
	if !lifecycle.CanViewHazard(hazard, actor.ID, actor.Role, actor.Department) {
		return appErrors.ErrNotFound
	}
	if err := s.repo.CompleteMitigation(ctx, hazardID, actionID, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "mitigation action not found or already completed")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete mitigation")
	}
	s.invalidateSummaries(ctx)
	return nil
}

// List returns hazards visible to the actor. Supervisors and employees are
// scoped to their own department.
func (s *HazardService) List(ctx context.Context, filter models.HazardFilter, actor Actor) ([]dto.HazardResponse, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleAdmin, models.RoleSafetyManager, models.RoleSystem:
		// unrestricted
	case models.RoleSupervisor:
		filter.Department = actor.Department
	default:
		if actor.Department != "" {
			filter.Department = actor.Department
		} else {
			filter.OnlyMine = true
		}
	}
	filter.ActorID = actor.ID

	hazards, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list hazards")
	}
	now := s.now().UTC()
	responses := make([]dto.HazardResponse, 0, len(hazards))
	for i := range hazards {
		responses = append(responses, dto.NewHazardResponse(&hazards[i], actor.ID, actor.Role, now))
	}
	return responses, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Summary aggregates counts over all hazards regardless of list filters.
func (s *HazardService) Summary(ctx context.Context) (*models.HazardSummary, error) {
	summary, err := s.repo.Summary(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build hazard summary")
	}
	return summary, nil
}

func (s *HazardService) load(ctx context.Context, id string) (*models.Hazard, error) {
	hazard, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hazard")
	}
	return hazard, nil
}

func (s *HazardService) auditEntry(actor Actor, entity models.EntityType, entityID, action, oldStatus, newStatus, reason string) *models.AuditLog {
	entry := &models.AuditLog{
		EntityType: entity,
		EntityID:   entityID,
		Action:     action,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		ActorID:    actor.ID,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
	}
	if trimmed := optionalString(reason); trimmed != nil {
		entry.Reason = trimmed
	}
	return entry
}

// emitAudit records a standalone (non-transactional) audit event. Failures are
// logged, never surfaced; the primary operation already succeeded.
func (s *HazardService) emitAudit(ctx context.Context, actor Actor, entity models.EntityType, entityID, action, oldStatus, newStatus string, reason *string) {
	if s.audit == nil {
		return
	}
	entry := s.auditEntry(actor, entity, entityID, action, oldStatus, newStatus, "")
	entry.Reason = reason
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log",
			zap.String("entity_id", entityID),
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *HazardService) invalidateSummaries(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "hse:hazard:*"); err != nil {
		s.logger.Warn("hazard cache invalidation failed", zap.Error(err))
	}
}

func markSuperseded(assessments []models.RiskAssessment) []models.RiskAssessment {
	for i := range assessments {
		assessments[i].IsCurrent = false
	}
	return assessments
}
