package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/dto"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/lifecycle"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/repository"
	appErrors "github.com/risky-biz/harmoni-hse-360-sub005/pkg/errors"
)

type trainingStore interface {
	Create(ctx context.Context, training *models.Training) error
	GetByID(ctx context.Context, id string) (*models.Training, error)
	Update(ctx context.Context, training *models.Training) error
	Delete(ctx context.Context, id string, status models.TrainingStatus) error
	Transition(ctx context.Context, params repository.TrainingTransitionParams) error
	Enroll(ctx context.Context, enrollment *models.Enrollment) error
	CountEnrollments(ctx context.Context, trainingID string) (int, error)
	UpdateEnrollment(ctx context.Context, trainingID, enrollmentID string, attended, completed bool, completedAt *time.Time) error
	List(ctx context.Context, filter models.TrainingFilter) ([]models.Training, int, error)
	Summary(ctx context.Context) (*models.TrainingSummary, error)
}

// TrainingService orchestrates training sessions and enrollments.
type TrainingService struct {
	repo   trainingStore
	audit  auditWriter
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
}

// NewTrainingService constructs the service. Cache may be nil.
func NewTrainingService(repo trainingStore, audit auditWriter, cache *CacheService, logger *zap.Logger) *TrainingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainingService{repo: repo, audit: audit, cache: cache, logger: logger, now: time.Now}
}

// Create drafts a new training session.
func (s *TrainingService) Create(ctx context.Context, req dto.CreateTrainingRequest, actor Actor) (*dto.TrainingResponse, error) {
	if err := validateTrainingDates(req.ScheduledStartDate, req.ScheduledEndDate); err != nil {
		return nil, err
	}
	training := &models.Training{
		Title:              req.Title,
		Description:        req.Description,
		Type:               req.Type,
		Status:             lifecycle.TrainingMachine.Initial(),
		InstructorName:     req.InstructorName,
		Location:           req.Location,
		Department:         req.Department,
		ScheduledStartDate: req.ScheduledStartDate,
		ScheduledEndDate:   req.ScheduledEndDate,
		MaxParticipants:    req.MaxParticipants,
		CreatedBy:          actor.ID,
	}
	if training.Department == "" {
		training.Department = actor.Department
	}
	if err := s.repo.Create(ctx, training); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create training")
	}
	s.emitAudit(ctx, actor, training.ID, models.AuditActionCreate, "", string(training.Status), nil)
	s.invalidateSummaries(ctx)
	resp := dto.NewTrainingResponse(training, actor.ID, actor.Role)
	return &resp, nil
}

// Get returns one training session with its enrollments.
func (s *TrainingService) Get(ctx context.Context, id string, actor Actor) (*dto.TrainingResponse, error) {
	training, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := dto.NewTrainingResponse(training, actor.ID, actor.Role)
	return &resp, nil
}

// Update edits a session still in draft.
func (s *TrainingService) Update(ctx context.Context, id string, req dto.UpdateTrainingRequest, actor Actor) (*dto.TrainingResponse, error) {
	if err := validateTrainingDates(req.ScheduledStartDate, req.ScheduledEndDate); err != nil {
		return nil, err
	}
	training, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	caps := lifecycle.EvaluateTraining(training, actor.ID, actor.Role)
	if !caps.CanEdit {
		if training.Status != models.TrainingStatusDraft {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "training can only be edited while in draft")
		}
		return nil, appErrors.ErrForbidden
	}
	training.Title = req.Title
	training.Description = req.Description
	training.Type = req.Type
	training.InstructorName = req.InstructorName
	training.Location = req.Location
	training.Department = req.Department
	training.ScheduledStartDate = req.ScheduledStartDate
	training.ScheduledEndDate = req.ScheduledEndDate
	training.MaxParticipants = req.MaxParticipants
	if err := s.repo.Update(ctx, training); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update training")
	}
	s.emitAudit(ctx, actor, training.ID, models.AuditActionUpdate, "", "", nil)
	resp := dto.NewTrainingResponse(training, actor.ID, actor.Role)
	return &resp, nil
}

// Delete removes a draft session.
func (s *TrainingService) Delete(ctx context.Context, id string, actor Actor) error {
	training, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	caps := lifecycle.EvaluateTraining(training, actor.ID, actor.Role)
	if !caps.CanDelete {
		if training.Status != models.TrainingStatusDraft {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "only draft trainings can be deleted")
		}
		return appErrors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id, models.TrainingStatusDraft); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleStatus):
			return appErrors.ErrConcurrentModification
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.ErrNotFound
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete training")
		}
	}
	s.emitAudit(ctx, actor, id, models.AuditActionDelete, string(training.Status), "", nil)
	s.invalidateSummaries(ctx)
	return nil
}

// Execute runs a workflow action against a training session.
func (s *TrainingService) Execute(ctx context.Context, id string, action lifecycle.Action, reason string, actor Actor) (*dto.TrainingResponse, error) {
	training, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	rule, err := lifecycle.Authorize(lifecycle.TrainingMachine, training.Status, action, actor.Role, reason)
	if err != nil {
		return nil, err
	}
	caps := lifecycle.EvaluateTraining(training, actor.ID, actor.Role)
	if !caps.Allows(action) {
		return nil, appErrors.ErrForbidden
	}
	if err := checkRequiredTrainingFields(training, rule.RequiredFields); err != nil {
		return nil, err
	}

	params := repository.TrainingTransitionParams{
		ID:        training.ID,
		OldStatus: training.Status,
		NewStatus: rule.Target,
		Audit:     s.auditEntry(actor, training.ID, string(action), string(training.Status), string(rule.Target), reason),
	}
	if err := s.repo.Transition(ctx, params); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleStatus):
			return nil, appErrors.ErrConcurrentModification
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.ErrNotFound
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to execute training transition")
		}
	}

	training.Status = rule.Target
	s.invalidateSummaries(ctx)
	resp := dto.NewTrainingResponse(training, actor.ID, actor.Role)
	return &resp, nil
}

// Enroll registers a participant while the session still accepts them.
// Capacity is enforced when MaxParticipants is set.
func (s *TrainingService) Enroll(ctx context.Context, trainingID string, req dto.EnrollRequest, actor Actor) (*models.Enrollment, error) {
	training, err := s.load(ctx, trainingID)
	if err != nil {
		return nil, err
	}
	caps := lifecycle.EvaluateTraining(training, actor.ID, actor.Role)
	if !caps.CanEnroll {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("training in status %s does not accept enrollments", training.Status))
	}
	for _, existing := range training.Enrollments {
		if existing.ParticipantID == req.ParticipantID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "participant already enrolled")
		}
	}
	if training.MaxParticipants > 0 {
		count, err := s.repo.CountEnrollments(ctx, trainingID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
		}
		if count >= training.MaxParticipants {
			return nil, appErrors.Clone(appErrors.ErrConflict, "training session is full")
		}
	}
	enrollment := &models.Enrollment{
		TrainingID:      trainingID,
		ParticipantID:   req.ParticipantID,
		ParticipantName: req.ParticipantName,
	}
	if err := s.repo.Enroll(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll participant")
	}
	return enrollment, nil
}

// UpdateEnrollment records attendance and completion for a participant.
// Completion stamps the time once; clearing it clears the stamp.
func (s *TrainingService) UpdateEnrollment(ctx context.Context, trainingID, enrollmentID string, req dto.UpdateEnrollmentRequest, actor Actor) error {
	training, err := s.load(ctx, trainingID)
	if err != nil {
		return err
	}
	if training.Status != models.TrainingStatusInProgress && training.Status != models.TrainingStatusCompleted {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "attendance can only be recorded once the training has started")
	}
	var completedAt *time.Time
	if req.Completed {
		now := s.now().UTC()
		completedAt = &now
	}
	if err := s.repo.UpdateEnrollment(ctx, trainingID, enrollmentID, req.Attended, req.Completed, completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	return nil
}

// List returns training sessions matching the filter.
func (s *TrainingService) List(ctx context.Context, filter models.TrainingFilter, actor Actor) ([]dto.TrainingResponse, *models.Pagination, error) {
	filter.ActorID = actor.ID

	trainings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trainings")
	}
	responses := make([]dto.TrainingResponse, 0, len(trainings))
	for i := range trainings {
		responses = append(responses, dto.NewTrainingResponse(&trainings[i], actor.ID, actor.Role))
	}
	return responses, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Summary aggregates counts over all training sessions.
func (s *TrainingService) Summary(ctx context.Context) (*models.TrainingSummary, error) {
	summary, err := s.repo.Summary(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build training summary")
	}
	return summary, nil
}

func (s *TrainingService) load(ctx context.Context, id string) (*models.Training, error) {
	training, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training")
	}
	return training, nil
}

func (s *TrainingService) auditEntry(actor Actor, trainingID, action, oldStatus, newStatus, reason string) *models.AuditLog {
	entry := &models.AuditLog{
		EntityType: models.EntityTraining,
		EntityID:   trainingID,
		Action:     action,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		ActorID:    actor.ID,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
	}
	entry.Reason = optionalString(reason)
	return entry
}

func (s *TrainingService) emitAudit(ctx context.Context, actor Actor, trainingID, action, oldStatus, newStatus string, reason *string) {
	if s.audit == nil {
		return
	}
	entry := s.auditEntry(actor, trainingID, action, oldStatus, newStatus, "")
	entry.Reason = reason
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log",
			zap.String("entity_id", trainingID),
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *TrainingService) invalidateSummaries(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "hse:training:*"); err != nil {
		s.logger.Warn("training cache invalidation failed", zap.Error(err))
	}
}

func validateTrainingDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return appErrors.Clone(appErrors.ErrValidation, "scheduledEndDate must not be before scheduledStartDate")
	}
	return nil
}

// checkRequiredTrainingFields maps rule field names onto training values.
func checkRequiredTrainingFields(training *models.Training, fields []string) error {
	missing := make([]string, 0, len(fields))
	for _, field := range fields {
		populated := false
		switch field {
		case lifecycle.FieldInstructorName:
			populated = strings.TrimSpace(training.InstructorName) != ""
		case lifecycle.FieldScheduledStartDate:
			populated = training.ScheduledStartDate != nil
		}
		if !populated {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("required fields missing: %s", strings.Join(missing, ", ")))
	}
	return nil
}
