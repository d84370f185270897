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

type licenseStore interface {
	Create(ctx context.Context, license *models.License) error
	GetByID(ctx context.Context, id string) (*models.License, error)
	Update(ctx context.Context, license *models.License) error
	Delete(ctx context.Context, id string, status models.LicenseStatus) error
	Transition(ctx context.Context, params repository.LicenseTransitionParams) error
	AddCondition(ctx context.Context, condition *models.LicenseCondition) error
	CompleteCondition(ctx context.Context, licenseID, conditionID string, completedAt time.Time) error
	ListExpirable(ctx context.Context, asOf time.Time) ([]models.License, error)
	List(ctx context.Context, filter models.LicenseFilter) ([]models.License, int, error)
	Summary(ctx context.Context) (*models.LicenseSummary, error)
}

// defaultRenewalPeriodDays applies when a license never declared its own.
const defaultRenewalPeriodDays = 365

// LicenseService orchestrates the license register and its workflow.
type LicenseService struct {
	repo   licenseStore
	audit  auditWriter
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
}

// NewLicenseService constructs the service. Cache may be nil.
func NewLicenseService(repo licenseStore, audit auditWriter, cache *CacheService, logger *zap.Logger) *LicenseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LicenseService{repo: repo, audit: audit, cache: cache, logger: logger, now: time.Now}
}

// Register creates a new license draft. Identity fields are fixed here and
// can never change afterwards.
func (s *LicenseService) Register(ctx context.Context, req dto.CreateLicenseRequest, actor Actor) (*dto.LicenseResponse, error) {
	if req.IssuedDate != nil && req.ExpiryDate != nil && !req.ExpiryDate.After(*req.IssuedDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expiryDate must be after issuedDate")
	}
	license := &models.License{
		Title:             req.Title,
		Description:       req.Description,
		Type:              req.Type,
		Status:            lifecycle.LicenseMachine.Initial(),
		Priority:          req.Priority,
		LicenseNumber:     req.LicenseNumber,
		IssuingAuthority:  req.IssuingAuthority,
		HolderName:        req.HolderName,
		Department:        req.Department,
		IssuedDate:        req.IssuedDate,
		ExpiryDate:        req.ExpiryDate,
		RenewalPeriodDays: req.RenewalPeriodDays,
		CreatedBy:         actor.ID,
	}
	if license.Department == "" {
		license.Department = actor.Department
	}
	if err := s.repo.Create(ctx, license); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create license")
	}
	s.emitAudit(ctx, actor, license.ID, models.AuditActionCreate, "", string(license.Status), nil)
	s.invalidateSummaries(ctx)
	resp := dto.NewLicenseResponse(license, actor.ID, actor.Role, s.now().UTC())
	return &resp, nil
}

// Get returns one license with its conditions.
func (s *LicenseService) Get(ctx context.Context, id string, actor Actor) (*dto.LicenseResponse, error) {
	license, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := dto.NewLicenseResponse(license, actor.ID, actor.Role, s.now().UTC())
	return &resp, nil
}

// Update edits the mutable fields of a license. Requests that try to change
// an identity field are rejected outright rather than silently ignored.
func (s *LicenseService) Update(ctx context.Context, id string, req dto.UpdateLicenseRequest, actor Actor) (*dto.LicenseResponse, error) {
	license, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rejectImmutableChanges(license, req); err != nil {
		return nil, err
	}
	caps := lifecycle.EvaluateLicense(license, actor.ID, actor.Role)
	if !caps.CanEdit {
		if license.Status != models.LicenseStatusDraft &&
			license.Status != models.LicenseStatusSubmitted &&
			license.Status != models.LicenseStatusApproved {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("license in status %s can no longer be edited", license.Status))
		}
		return nil, appErrors.ErrForbidden
	}
	license.Title = req.Title
	license.Description = req.Description
	license.Priority = req.Priority
	license.Department = req.Department
	license.RenewalPeriodDays = req.RenewalPeriodDays
	if err := s.repo.Update(ctx, license); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update license")
	}
	s.emitAudit(ctx, actor, license.ID, models.AuditActionUpdate, "", "", nil)
	resp := dto.NewLicenseResponse(license, actor.ID, actor.Role, s.now().UTC())
	return &resp, nil
}

// Delete removes a license that is still a draft.
func (s *LicenseService) Delete(ctx context.Context, id string, actor Actor) error {
	license, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	caps := lifecycle.EvaluateLicense(license, actor.ID, actor.Role)
	if !caps.CanDelete {
		if license.Status != models.LicenseStatusDraft {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "only draft licenses can be deleted")
		}
		return appErrors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id, models.LicenseStatusDraft); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleStatus):
			return appErrors.ErrConcurrentModification
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.ErrNotFound
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete license")
		}
	}
	s.emitAudit(ctx, actor, id, models.AuditActionDelete, string(license.Status), "", nil)
	s.invalidateSummaries(ctx)
	return nil
}

// Execute runs a workflow action against a license. Renewal recomputes the
// expiry date from the renewal period in the same transaction.
func (s *LicenseService) Execute(ctx context.Context, id string, action lifecycle.Action, reason string, actor Actor) (*dto.LicenseResponse, error) {
	license, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	rule, err := lifecycle.Authorize(lifecycle.LicenseMachine, license.Status, action, actor.Role, reason)
	if err != nil {
		return nil, err
	}
	caps := lifecycle.EvaluateLicense(license, actor.ID, actor.Role)
	if !caps.Allows(action) {
		return nil, appErrors.ErrForbidden
	}
	if err := checkRequiredLicenseFields(license, rule.RequiredFields); err != nil {
		return nil, err
	}

	var newExpiry *time.Time
	if action == lifecycle.ActionRenew {
		period := license.RenewalPeriodDays
		if period <= 0 {
			period = defaultRenewalPeriodDays
		}
		expiry := s.now().UTC().AddDate(0, 0, period)
		newExpiry = &expiry
	}

	params := repository.LicenseTransitionParams{
		ID:            license.ID,
		OldStatus:     license.Status,
		NewStatus:     rule.Target,
		NewExpiryDate: newExpiry,
		Audit:         s.auditEntry(actor, license.ID, string(action), string(license.Status), string(rule.Target), reason),
	}
	if err := s.repo.Transition(ctx, params); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleStatus):
			return nil, appErrors.ErrConcurrentModification
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.ErrNotFound
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to execute license transition")
		}
	}

	license.Status = rule.Target
	if newExpiry != nil {
		license.ExpiryDate = newExpiry
	}
	s.invalidateSummaries(ctx)
	resp := dto.NewLicenseResponse(license, actor.ID, actor.Role, s.now().UTC())
	return &resp, nil
}

// AddCondition attaches a compliance obligation to a license.
func (s *LicenseService) AddCondition(ctx context.Context, licenseID string, req dto.CreateLicenseConditionRequest, actor Actor) (*models.LicenseCondition, error) {
	license, err := s.load(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	if lifecycle.LicenseMachine.IsTerminal(license.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot add conditions to a terminal license")
	}
	condition := &models.LicenseCondition{
		LicenseID:   license.ID,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if err := s.repo.AddCondition(ctx, condition); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add license condition")
	}
	s.emitAudit(ctx, actor, license.ID, models.AuditActionUpdate, "", "", nil)
	return condition, nil
}

// CompleteCondition marks a compliance condition done.
func (s *LicenseService) CompleteCondition(ctx context.Context, licenseID, conditionID string, actor Actor) error {
	if _, err := s.load(ctx, licenseID); err != nil {
		return err
	}
	if err := s.repo.CompleteCondition(ctx, licenseID, conditionID, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "license condition not found or already completed")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete license condition")
	}
	return nil
}

// ExpireDue transitions every license past its expiry date to EXPIRED on
// behalf of the system actor. Returns the number expired; individual failures
// are logged and skipped so one bad row never stalls the sweep.
func (s *LicenseService) ExpireDue(ctx context.Context, asOf time.Time) (int, error) {
	due, err := s.repo.ListExpirable(ctx, asOf.UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expirable licenses")
	}
	actor := SystemActor()
	expired := 0
	for i := range due {
		license := &due[i]
		rule, err := lifecycle.Authorize(lifecycle.LicenseMachine, license.Status, lifecycle.ActionExpire, actor.Role, "")
		if err != nil {
			s.logger.Warn("skipping license not eligible for expiry",
				zap.String("license_id", license.ID),
				zap.String("status", string(license.Status)))
			continue
		}
		params := repository.LicenseTransitionParams{
			ID:        license.ID,
			OldStatus: license.Status,
			NewStatus: rule.Target,
			Audit:     s.auditEntry(actor, license.ID, string(lifecycle.ActionExpire), string(license.Status), string(rule.Target), "expiry date passed"),
		}
		if err := s.repo.Transition(ctx, params); err != nil {
			if errors.Is(err, repository.ErrStaleStatus) || errors.Is(err, sql.ErrNoRows) {
				continue
			}
			s.logger.Error("license expiry transition failed",
				zap.String("license_id", license.ID),
				zap.Error(err))
			continue
		}
		expired++
	}
	if expired > 0 {
		s.invalidateSummaries(ctx)
	}
	return expired, nil
}

// List returns licenses matching the filter. Employees are scoped to their
// own records.
func (s *LicenseService) List(ctx context.Context, filter models.LicenseFilter, actor Actor) ([]dto.LicenseResponse, *models.Pagination, error) {
	if actor.Role == models.RoleEmployee {
		filter.OnlyMine = true
	}
	filter.ActorID = actor.ID

	licenses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list licenses")
	}
	now := s.now().UTC()
	responses := make([]dto.LicenseResponse, 0, len(licenses))
	for i := range licenses {
		responses = append(responses, dto.NewLicenseResponse(&licenses[i], actor.ID, actor.Role, now))
	}
	return responses, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Summary aggregates counts over all licenses regardless of list filters.
func (s *LicenseService) Summary(ctx context.Context) (*models.LicenseSummary, error) {
	summary, err := s.repo.Summary(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build license summary")
	}
	return summary, nil
}

func (s *LicenseService) load(ctx context.Context, id string) (*models.License, error) {
	license, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load license")
	}
	return license, nil
}

func (s *LicenseService) auditEntry(actor Actor, licenseID, action, oldStatus, newStatus, reason string) *models.AuditLog {
	entry := &models.AuditLog{
		EntityType: models.EntityLicense,
		EntityID:   licenseID,
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

func (s *LicenseService) emitAudit(ctx context.Context, actor Actor, licenseID, action, oldStatus, newStatus string, reason *string) {
	if s.audit == nil {
		return
	}
	entry := s.auditEntry(actor, licenseID, action, oldStatus, newStatus, "")
	entry.Reason = reason
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log",
			zap.String("entity_id", licenseID),
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *LicenseService) invalidateSummaries(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "hse:license:*"); err != nil {
		s.logger.Warn("license cache invalidation failed", zap.Error(err))
	}
}

// rejectImmutableChanges fails the update when the request carries a value
// for an identity field that differs from the stored one.
func rejectImmutableChanges(license *models.License, req dto.UpdateLicenseRequest) error {
	violations := make([]string, 0, 3)
	if req.LicenseNumber != "" && req.LicenseNumber != license.LicenseNumber {
		violations = append(violations, "licenseNumber")
	}
	if req.IssuingAuthority != "" && req.IssuingAuthority != license.IssuingAuthority {
		violations = append(violations, "issuingAuthority")
	}
	if req.HolderName != "" && req.HolderName != license.HolderName {
		violations = append(violations, "holderName")
	}
	if len(violations) > 0 {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("immutable fields cannot be modified: %s", strings.Join(violations, ", ")))
	}
	return nil
}

// checkRequiredLicenseFields maps rule field names onto license values.
func checkRequiredLicenseFields(license *models.License, fields []string) error {
	missing := make([]string, 0, len(fields))
	for _, field := range fields {
		populated := false
		switch field {
		case lifecycle.FieldLicenseNumber:
			populated = strings.TrimSpace(license.LicenseNumber) != ""
		case lifecycle.FieldHolderName:
			populated = strings.TrimSpace(license.HolderName) != ""
		case lifecycle.FieldIssuingAuthority:
			populated = strings.TrimSpace(license.IssuingAuthority) != ""
		case lifecycle.FieldIssuedDate:
			populated = license.IssuedDate != nil
		case lifecycle.FieldExpiryDate:
			populated = license.ExpiryDate != nil
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
