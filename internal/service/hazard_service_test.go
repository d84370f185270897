package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/dto"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/lifecycle"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/repository"
	appErrors "github.com/risky-biz/harmoni-hse-360-sub005/pkg/errors"
)

type stubHazardStore struct {
	hazard        *models.Hazard
	getErr        error
	created       []*models.Hazard
	updateErr     error
	deleteErr     error
	deleted       []string
	transitionErr error
	transitions   []repository.HazardTransitionParams
	mitigations   []*models.MitigationAction
	listHazards   []models.Hazard
	listTotal     int
	lastFilter    models.HazardFilter
	summary       *models.HazardSummary
}

func (s *stubHazardStore) Create(ctx context.Context, hazard *models.Hazard) error {
	if hazard.ID == "" {
		hazard.ID = "hz-1"
	}
	s.created = append(s.created, hazard)
	return nil
}

func (s *stubHazardStore) GetByID(ctx context.Context, id string) (*models.Hazard, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.hazard == nil || s.hazard.ID != id {
		return nil, sql.ErrNoRows
	}
	copy := *s.hazard
	return &copy, nil
}

func (s *stubHazardStore) Update(ctx context.Context, hazard *models.Hazard) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	copy := *hazard
	s.hazard = &copy
	return nil
}

func (s *stubHazardStore) Delete(ctx context.Context, id string, status models.HazardStatus) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubHazardStore) Transition(ctx context.Context, params repository.HazardTransitionParams) error {
	if s.transitionErr != nil {
		return s.transitionErr
	}
	s.transitions = append(s.transitions, params)
	s.hazard.Status = params.NewStatus
	return nil
}

func (s *stubHazardStore) AddMitigation(ctx context.Context, action *models.MitigationAction) error {
	if action.ID == "" {
		action.ID = "mit-1"
	}
	s.mitigations = append(s.mitigations, action)
	return nil
}

func (s *stubHazardStore) CompleteMitigation(ctx context.Context, hazardID, actionID string, completedAt time.Time) error {
	return nil
}

func (s *stubHazardStore) List(ctx context.Context, filter models.HazardFilter) ([]models.Hazard, int, error) {
	s.lastFilter = filter
	return s.listHazards, s.listTotal, nil
}

func (s *stubHazardStore) Summary(ctx context.Context) (*models.HazardSummary, error) {
	return s.summary, nil
}

func openHazard() *models.Hazard {
	return &models.Hazard{
		ID:           "hz-1",
		Title:        "Exposed wiring",
		Description:  "Loose cable near the loading dock",
		Category:     models.HazardCategoryPhysical,
		Status:       models.HazardStatusOpen,
		Location:     "Warehouse B",
		Department:   "OPERATIONS",
		ReporterID:   "emp-1",
		ReporterName: "Reporter",
	}
}

func TestHazardServiceReportInvalidatesHazardCache(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewHazardService(&stubHazardStore{}, nil, cache, zap.NewNop())

	_, err := svc.Report(context.Background(), dto.CreateHazardRequest{
		Title:       "Exposed wiring",
		Description: "Loose cable near the loading dock",
		Category:    models.HazardCategoryPhysical,
		Location:    "Warehouse B",
	}, Actor{ID: "emp-1", Role: models.RoleEmployee, Department: "OPERATIONS"})
	require.NoError(t, err)
	require.Len(t, cacheRepo.patterns, 1)
	assert.Equal(t, "hse:hazard:*", cacheRepo.patterns[0])
}

func TestHazardServiceReport(t *testing.T) {
	repo := &stubHazardStore{}
	audit := &stubAuditWriter{}
	svc := NewHazardService(repo, audit, nil, zap.NewNop())

	actor := Actor{ID: "emp-1", Name: "Reporter", Role: models.RoleEmployee, Department: "OPERATIONS"}
	resp, err := svc.Report(context.Background(), dto.CreateHazardRequest{
		Title:       "Exposed wiring",
		Description: "Loose cable near the loading dock",
		Category:    models.HazardCategoryPhysical,
		Location:    "Warehouse B",
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, models.HazardStatusOpen, resp.Status)
	assert.Equal(t, "OPERATIONS", resp.Hazard.Department)
	require.Len(t, repo.created, 1)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionCreate, audit.entries[0].Action)
	assert.Equal(t, models.EntityHazard, audit.entries[0].EntityType)
	assert.Equal(t, string(models.HazardStatusOpen), audit.entries[0].NewStatus)
}

func TestHazardServiceReportPartialCoordinates(t *testing.T) {
	svc := NewHazardService(&stubHazardStore{}, nil, nil, zap.NewNop())
	lat := 1.5
	_, err := svc.Report(context.Background(), dto.CreateHazardRequest{
		Title:       "t",
		Description: "d",
		Category:    models.HazardCategoryPhysical,
		Location:    "l",
		Latitude:    &lat,
	}, Actor{ID: "emp-1", Role: models.RoleEmployee})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestHazardServiceExecuteAssess(t *testing.T) {
	repo := &stubHazardStore{hazard: openHazard()}
	svc := NewHazardService(repo, nil, nil, zap.NewNop())

	actor := Actor{ID: "mgr-1", Role: models.RoleSafetyManager}
	resp, err := svc.Execute(context.Background(), "hz-1", lifecycle.ActionAssess, dto.TransitionRequest{
		Assessment: &dto.RiskAssessmentRequest{RiskLevel: models.RiskLevelHigh, Likelihood: 4, Severity: 5},
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, models.HazardStatusAssessed, resp.Status)
	require.NotNil(t, resp.CurrentRiskLevel)
	assert.Equal(t, models.RiskLevelHigh, *resp.CurrentRiskLevel)

	require.Len(t, repo.transitions, 1)
	params := repo.transitions[0]
	assert.Equal(t, models.HazardStatusOpen, params.OldStatus)
	assert.Equal(t, models.HazardStatusAssessed, params.NewStatus)
	require.NotNil(t, params.Assessment)
	assert.Equal(t, "mgr-1", params.Assessment.AssessorID)
	require.NotNil(t, params.Audit)
	assert.Equal(t, string(lifecycle.ActionAssess), params.Audit.Action)
	assert.Equal(t, string(models.HazardStatusOpen), params.Audit.OldStatus)
	assert.Equal(t, string(models.HazardStatusAssessed), params.Audit.NewStatus)
}

func TestHazardServiceExecuteAssessRequiresPayload(t *testing.T) {
	repo := &stubHazardStore{hazard: openHazard()}
	svc := NewHazardService(repo, nil, nil, zap.NewNop())

	_, err := svc.Execute(context.Background(), "hz-1", lifecycle.ActionAssess, dto.TransitionRequest{}, Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.transitions)
}

func TestHazardServiceExecuteIllegalTransition(t *testing.T) {
	hazard := openHazard()
	hazard.Status = models.HazardStatusClosed
	repo := &stubHazardStore{hazard: hazard}
	svc := NewHazardService(repo, nil, nil, zap.NewNop())

	_, err := svc.Execute(context.Background(), "hz-1", lifecycle.ActionAssess, dto.TransitionRequest{
		Assessment: &dto.RiskAssessmentRequest{RiskLevel: models.RiskLevelLow, Likelihood: 1, Severity: 1},
	}, Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestHazardServiceExecuteRoleForbidden(t *testing.T) {
	repo := &stubHazardStore{hazard: openHazard()}
	svc := NewHazardService(repo, nil, nil, zap.NewNop())

	// The reporter can see their hazard but cannot assess it.
	_, err := svc.Execute(context.Background(), "hz-1", lifecycle.ActionAssess, dto.TransitionRequest{
		Assessment: &dto.RiskAssessmentRequest{RiskLevel: models.RiskLevelLow, Likelihood: 1, Severity: 1},
	}, Actor{ID: "emp-1", Role: models.RoleEmployee, Department: "OPERATIONS"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestHazardServiceExecuteStaleStatus(t *testing.T) {
	repo := &stubHazardStore{hazard: openHazard(), transitionErr: repository.ErrStaleStatus}
	svc := NewHazardService(repo, nil, nil, zap.NewNop())

	_, err := svc.Execute(context.Background(), "hz-1", lifecycle.ActionAssess, dto.TransitionRequest{
		Assessment: &dto.RiskAssessmentRequest{RiskLevel: models.RiskLevelLow, Likelihood: 1, Severity: 1},
	}, Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConcurrentModification.Code, appErrors.FromError(err).Code)
}

func TestHazardServiceUpdateAfterAssessment(t *testing.T) {
	hazard := openHazard()
	hazard.Status = models.HazardStatusAssessed
	repo := &stubHazardStore{hazard: hazard}
	svc := NewHazardService(repo, nil, nil, zap.NewNop())

	_, err := svc.Update(context.Background(), "hz-1", dto.UpdateHazardRequest{
		Title:       "New title",
		Description: "d",
		Category:    models.HazardCategoryPhysical,
		Location:    "l",
	}, Actor{ID: "mgr-1", Role: models.RoleAdmin})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestHazardServiceGetHiddenAcrossDepartments(t *testing.T) {
	repo := &stubHazardStore{hazard: openHazard()}
	svc := NewHazardService(repo, nil, nil, zap.NewNop())

	_, err := svc.Get(context.Background(), "hz-1", Actor{ID: "emp-2", Role: models.RoleEmployee, Department: "FINANCE"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestHazardServiceListScopesSupervisor(t *testing.T) {
	repo := &stubHazardStore{listHazards: []models.Hazard{*openHazard()}, listTotal: 1}
	svc := NewHazardService(repo, nil, nil, zap.NewNop())

	_, pagination, err := svc.List(context.Background(), models.HazardFilter{Page: 1, PageSize: 20}, Actor{ID: "sup-1", Role: models.RoleSupervisor, Department: "OPERATIONS"})
	require.NoError(t, err)
	assert.Equal(t, "OPERATIONS", repo.lastFilter.Department)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestHazardServiceAddMitigationToClosedHazard(t *testing.T) {
	hazard := openHazard()
	hazard.Status = models.HazardStatusClosed
	repo := &stubHazardStore{hazard: hazard}
	svc := NewHazardService(repo, nil, nil, zap.NewNop())

	_, err := svc.AddMitigation(context.Background(), "hz-1", dto.CreateMitigationRequest{Description: "Fence it off"}, Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.mitigations)
}
