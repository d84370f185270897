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

type stubLicenseStore struct {
	licenses       map[string]*models.License
	expirable      []models.License
	transitionErrs map[string]error
	transitions    []repository.LicenseTransitionParams
	conditions     []*models.LicenseCondition
	listLicenses   []models.License
	listTotal      int
	lastFilter     models.LicenseFilter
	summary        *models.LicenseSummary
}

func (s *stubLicenseStore) Create(ctx context.Context, license *models.License) error {
	if license.ID == "" {
		license.ID = "lic-1"
	}
	if s.licenses == nil {
		s.licenses = make(map[string]*models.License)
	}
	copy := *license
	s.licenses[license.ID] = &copy
	return nil
}

func (s *stubLicenseStore) GetByID(ctx context.Context, id string) (*models.License, error) {
	license, ok := s.licenses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *license
	return &copy, nil
}

func (s *stubLicenseStore) Update(ctx context.Context, license *models.License) error {
	copy := *license
	s.licenses[license.ID] = &copy
	return nil
}

func (s *stubLicenseStore) Delete(ctx context.Context, id string, status models.LicenseStatus) error {
	delete(s.licenses, id)
	return nil
}

func (s *stubLicenseStore) Transition(ctx context.Context, params repository.LicenseTransitionParams) error {
	if err := s.transitionErrs[params.ID]; err != nil {
		return err
	}
	s.transitions = append(s.transitions, params)
	if license, ok := s.licenses[params.ID]; ok {
		license.Status = params.NewStatus
		if params.NewExpiryDate != nil {
			license.ExpiryDate = params.NewExpiryDate
		}
	}
	return nil
}

func (s *stubLicenseStore) AddCondition(ctx context.Context, condition *models.LicenseCondition) error {
	if condition.ID == "" {
		condition.ID = "cond-1"
	}
	s.conditions = append(s.conditions, condition)
	return nil
}

func (s *stubLicenseStore) CompleteCondition(ctx context.Context, licenseID, conditionID string, completedAt time.Time) error {
	return nil
}

func (s *stubLicenseStore) ListExpirable(ctx context.Context, asOf time.Time) ([]models.License, error) {
	return s.expirable, nil
}

func (s *stubLicenseStore) List(ctx context.Context, filter models.LicenseFilter) ([]models.License, int, error) {
	s.lastFilter = filter
	return s.listLicenses, s.listTotal, nil
}

func (s *stubLicenseStore) Summary(ctx context.Context) (*models.LicenseSummary, error) {
	return s.summary, nil
}

func activeLicense() *models.License {
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expiry := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.License{
		ID:               "lic-1",
		Title:            "Waste water discharge permit",
		Type:             models.LicenseTypeEnvironmental,
		Status:           models.LicenseStatusActive,
		Priority:         models.PriorityHigh,
		LicenseNumber:    "ENV-001",
		IssuingAuthority: "Environmental Agency",
		HolderName:       "Plant West",
		Department:       "OPERATIONS",
		IssuedDate:       &issued,
		ExpiryDate:       &expiry,
		CreatedBy:        "mgr-1",
	}
}

func licenseStoreWith(license *models.License) *stubLicenseStore {
	return &stubLicenseStore{licenses: map[string]*models.License{license.ID: license}}
}

func TestLicenseServiceUpdateRejectsImmutableFields(t *testing.T) {
	license := activeLicense()
	license.Status = models.LicenseStatusDraft
	repo := licenseStoreWith(license)
	svc := NewLicenseService(repo, nil, nil, zap.NewNop())

	_, err := svc.Update(context.Background(), "lic-1", dto.UpdateLicenseRequest{
		Title:         "Renamed permit",
		Priority:      models.PriorityHigh,
		LicenseNumber: "ENV-999",
	}, Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "licenseNumber")
}

func TestLicenseServiceRenewComputesExpiry(t *testing.T) {
	license := activeLicense()
	license.RenewalPeriodDays = 90
	repo := licenseStoreWith(license)
	svc := NewLicenseService(repo, nil, nil, zap.NewNop())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	resp, err := svc.Execute(context.Background(), "lic-1", lifecycle.ActionRenew, "", Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.NoError(t, err)
	require.Len(t, repo.transitions, 1)
	params := repo.transitions[0]
	require.NotNil(t, params.NewExpiryDate)
	assert.Equal(t, fixed.AddDate(0, 0, 90), *params.NewExpiryDate)
	assert.Equal(t, models.LicenseStatusActive, params.NewStatus)
	require.NotNil(t, resp.ExpiryDate)
	assert.Equal(t, fixed.AddDate(0, 0, 90), *resp.ExpiryDate)
}

func TestLicenseServiceRenewDefaultsPeriod(t *testing.T) {
	license := activeLicense()
	license.RenewalPeriodDays = 0
	repo := licenseStoreWith(license)
	svc := NewLicenseService(repo, nil, nil, zap.NewNop())
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	_, err := svc.Execute(context.Background(), "lic-1", lifecycle.ActionRenew, "", Actor{ID: "mgr-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, repo.transitions, 1)
	assert.Equal(t, fixed.AddDate(0, 0, defaultRenewalPeriodDays), *repo.transitions[0].NewExpiryDate)
}

func TestLicenseServiceSubmitRequiresCoreFields(t *testing.T) {
	license := activeLicense()
	license.Status = models.LicenseStatusDraft
	license.ExpiryDate = nil
	repo := licenseStoreWith(license)
	svc := NewLicenseService(repo, nil, nil, zap.NewNop())

	_, err := svc.Execute(context.Background(), "lic-1", lifecycle.ActionSubmit, "", Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.transitions)
}

func TestLicenseServiceSuspendRequiresReason(t *testing.T) {
	repo := licenseStoreWith(activeLicense())
	svc := NewLicenseService(repo, nil, nil, zap.NewNop())

	_, err := svc.Execute(context.Background(), "lic-1", lifecycle.ActionSuspend, "", Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	resp, err := svc.Execute(context.Background(), "lic-1", lifecycle.ActionSuspend, "pending safety audit", Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusSuspended, resp.Status)
	require.Len(t, repo.transitions, 1)
	require.NotNil(t, repo.transitions[0].Audit.Reason)
	assert.Equal(t, "pending safety audit", *repo.transitions[0].Audit.Reason)
}

func TestLicenseServiceDeleteNonDraft(t *testing.T) {
	repo := licenseStoreWith(activeLicense())
	svc := NewLicenseService(repo, nil, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "lic-1", Actor{ID: "mgr-1", Role: models.RoleAdmin})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Contains(t, repo.licenses, "lic-1")
}

func TestLicenseServiceExpireDueSkipsStale(t *testing.T) {
	first := activeLicense()
	second := activeLicense()
	second.ID = "lic-2"
	second.Status = models.LicenseStatusSuspended
	repo := licenseStoreWith(first)
	repo.licenses[second.ID] = second
	repo.expirable = []models.License{*first, *second}
	repo.transitionErrs = map[string]error{first.ID: repository.ErrStaleStatus}
	svc := NewLicenseService(repo, nil, nil, zap.NewNop())

	expired, err := svc.ExpireDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	require.Len(t, repo.transitions, 1)
	params := repo.transitions[0]
	assert.Equal(t, "lic-2", params.ID)
	assert.Equal(t, models.LicenseStatusExpired, params.NewStatus)
	require.NotNil(t, params.Audit)
	assert.Equal(t, models.SystemActorID, params.Audit.ActorID)
}

func TestLicenseServiceListScopesEmployee(t *testing.T) {
	repo := &stubLicenseStore{listLicenses: []models.License{*activeLicense()}, listTotal: 1}
	svc := NewLicenseService(repo, nil, nil, zap.NewNop())

	_, _, err := svc.List(context.Background(), models.LicenseFilter{Page: 1, PageSize: 20}, Actor{ID: "emp-1", Role: models.RoleEmployee})
	require.NoError(t, err)
	assert.True(t, repo.lastFilter.OnlyMine)
	assert.Equal(t, "emp-1", repo.lastFilter.ActorID)
}
