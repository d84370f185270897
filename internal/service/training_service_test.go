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

type stubTrainingStore struct {
	training        *models.Training
	transitionErr   error
	transitions     []repository.TrainingTransitionParams
	enrollments     []*models.Enrollment
	enrollmentCount int
	updatedEnroll   bool
	listTrainings   []models.Training
	listTotal       int
	lastFilter      models.TrainingFilter
	summary         *models.TrainingSummary
}

func (s *stubTrainingStore) Create(ctx context.Context, training *models.Training) error {
	if training.ID == "" {
		training.ID = "trn-1"
	}
	copy := *training
	s.training = &copy
	return nil
}

func (s *stubTrainingStore) GetByID(ctx context.Context, id string) (*models.Training, error) {
	if s.training == nil || s.training.ID != id {
		return nil, sql.ErrNoRows
	}
	copy := *s.training
	return &copy, nil
}

func (s *stubTrainingStore) Update(ctx context.Context, training *models.Training) error {
	copy := *training
	s.training = &copy
	return nil
}

func (s *stubTrainingStore) Delete(ctx context.Context, id string, status models.TrainingStatus) error {
	s.training = nil
	return nil
}

func (s *stubTrainingStore) Transition(ctx context.Context, params repository.TrainingTransitionParams) error {
	if s.transitionErr != nil {
		return s.transitionErr
	}
	s.transitions = append(s.transitions, params)
	s.training.Status = params.NewStatus
	return nil
}

func (s *stubTrainingStore) Enroll(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = "enr-1"
	}
	s.enrollments = append(s.enrollments, enrollment)
	return nil
}

func (s *stubTrainingStore) CountEnrollments(ctx context.Context, trainingID string) (int, error) {
	return s.enrollmentCount, nil
}

func (s *stubTrainingStore) UpdateEnrollment(ctx context.Context, trainingID, enrollmentID string, attended, completed bool, completedAt *time.Time) error {
	s.updatedEnroll = true
	return nil
}

func (s *stubTrainingStore) List(ctx context.Context, filter models.TrainingFilter) ([]models.Training, int, error) {
	s.lastFilter = filter
	return s.listTrainings, s.listTotal, nil
}

func (s *stubTrainingStore) Summary(ctx context.Context) (*models.TrainingSummary, error) {
	return s.summary, nil
}

func scheduledTraining() *models.Training {
	start := time.Date(2026, 9, 15, 9, 0, 0, 0, time.UTC)
	return &models.Training{
		ID:                 "trn-1",
		Title:              "Fire safety refresher",
		Type:               models.TrainingTypeFireSafety,
		Status:             models.TrainingStatusScheduled,
		InstructorName:     "Instructor",
		Department:         "OPERATIONS",
		ScheduledStartDate: &start,
		CreatedBy:          "mgr-1",
	}
}

func TestTrainingServiceScheduleRequiresInstructor(t *testing.T) {
	training := scheduledTraining()
	training.Status = models.TrainingStatusDraft
	training.InstructorName = ""
	repo := &stubTrainingStore{training: training}
	svc := NewTrainingService(repo, nil, nil, zap.NewNop())

	_, err := svc.Execute(context.Background(), "trn-1", lifecycle.ActionSchedule, "", Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, lifecycle.FieldInstructorName)
	assert.Empty(t, repo.transitions)
}

func TestTrainingServiceStart(t *testing.T) {
	repo := &stubTrainingStore{training: scheduledTraining()}
	svc := NewTrainingService(repo, nil, nil, zap.NewNop())

	resp, err := svc.Execute(context.Background(), "trn-1", lifecycle.ActionStart, "", Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.NoError(t, err)
	assert.Equal(t, models.TrainingStatusInProgress, resp.Status)
	require.Len(t, repo.transitions, 1)
	assert.Equal(t, models.TrainingStatusScheduled, repo.transitions[0].OldStatus)
	assert.Equal(t, string(lifecycle.ActionStart), repo.transitions[0].Audit.Action)
}

func TestTrainingServiceCancelRequiresReason(t *testing.T) {
	repo := &stubTrainingStore{training: scheduledTraining()}
	svc := NewTrainingService(repo, nil, nil, zap.NewNop())

	_, err := svc.Execute(context.Background(), "trn-1", lifecycle.ActionCancel, "", Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	resp, err := svc.Execute(context.Background(), "trn-1", lifecycle.ActionCancel, "instructor unavailable", Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.NoError(t, err)
	assert.Equal(t, models.TrainingStatusCancelled, resp.Status)
}

func TestTrainingServiceEnrollDuplicate(t *testing.T) {
	training := scheduledTraining()
	training.Enrollments = []models.Enrollment{{ID: "enr-1", TrainingID: "trn-1", ParticipantID: "emp-1"}}
	repo := &stubTrainingStore{training: training}
	svc := NewTrainingService(repo, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "trn-1", dto.EnrollRequest{ParticipantID: "emp-1", ParticipantName: "Employee"}, Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.enrollments)
}

func TestTrainingServiceEnrollCapacity(t *testing.T) {
	training := scheduledTraining()
	training.MaxParticipants = 2
	repo := &stubTrainingStore{training: training, enrollmentCount: 2}
	svc := NewTrainingService(repo, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "trn-1", dto.EnrollRequest{ParticipantID: "emp-2", ParticipantName: "Employee"}, Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "full")
}

func TestTrainingServiceEnrollAfterStart(t *testing.T) {
	training := scheduledTraining()
	training.Status = models.TrainingStatusInProgress
	repo := &stubTrainingStore{training: training}
	svc := NewTrainingService(repo, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "trn-1", dto.EnrollRequest{ParticipantID: "emp-2", ParticipantName: "Employee"}, Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestTrainingServiceUpdateEnrollmentBeforeStart(t *testing.T) {
	repo := &stubTrainingStore{training: scheduledTraining()}
	svc := NewTrainingService(repo, nil, nil, zap.NewNop())

	err := svc.UpdateEnrollment(context.Background(), "trn-1", "enr-1", dto.UpdateEnrollmentRequest{Attended: true}, Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.updatedEnroll)
}

func TestTrainingServiceCreateValidatesDates(t *testing.T) {
	repo := &stubTrainingStore{}
	svc := NewTrainingService(repo, nil, nil, zap.NewNop())
	start := time.Date(2026, 9, 15, 9, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	_, err := svc.Create(context.Background(), dto.CreateTrainingRequest{
		Title:              "Fire safety refresher",
		Type:               models.TrainingTypeFireSafety,
		ScheduledStartDate: &start,
		ScheduledEndDate:   &end,
	}, Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
