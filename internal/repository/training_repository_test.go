package repository

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
)

func TestTrainingTransition(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE trainings SET status").
		WithArgs(models.TrainingStatusInProgress, sqlmock.AnyArg(), "trn-1", models.TrainingStatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Transition(context.Background(), TrainingTransitionParams{
		ID:        "trn-1",
		OldStatus: models.TrainingStatusScheduled,
		NewStatus: models.TrainingStatusInProgress,
		Audit: &models.AuditLog{
			EntityType: models.EntityTraining,
			EntityID:   "trn-1",
			Action:     "start",
			ActorID:    "mgr-1",
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingTransitionStaleStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE trainings SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM trainings`).
		WithArgs("trn-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), TrainingTransitionParams{
		ID:        "trn-1",
		OldStatus: models.TrainingStatusScheduled,
		NewStatus: models.TrainingStatusInProgress,
	})
	assert.ErrorIs(t, err, ErrStaleStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingEnroll(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.Enrollment{TrainingID: "trn-1", ParticipantID: "emp-1", ParticipantName: "Employee"}
	err := repo.Enroll(context.Background(), enrollment)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.False(t, enrollment.EnrolledAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingCountEnrollments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments WHERE training_id = \$1`).
		WithArgs("trn-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountEnrollments(context.Background(), "trn-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingUpdateEnrollmentMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingRepository(db)

	mock.ExpectExec("UPDATE enrollments SET attended").
		WithArgs("enr-1", "trn-1", true, false, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateEnrollment(context.Background(), "trn-1", "enr-1", true, false, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingDeleteDraftOnly(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingRepository(db)

	mock.ExpectExec("DELETE FROM trainings").
		WithArgs("trn-1", models.TrainingStatusDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "trn-1", models.TrainingStatusDraft)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
