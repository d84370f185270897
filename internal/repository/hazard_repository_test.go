package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
)

func TestHazardTransition(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHazardRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE hazards SET status").
		WithArgs(models.HazardStatusResolved, sqlmock.AnyArg(), "hz-1", models.HazardStatusAssessed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Transition(context.Background(), HazardTransitionParams{
		ID:        "hz-1",
		OldStatus: models.HazardStatusAssessed,
		NewStatus: models.HazardStatusResolved,
		Audit: &models.AuditLog{
			EntityType: models.EntityHazard,
			EntityID:   "hz-1",
			Action:     "resolve",
			OldStatus:  string(models.HazardStatusAssessed),
			NewStatus:  string(models.HazardStatusResolved),
			ActorID:    "mgr-1",
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHazardTransitionWithAssessment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHazardRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE hazards SET status").
		WithArgs(models.HazardStatusAssessed, sqlmock.AnyArg(), "hz-1", models.HazardStatusOpen, models.RiskLevelHigh).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE risk_assessments SET is_current = FALSE").
		WithArgs("hz-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO risk_assessments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assessment := &models.RiskAssessment{RiskLevel: models.RiskLevelHigh, Likelihood: 4, Severity: 5, AssessorID: "mgr-1"}
	err := repo.Transition(context.Background(), HazardTransitionParams{
		ID:         "hz-1",
		OldStatus:  models.HazardStatusOpen,
		NewStatus:  models.HazardStatusAssessed,
		Assessment: assessment,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, assessment.ID)
	assert.True(t, assessment.IsCurrent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHazardTransitionStaleStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHazardRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE hazards SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM hazards`).
		WithArgs("hz-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), HazardTransitionParams{
		ID:        "hz-1",
		OldStatus: models.HazardStatusOpen,
		NewStatus: models.HazardStatusAssessed,
	})
	assert.ErrorIs(t, err, ErrStaleStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHazardTransitionMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHazardRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE hazards SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM hazards`).
		WithArgs("hz-missing").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), HazardTransitionParams{
		ID:        "hz-missing",
		OldStatus: models.HazardStatusOpen,
		NewStatus: models.HazardStatusAssessed,
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHazardDeleteStaleStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHazardRepository(db)

	mock.ExpectExec("DELETE FROM hazards").
		WithArgs("hz-1", models.HazardStatusOpen).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM hazards`).
		WithArgs("hz-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := repo.Delete(context.Background(), "hz-1", models.HazardStatusOpen)
	assert.ErrorIs(t, err, ErrStaleStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHazardListStatusFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHazardRepository(db)

	status := models.HazardStatusOpen
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM hazards WHERE status = \$1`).
		WithArgs(status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "title", "description", "category", "status", "location", "latitude", "longitude",
		"department", "reporter_id", "reporter_name", "identified_date", "expected_resolution_date",
		"current_risk_level", "created_at", "updated_at",
	}).AddRow("hz-1", "Exposed wiring", "desc", string(models.HazardCategoryPhysical), string(status),
		"Warehouse B", nil, nil, "OPERATIONS", "emp-1", "Reporter", now, nil, nil, now, now)
	mock.ExpectQuery(`FROM hazards WHERE status = \$1 ORDER BY identified_date DESC LIMIT 20 OFFSET 0`).
		WithArgs(status).
		WillReturnRows(rows)

	hazards, total, err := repo.List(context.Background(), models.HazardFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, hazards, 1)
	assert.Equal(t, "hz-1", hazards[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
