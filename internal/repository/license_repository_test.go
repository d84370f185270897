package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
)

func TestLicenseTransitionRenewMovesExpiry(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLicenseRepository(db)

	newExpiry := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE licenses SET status").
		WithArgs(models.LicenseStatusActive, sqlmock.AnyArg(), "lic-1", models.LicenseStatusActive, newExpiry).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Transition(context.Background(), LicenseTransitionParams{
		ID:            "lic-1",
		OldStatus:     models.LicenseStatusActive,
		NewStatus:     models.LicenseStatusActive,
		NewExpiryDate: &newExpiry,
		Audit: &models.AuditLog{
			EntityType: models.EntityLicense,
			EntityID:   "lic-1",
			Action:     "renew",
			ActorID:    "mgr-1",
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLicenseTransitionStaleStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLicenseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE licenses SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM licenses`).
		WithArgs("lic-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), LicenseTransitionParams{
		ID:        "lic-1",
		OldStatus: models.LicenseStatusSubmitted,
		NewStatus: models.LicenseStatusApproved,
	})
	assert.ErrorIs(t, err, ErrStaleStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLicenseListExpirable(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLicenseRepository(db)

	now := time.Now()
	issued := now.AddDate(-1, 0, 0)
	expiry := now.AddDate(0, 0, -1)
	rows := sqlmock.NewRows([]string{
		"id", "title", "description", "type", "status", "priority", "license_number",
		"issuing_authority", "holder_name", "department", "issued_date", "expiry_date",
		"renewal_period_days", "created_by", "created_at", "updated_at",
	}).AddRow("lic-1", "Permit", "", string(models.LicenseTypeOperating), string(models.LicenseStatusActive),
		string(models.PriorityHigh), "OPR-001", "Authority", "Holder", "OPERATIONS", issued, expiry, 365, "mgr-1", now, now)
	mock.ExpectQuery(`WHERE expiry_date IS NOT NULL AND expiry_date < \$1`).
		WithArgs(now).
		WillReturnRows(rows)

	licenses, err := repo.ListExpirable(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, licenses, 1)
	assert.Equal(t, models.LicenseStatusActive, licenses[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLicenseCompleteConditionAlreadyDone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLicenseRepository(db)

	mock.ExpectExec("UPDATE license_conditions SET completed = TRUE").
		WithArgs("cond-1", "lic-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CompleteCondition(context.Background(), "lic-1", "cond-1", time.Now())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
