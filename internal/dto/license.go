package dto

import (
	"time"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/lifecycle"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
)

// CreateLicenseRequest payload for registering a new license. Number,
// authority, holder, and dates are fixed at creation time.
type CreateLicenseRequest struct {
	Title             string             `json:"title" validate:"required,max=200"`
	Description       string             `json:"description"`
	Type              models.LicenseType `json:"type" validate:"required"`
	Priority          models.Priority    `json:"priority" validate:"required"`
	LicenseNumber     string             `json:"licenseNumber" validate:"required,max=100"`
	IssuingAuthority  string             `json:"issuingAuthority" validate:"required,max=200"`
	HolderName        string             `json:"holderName" validate:"required,max=200"`
	Department        string             `json:"department"`
	IssuedDate        *time.Time         `json:"issuedDate" validate:"required"`
	ExpiryDate        *time.Time         `json:"expiryDate" validate:"required"`
	RenewalPeriodDays int                `json:"renewalPeriodDays" validate:"min=0"`
}

// UpdateLicenseRequest carries only the fields that stay mutable after
// creation. Immutable fields in a request body are rejected by the service,
// not silently dropped.
type UpdateLicenseRequest struct {
	Title             string          `json:"title" validate:"required,max=200"`
	Description       string          `json:"description"`
	Priority          models.Priority `json:"priority" validate:"required"`
	Department        string          `json:"department"`
	RenewalPeriodDays int             `json:"renewalPeriodDays" validate:"min=0"`

	// Present only to detect illegal modification attempts.
	LicenseNumber    string `json:"licenseNumber"`
	IssuingAuthority string `json:"issuingAuthority"`
	HolderName       string `json:"holderName"`
}

// CreateLicenseConditionRequest payload for attaching a condition.
type CreateLicenseConditionRequest struct {
	Description string     `json:"description" validate:"required"`
	DueDate     *time.Time `json:"dueDate"`
}

// LicenseResponse decorates a license with derived fields for the UI.
type LicenseResponse struct {
	models.License
	Capabilities lifecycle.LicenseCapabilities `json:"capabilities"`
	Overdue      bool                          `json:"overdue"`
	LegalActions []lifecycle.Action            `json:"legalActions"`
}

// NewLicenseResponse computes capability flags and derived properties.
func NewLicenseResponse(l *models.License, actorID string, role models.UserRole, now time.Time) LicenseResponse {
	overdue := l.ExpiryDate != nil &&
		l.ExpiryDate.Before(now) &&
		!lifecycle.LicenseMachine.IsTerminal(l.Status)
	return LicenseResponse{
		License:      *l,
		Capabilities: lifecycle.EvaluateLicense(l, actorID, role),
		Overdue:      overdue,
		LegalActions: lifecycle.LicenseMachine.LegalActions(l.Status),
	}
}
