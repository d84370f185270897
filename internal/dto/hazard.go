package dto

import (
	"time"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/lifecycle"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
)

// CreateHazardRequest payload for reporting a new hazard.
type CreateHazardRequest struct {
	Title                  string                `json:"title" validate:"required,max=200"`
	Description            string                `json:"description" validate:"required"`
	Category               models.HazardCategory `json:"category" validate:"required"`
	Location               string                `json:"location" validate:"required"`
	Latitude               *float64              `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude              *float64              `json:"longitude" validate:"omitempty,min=-180,max=180"`
	Department             string                `json:"department"`
	ExpectedResolutionDate *time.Time            `json:"expectedResolutionDate"`
}

// UpdateHazardRequest payload for editing an open hazard.
type UpdateHazardRequest struct {
	Title                  string                `json:"title" validate:"required,max=200"`
	Description            string                `json:"description" validate:"required"`
	Category               models.HazardCategory `json:"category" validate:"required"`
	Location               string                `json:"location" validate:"required"`
	Latitude               *float64              `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude              *float64              `json:"longitude" validate:"omitempty,min=-180,max=180"`
	Department             string                `json:"department"`
	ExpectedResolutionDate *time.Time            `json:"expectedResolutionDate"`
}

// TransitionRequest carries the optional reason for a workflow action.
// The assessment block is consumed by the hazard assess action only.
type TransitionRequest struct {
	Reason     string                 `json:"reason"`
	Assessment *RiskAssessmentRequest `json:"assessment,omitempty"`
}

// RiskAssessmentRequest payload accompanying a hazard assessment.
type RiskAssessmentRequest struct {
	RiskLevel  models.RiskLevel `json:"riskLevel" validate:"required"`
	Likelihood int              `json:"likelihood" validate:"required,min=1,max=5"`
	Severity   int              `json:"severity" validate:"required,min=1,max=5"`
	Notes      string           `json:"notes"`
}

// CreateMitigationRequest payload for attaching a mitigation action.
type CreateMitigationRequest struct {
	Description string     `json:"description" validate:"required"`
	AssignedTo  string     `json:"assignedTo"`
	DueDate     *time.Time `json:"dueDate"`
}

// HazardResponse decorates a hazard with derived fields for the UI.
type HazardResponse struct {
	models.Hazard
	Capabilities lifecycle.HazardCapabilities `json:"capabilities"`
	Overdue      bool                         `json:"overdue"`
	LegalActions []lifecycle.Action           `json:"legalActions"`
}

// NewHazardResponse computes capability flags and derived properties.
func NewHazardResponse(h *models.Hazard, actorID string, role models.UserRole, now time.Time) HazardResponse {
	overdue := h.ExpectedResolutionDate != nil &&
		h.ExpectedResolutionDate.Before(now) &&
		!HazardMachineTerminal(h.Status)
	return HazardResponse{
		Hazard:       *h,
		Capabilities: lifecycle.EvaluateHazard(h, actorID, role),
		Overdue:      overdue,
		LegalActions: lifecycle.HazardMachine.LegalActions(h.Status),
	}
}

// HazardMachineTerminal reports whether a hazard status is terminal.
func HazardMachineTerminal(s models.HazardStatus) bool {
	return lifecycle.HazardMachine.IsTerminal(s)
}
