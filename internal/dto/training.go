package dto

import (
	"time"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/lifecycle"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
)

// CreateTrainingRequest payload for drafting a training session.
type CreateTrainingRequest struct {
	Title              string              `json:"title" validate:"required,max=200"`
	Description        string              `json:"description"`
	Type               models.TrainingType `json:"type" validate:"required"`
	InstructorName     string              `json:"instructorName"`
	Location           string              `json:"location"`
	Department         string              `json:"department"`
	ScheduledStartDate *time.Time          `json:"scheduledStartDate"`
	ScheduledEndDate   *time.Time          `json:"scheduledEndDate"`
	MaxParticipants    int                 `json:"maxParticipants" validate:"min=0"`
}

// UpdateTrainingRequest payload for editing a draft session.
type UpdateTrainingRequest struct {
	Title              string              `json:"title" validate:"required,max=200"`
	Description        string              `json:"description"`
	Type               models.TrainingType `json:"type" validate:"required"`
	InstructorName     string              `json:"instructorName"`
	Location           string              `json:"location"`
	Department         string              `json:"department"`
	ScheduledStartDate *time.Time          `json:"scheduledStartDate"`
	ScheduledEndDate   *time.Time          `json:"scheduledEndDate"`
	MaxParticipants    int                 `json:"maxParticipants" validate:"min=0"`
}

// EnrollRequest payload for adding a participant.
type EnrollRequest struct {
	ParticipantID   string `json:"participantId" validate:"required"`
	ParticipantName string `json:"participantName" validate:"required"`
}

// UpdateEnrollmentRequest records attendance/completion for a participant.
type UpdateEnrollmentRequest struct {
	Attended  bool `json:"attended"`
	Completed bool `json:"completed"`
}

// TrainingResponse decorates a training session with derived fields.
type TrainingResponse struct {
	models.Training
	Capabilities lifecycle.TrainingCapabilities `json:"capabilities"`
	LegalActions []lifecycle.Action             `json:"legalActions"`
}

// NewTrainingResponse computes capability flags for the acting user.
func NewTrainingResponse(t *models.Training, actorID string, role models.UserRole) TrainingResponse {
	return TrainingResponse{
		Training:     *t,
		Capabilities: lifecycle.EvaluateTraining(t, actorID, role),
		LegalActions: lifecycle.TrainingMachine.LegalActions(t.Status),
	}
}
