package models

import "time"

// TrainingStatus captures the training session workflow state.
type TrainingStatus string

const (
	TrainingStatusDraft      TrainingStatus = "DRAFT"
	TrainingStatusScheduled  TrainingStatus = "SCHEDULED"
	TrainingStatusInProgress TrainingStatus = "IN_PROGRESS"
	TrainingStatusCompleted  TrainingStatus = "COMPLETED"
	TrainingStatusCancelled  TrainingStatus = "CANCELLED"
)

// TrainingType enumerates session categories.
type TrainingType string

const (
	TrainingTypeSafetyInduction    TrainingType = "SAFETY_INDUCTION"
	TrainingTypeFireSafety         TrainingType = "FIRE_SAFETY"
	TrainingTypeFirstAid           TrainingType = "FIRST_AID"
	TrainingTypeEquipmentOperation TrainingType = "EQUIPMENT_OPERATION"
	TrainingTypeHazmatHandling     TrainingType = "HAZMAT_HANDLING"
	TrainingTypeEmergencyResponse  TrainingType = "EMERGENCY_RESPONSE"
)

// Training represents a scheduled training session.
type Training struct {
	ID                 string         `db:"id" json:"id"`
	Title              string         `db:"title" json:"title"`
	Description        string         `db:"description" json:"description"`
	Type               TrainingType   `db:"type" json:"type"`
	Status             TrainingStatus `db:"status" json:"status"`
	InstructorName     string         `db:"instructor_name" json:"instructor_name"`
	Location           string         `db:"location" json:"location"`
	Department         string         `db:"department" json:"department"`
	ScheduledStartDate *time.Time     `db:"scheduled_start_date" json:"scheduled_start_date,omitempty"`
	ScheduledEndDate   *time.Time     `db:"scheduled_end_date" json:"scheduled_end_date,omitempty"`
	MaxParticipants    int            `db:"max_participants" json:"max_participants"`
	CreatedBy          string         `db:"created_by" json:"created_by"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`

	Enrollments []Enrollment `db:"-" json:"enrollments,omitempty"`
}

// Enrollment tracks a participant in a training session.
type Enrollment struct {
	ID              string     `db:"id" json:"id"`
	TrainingID      string     `db:"training_id" json:"training_id"`
	ParticipantID   string     `db:"participant_id" json:"participant_id"`
	ParticipantName string     `db:"participant_name" json:"participant_name"`
	EnrolledAt      time.Time  `db:"enrolled_at" json:"enrolled_at"`
	Attended        bool       `db:"attended" json:"attended"`
	Completed       bool       `db:"completed" json:"completed"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// TrainingFilter captures list query parameters.
type TrainingFilter struct {
	Search        string
	Type          *TrainingType
	Status        *TrainingStatus
	Department    string
	ScheduledFrom *time.Time
	ScheduledTo   *time.Time
	OnlyMine      bool
	ActorID       string

	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TrainingSummary aggregates counts over the full training collection.
type TrainingSummary struct {
	TotalCount     int            `json:"total_count"`
	ScheduledCount int            `json:"scheduled_count"`
	CompletedCount int            `json:"completed_count"`
	ByType         map[string]int `json:"by_type"`
	ByStatus       map[string]int `json:"by_status"`
}
