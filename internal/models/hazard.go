package models

import "time"

// HazardStatus captures the hazard workflow state.
type HazardStatus string

const (
	HazardStatusOpen     HazardStatus = "OPEN"
	HazardStatusAssessed HazardStatus = "ASSESSED"
	HazardStatusResolved HazardStatus = "RESOLVED"
	HazardStatusClosed   HazardStatus = "CLOSED"
)

// HazardCategory enumerates supported hazard classifications.
type HazardCategory string

const (
	HazardCategoryPhysical      HazardCategory = "PHYSICAL"
	HazardCategoryChemical      HazardCategory = "CHEMICAL"
	HazardCategoryBiological    HazardCategory = "BIOLOGICAL"
	HazardCategoryErgonomic     HazardCategory = "ERGONOMIC"
	HazardCategoryEnvironmental HazardCategory = "ENVIRONMENTAL"
	HazardCategoryPsychosocial  HazardCategory = "PSYCHOSOCIAL"
)

// RiskLevel is the ordinal risk rating attached to assessments.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// Hazard represents a reported workplace hazard.
type Hazard struct {
	ID                     string         `db:"id" json:"id"`
	Title                  string         `db:"title" json:"title"`
	Description            string         `db:"description" json:"description"`
	Category               HazardCategory `db:"category" json:"category"`
	Status                 HazardStatus   `db:"status" json:"status"`
	Location               string         `db:"location" json:"location"`
	Latitude               *float64       `db:"latitude" json:"latitude,omitempty"`
	Longitude              *float64       `db:"longitude" json:"longitude,omitempty"`
	Department             string         `db:"department" json:"department"`
	ReporterID             string         `db:"reporter_id" json:"reporter_id"`
	ReporterName           string         `db:"reporter_name" json:"reporter_name"`
	IdentifiedDate         time.Time      `db:"identified_date" json:"identified_date"`
	ExpectedResolutionDate *time.Time     `db:"expected_resolution_date" json:"expected_resolution_date,omitempty"`
	CurrentRiskLevel       *RiskLevel     `db:"current_risk_level" json:"current_risk_level,omitempty"`
	CreatedAt              time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updated_at"`

	Assessments []RiskAssessment   `db:"-" json:"assessments,omitempty"`
	Mitigations []MitigationAction `db:"-" json:"mitigations,omitempty"`
}

// RiskAssessment records a point-in-time risk evaluation. Exactly one
// assessment per hazard is current; older ones are retained superseded.
type RiskAssessment struct {
	ID         string    `db:"id" json:"id"`
	HazardID   string    `db:"hazard_id" json:"hazard_id"`
	RiskLevel  RiskLevel `db:"risk_level" json:"risk_level"`
	Likelihood int       `db:"likelihood" json:"likelihood"`
	Severity   int       `db:"severity" json:"severity"`
	Notes      string    `db:"notes" json:"notes"`
	AssessorID string    `db:"assessor_id" json:"assessor_id"`
	IsCurrent  bool      `db:"is_current" json:"is_current"`
	AssessedAt time.Time `db:"assessed_at" json:"assessed_at"`
}

// MitigationAction is a follow-up task attached to a hazard.
type MitigationAction struct {
	ID          string     `db:"id" json:"id"`
	HazardID    string     `db:"hazard_id" json:"hazard_id"`
	Description string     `db:"description" json:"description"`
	AssignedTo  string     `db:"assigned_to" json:"assigned_to"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	Completed   bool       `db:"completed" json:"completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Overdue reports whether the action's due date has passed without completion.
// Derived on every read, never stored.
func (m MitigationAction) Overdue(now time.Time) bool {
	return m.DueDate != nil && m.DueDate.Before(now) && !m.Completed
}

// HazardFilter captures list query parameters.
type HazardFilter struct {
	Search         string
	Category       *HazardCategory
	Status         *HazardStatus
	RiskLevel      *RiskLevel
	Department     string
	IdentifiedFrom *time.Time
	IdentifiedTo   *time.Time

	// Geo radius filter; all three must be set to take effect.
	Latitude  *float64
	Longitude *float64
	RadiusKm  *float64

	OnlyUnassessed bool
	OnlyOverdue    bool
	OnlyHighRisk   bool
	OnlyMine       bool
	ActorID        string

	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// HazardSummary aggregates counts over the full hazard collection.
type HazardSummary struct {
	TotalCount    int            `json:"total_count"`
	OpenCount     int            `json:"open_count"`
	HighRiskCount int            `json:"high_risk_count"`
	OverdueCount  int            `json:"overdue_count"`
	ByCategory    map[string]int `json:"by_category"`
	ByRiskLevel   map[string]int `json:"by_risk_level"`
	ByStatus      map[string]int `json:"by_status"`
}
