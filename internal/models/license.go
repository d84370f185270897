package models

import "time"

// LicenseStatus captures the license workflow state.
type LicenseStatus string

const (
	LicenseStatusDraft     LicenseStatus = "DRAFT"
	LicenseStatusSubmitted LicenseStatus = "SUBMITTED"
	LicenseStatusApproved  LicenseStatus = "APPROVED"
	LicenseStatusRejected  LicenseStatus = "REJECTED"
	LicenseStatusActive    LicenseStatus = "ACTIVE"
	LicenseStatusSuspended LicenseStatus = "SUSPENDED"
	LicenseStatusRevoked   LicenseStatus = "REVOKED"
	LicenseStatusExpired   LicenseStatus = "EXPIRED"
)

// LicenseType enumerates permit categories.
type LicenseType string

const (
	LicenseTypeEnvironmental LicenseType = "ENVIRONMENTAL"
	LicenseTypeOperating     LicenseType = "OPERATING"
	LicenseTypeElectrical    LicenseType = "ELECTRICAL"
	LicenseTypeChemical      LicenseType = "CHEMICAL"
	LicenseTypeTransport     LicenseType = "TRANSPORT"
	LicenseTypeConstruction  LicenseType = "CONSTRUCTION"
)

// Priority is the ordinal urgency rating for licenses.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// License represents a permit or license record.
// LicenseNumber, IssuingAuthority, HolderName, and IssuedDate are immutable
// after creation; ExpiryDate only moves through the renew action.
type License struct {
	ID                string        `db:"id" json:"id"`
	Title             string        `db:"title" json:"title"`
	Description       string        `db:"description" json:"description"`
	Type              LicenseType   `db:"type" json:"type"`
	Status            LicenseStatus `db:"status" json:"status"`
	Priority          Priority      `db:"priority" json:"priority"`
	LicenseNumber     string        `db:"license_number" json:"license_number"`
	IssuingAuthority  string        `db:"issuing_authority" json:"issuing_authority"`
	HolderName        string        `db:"holder_name" json:"holder_name"`
	Department        string        `db:"department" json:"department"`
	IssuedDate        *time.Time    `db:"issued_date" json:"issued_date,omitempty"`
	ExpiryDate        *time.Time    `db:"expiry_date" json:"expiry_date,omitempty"`
	RenewalPeriodDays int           `db:"renewal_period_days" json:"renewal_period_days"`
	CreatedBy         string        `db:"created_by" json:"created_by"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`

	Conditions []LicenseCondition `db:"-" json:"conditions,omitempty"`
}

// LicenseCondition is a compliance obligation attached to a license.
type LicenseCondition struct {
	ID          string     `db:"id" json:"id"`
	LicenseID   string     `db:"license_id" json:"license_id"`
	Description string     `db:"description" json:"description"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	Completed   bool       `db:"completed" json:"completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Overdue reports whether the condition's due date has passed without completion.
func (c LicenseCondition) Overdue(now time.Time) bool {
	return c.DueDate != nil && c.DueDate.Before(now) && !c.Completed
}

// LicenseFilter captures list query parameters.
type LicenseFilter struct {
	Search      string
	Type        *LicenseType
	Status      *LicenseStatus
	Priority    *Priority
	Department  string
	IssuedFrom  *time.Time
	IssuedTo    *time.Time
	ExpiryFrom  *time.Time
	ExpiryTo    *time.Time
	OnlyOverdue bool
	OnlyMine    bool
	ActorID     string

	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// LicenseSummary aggregates counts over the full license collection.
type LicenseSummary struct {
	TotalCount    int            `json:"total_count"`
	ActiveCount   int            `json:"active_count"`
	ExpiringCount int            `json:"expiring_count"`
	OverdueCount  int            `json:"overdue_count"`
	ByType        map[string]int `json:"by_type"`
	ByPriority    map[string]int `json:"by_priority"`
	ByStatus      map[string]int `json:"by_status"`
}
