package models

import "time"

// EntityType names the lifecycle-managed record kinds sharing the audit trail.
type EntityType string

const (
	EntityHazard   EntityType = "HAZARD"
	EntityLicense  EntityType = "LICENSE"
	EntityTraining EntityType = "TRAINING"

	// EntityUser covers authentication and account events.
	EntityUser EntityType = "USER"
)

// AuditAction constants for events outside the lifecycle workflow.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionCreate         = "CREATE"
	AuditActionUpdate         = "UPDATE"
	AuditActionDelete         = "DELETE"
	AuditActionAttachmentAdd  = "ATTACHMENT_ADD"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
)

// AuditLog is an append-only trail record. Workflow transitions carry
// old/new status; other actions leave them empty.
type AuditLog struct {
	ID         string     `db:"id" json:"id"`
	EntityType EntityType `db:"entity_type" json:"entity_type"`
	EntityID   string     `db:"entity_id" json:"entity_id"`
	Action     string     `db:"action" json:"action"`
	OldStatus  string     `db:"old_status" json:"old_status,omitempty"`
	NewStatus  string     `db:"new_status" json:"new_status,omitempty"`
	ActorID    string     `db:"actor_id" json:"actor_id"`
	Reason     *string    `db:"reason" json:"reason,omitempty"`
	IPAddress  string     `db:"ip_address" json:"ip_address"`
	UserAgent  string     `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// AuditFilter constrains audit trail queries.
type AuditFilter struct {
	EntityType EntityType
	EntityID   string
	ActorID    string
	Action     string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
