package lifecycle

import "github.com/risky-biz/harmoni-hse-360-sub005/internal/models"

// Capability evaluation derives every UI-visible action flag from the same
// transition tables the executor enforces, so the two can never drift.

// HazardCapabilities is the action-permission set for one hazard and actor.
type HazardCapabilities struct {
	CanEdit    bool `json:"can_edit"`
	CanDelete  bool `json:"can_delete"`
	CanAssess  bool `json:"can_assess"`
	CanResolve bool `json:"can_resolve"`
	CanClose   bool `json:"can_close"`
	CanReopen  bool `json:"can_reopen"`
}

// EvaluateHazard computes the capability flags for the acting user.
func EvaluateHazard(h *models.Hazard, actorID string, role models.UserRole) HazardCapabilities {
	owner := h.ReporterID == actorID
	manager := role == models.RoleAdmin || role == models.RoleSafetyManager
	return HazardCapabilities{
		// Hazards are editable only before assessment, by the reporter or a manager.
		CanEdit:    h.Status == models.HazardStatusOpen && (owner || manager),
		CanDelete:  h.Status == models.HazardStatusOpen && (owner || role == models.RoleAdmin),
		CanAssess:  allowed(HazardMachine, h.Status, ActionAssess, role),
		CanResolve: allowed(HazardMachine, h.Status, ActionResolve, role),
		CanClose:   allowed(HazardMachine, h.Status, ActionClose, role),
		CanReopen:  allowed(HazardMachine, h.Status, ActionReopen, role),
	}
}

// Allows maps a workflow action to its capability flag. The executor checks
// this after table lookup so ownership rules bind transitions too.
func (c HazardCapabilities) Allows(action Action) bool {
	switch action {
	case ActionAssess:
		return c.CanAssess
	case ActionResolve:
		return c.CanResolve
	case ActionClose:
		return c.CanClose
	case ActionReopen:
		return c.CanReopen
	default:
		return false
	}
}

// CanViewHazard applies role-based visibility. Managers and admins see
// everything; supervisors see their department; employees see their own
// reports and their department's.
func CanViewHazard(h *models.Hazard, actorID string, role models.UserRole, department string) bool {
	switch role {
	case models.RoleAdmin, models.RoleSafetyManager, models.RoleSystem:
		return true
	case models.RoleSupervisor:
		return h.Department == department
	default:
		return h.ReporterID == actorID || (department != "" && h.Department == department)
	}
}

// LicenseCapabilities is the action-permission set for one license and actor.
type LicenseCapabilities struct {
	CanEdit       bool `json:"can_edit"`
	CanDelete     bool `json:"can_delete"`
	CanSubmit     bool `json:"can_submit"`
	CanApprove    bool `json:"can_approve"`
	CanReject     bool `json:"can_reject"`
	CanActivate   bool `json:"can_activate"`
	CanSuspend    bool `json:"can_suspend"`
	CanReactivate bool `json:"can_reactivate"`
	CanRevoke     bool `json:"can_revoke"`
	CanRenew      bool `json:"can_renew"`
}

// licenseEditable holds the statuses in which mutable fields may still change.
// Core identity fields (number, authority, holder, issued date) are locked at
// creation regardless; the service enforces the field split.
func licenseEditable(status models.LicenseStatus) bool {
	switch status {
	case models.LicenseStatusDraft, models.LicenseStatusSubmitted, models.LicenseStatusApproved:
		return true
	default:
		return false
	}
}

// EvaluateLicense computes the capability flags for the acting user.
func EvaluateLicense(l *models.License, actorID string, role models.UserRole) LicenseCapabilities {
	owner := l.CreatedBy == actorID
	manager := role == models.RoleAdmin || role == models.RoleSafetyManager
	return LicenseCapabilities{
		CanEdit:       licenseEditable(l.Status) && (owner || manager),
		CanDelete:     l.Status == models.LicenseStatusDraft && (owner || role == models.RoleAdmin),
		CanSubmit:     allowed(LicenseMachine, l.Status, ActionSubmit, role) && (owner || manager),
		CanApprove:    allowed(LicenseMachine, l.Status, ActionApprove, role),
		CanReject:     allowed(LicenseMachine, l.Status, ActionReject, role),
		CanActivate:   allowed(LicenseMachine, l.Status, ActionActivate, role),
		CanSuspend:    allowed(LicenseMachine, l.Status, ActionSuspend, role),
		CanReactivate: allowed(LicenseMachine, l.Status, ActionReactivate, role),
		CanRevoke:     allowed(LicenseMachine, l.Status, ActionRevoke, role),
		CanRenew:      allowed(LicenseMachine, l.Status, ActionRenew, role),
	}
}

// Allows maps a workflow action to its capability flag.
func (c LicenseCapabilities) Allows(action Action) bool {
	switch action {
	case ActionSubmit:
		return c.CanSubmit
	case ActionApprove:
		return c.CanApprove
	case ActionReject:
		return c.CanReject
	case ActionActivate:
		return c.CanActivate
	case ActionSuspend:
		return c.CanSuspend
	case ActionReactivate:
		return c.CanReactivate
	case ActionRevoke:
		return c.CanRevoke
	case ActionRenew:
		return c.CanRenew
	case ActionExpire:
		// Expiry is system-driven; the role list on the rule is authoritative.
		return true
	default:
		return false
	}
}

// TrainingCapabilities is the action-permission set for one training session.
type TrainingCapabilities struct {
	CanEdit     bool `json:"can_edit"`
	CanDelete   bool `json:"can_delete"`
	CanSchedule bool `json:"can_schedule"`
	CanStart    bool `json:"can_start"`
	CanComplete bool `json:"can_complete"`
	CanCancel   bool `json:"can_cancel"`
	CanEnroll   bool `json:"can_enroll"`
}

// EvaluateTraining computes the capability flags for the acting user.
func EvaluateTraining(t *models.Training, actorID string, role models.UserRole) TrainingCapabilities {
	owner := t.CreatedBy == actorID
	manager := role == models.RoleAdmin || role == models.RoleSafetyManager
	return TrainingCapabilities{
		CanEdit:     t.Status == models.TrainingStatusDraft && (owner || manager),
		CanDelete:   t.Status == models.TrainingStatusDraft && (owner || role == models.RoleAdmin),
		CanSchedule: allowed(TrainingMachine, t.Status, ActionSchedule, role) && (owner || manager),
		CanStart:    allowed(TrainingMachine, t.Status, ActionStart, role),
		CanComplete: allowed(TrainingMachine, t.Status, ActionComplete, role),
		CanCancel:   allowed(TrainingMachine, t.Status, ActionCancel, role),
		CanEnroll:   t.Status == models.TrainingStatusDraft || t.Status == models.TrainingStatusScheduled,
	}
}

// Allows maps a workflow action to its capability flag.
func (c TrainingCapabilities) Allows(action Action) bool {
	switch action {
	case ActionSchedule:
		return c.CanSchedule
	case ActionStart:
		return c.CanStart
	case ActionComplete:
		return c.CanComplete
	case ActionCancel:
		return c.CanCancel
	default:
		return false
	}
}
