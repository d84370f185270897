package lifecycle

import "github.com/risky-biz/harmoni-hse-360-sub005/internal/models"

// Workflow actions across the three entity types.
const (
	// Hazard actions.
	ActionAssess  Action = "assess"
	ActionResolve Action = "resolve"
	ActionClose   Action = "close"
	ActionReopen  Action = "reopen"

	// License actions.
	ActionSubmit     Action = "submit"
	ActionApprove    Action = "approve"
	ActionReject     Action = "reject"
	ActionActivate   Action = "activate"
	ActionSuspend    Action = "suspend"
	ActionReactivate Action = "reactivate"
	ActionRevoke     Action = "revoke"
	ActionExpire     Action = "expire"
	ActionRenew      Action = "renew"

	// Training actions.
	ActionSchedule Action = "schedule"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

var managerRoles = []models.UserRole{models.RoleAdmin, models.RoleSafetyManager}

var reviewerRoles = []models.UserRole{models.RoleAdmin, models.RoleSafetyManager, models.RoleSupervisor}

// Field names used in Rule.RequiredFields, mapped to values by the services.
const (
	FieldLicenseNumber      = "license_number"
	FieldHolderName         = "holder_name"
	FieldIssuingAuthority   = "issuing_authority"
	FieldIssuedDate         = "issued_date"
	FieldExpiryDate         = "expiry_date"
	FieldInstructorName     = "instructor_name"
	FieldScheduledStartDate = "scheduled_start_date"
)

// HazardMachine: Open -> Assessed -> Resolved -> Closed, with an explicit
// reassessment path back out of Closed.
var HazardMachine = newMachine(
	models.EntityHazard,
	models.HazardStatusOpen,
	[]models.HazardStatus{models.HazardStatusClosed},
	[]edge[models.HazardStatus]{
		{From: models.HazardStatusOpen, Action: ActionAssess, Rule: Rule[models.HazardStatus]{
			Target: models.HazardStatusAssessed,
			Roles:  reviewerRoles,
		}},
		{From: models.HazardStatusAssessed, Action: ActionResolve, Rule: Rule[models.HazardStatus]{
			Target: models.HazardStatusResolved,
		}},
		{From: models.HazardStatusResolved, Action: ActionClose, Rule: Rule[models.HazardStatus]{
			Target: models.HazardStatusClosed,
			Roles:  managerRoles,
		}},
		{From: models.HazardStatusClosed, Action: ActionReopen, Rule: Rule[models.HazardStatus]{
			Target:         models.HazardStatusOpen,
			Roles:          managerRoles,
			RequiresReason: true,
		}},
	},
)

// LicenseMachine: Draft -> Submitted -> Approved -> Active with suspension,
// revocation, system expiry, and renewal out of Active or Expired.
var LicenseMachine = newMachine(
	models.EntityLicense,
	models.LicenseStatusDraft,
	[]models.LicenseStatus{
		models.LicenseStatusRejected,
		models.LicenseStatusRevoked,
		models.LicenseStatusExpired,
	},
	[]edge[models.LicenseStatus]{
		{From: models.LicenseStatusDraft, Action: ActionSubmit, Rule: Rule[models.LicenseStatus]{
			Target: models.LicenseStatusSubmitted,
			RequiredFields: []string{
				FieldLicenseNumber, FieldHolderName, FieldIssuingAuthority,
				FieldIssuedDate, FieldExpiryDate,
			},
		}},
		{From: models.LicenseStatusSubmitted, Action: ActionApprove, Rule: Rule[models.LicenseStatus]{
			Target: models.LicenseStatusApproved,
			Roles:  managerRoles,
		}},
		{From: models.LicenseStatusSubmitted, Action: ActionReject, Rule: Rule[models.LicenseStatus]{
			Target:         models.LicenseStatusRejected,
			Roles:          managerRoles,
			RequiresReason: true,
		}},
		{From: models.LicenseStatusApproved, Action: ActionActivate, Rule: Rule[models.LicenseStatus]{
			Target: models.LicenseStatusActive,
			Roles:  managerRoles,
		}},
		{From: models.LicenseStatusActive, Action: ActionSuspend, Rule: Rule[models.LicenseStatus]{
			Target:         models.LicenseStatusSuspended,
			Roles:          managerRoles,
			RequiresReason: true,
		}},
		{From: models.LicenseStatusSuspended, Action: ActionReactivate, Rule: Rule[models.LicenseStatus]{
			Target: models.LicenseStatusActive,
			Roles:  managerRoles,
		}},
		{From: models.LicenseStatusActive, Action: ActionRevoke, Rule: Rule[models.LicenseStatus]{
			Target:         models.LicenseStatusRevoked,
			Roles:          managerRoles,
			RequiresReason: true,
		}},
		{From: models.LicenseStatusSuspended, Action: ActionRevoke, Rule: Rule[models.LicenseStatus]{
			Target:         models.LicenseStatusRevoked,
			Roles:          managerRoles,
			RequiresReason: true,
		}},
		{From: models.LicenseStatusDraft, Action: ActionExpire, Rule: expireRule},
		{From: models.LicenseStatusSubmitted, Action: ActionExpire, Rule: expireRule},
		{From: models.LicenseStatusApproved, Action: ActionExpire, Rule: expireRule},
		{From: models.LicenseStatusActive, Action: ActionExpire, Rule: expireRule},
		{From: models.LicenseStatusSuspended, Action: ActionExpire, Rule: expireRule},
		{From: models.LicenseStatusActive, Action: ActionRenew, Rule: Rule[models.LicenseStatus]{
			Target: models.LicenseStatusActive,
			Roles:  managerRoles,
		}},
		{From: models.LicenseStatusExpired, Action: ActionRenew, Rule: Rule[models.LicenseStatus]{
			Target: models.LicenseStatusActive,
			Roles:  managerRoles,
		}},
	},
)

// expire is triggered by the sweeper, not by users; admins may force it.
var expireRule = Rule[models.LicenseStatus]{
	Target: models.LicenseStatusExpired,
	Roles:  []models.UserRole{models.RoleSystem, models.RoleAdmin},
}

// TrainingMachine: Draft -> Scheduled -> InProgress -> Completed, cancellable
// with a reason from any non-terminal status.
var TrainingMachine = newMachine(
	models.EntityTraining,
	models.TrainingStatusDraft,
	[]models.TrainingStatus{models.TrainingStatusCompleted, models.TrainingStatusCancelled},
	[]edge[models.TrainingStatus]{
		{From: models.TrainingStatusDraft, Action: ActionSchedule, Rule: Rule[models.TrainingStatus]{
			Target:         models.TrainingStatusScheduled,
			RequiredFields: []string{FieldInstructorName, FieldScheduledStartDate},
		}},
		{From: models.TrainingStatusScheduled, Action: ActionStart, Rule: Rule[models.TrainingStatus]{
			Target: models.TrainingStatusInProgress,
		}},
		{From: models.TrainingStatusInProgress, Action: ActionComplete, Rule: Rule[models.TrainingStatus]{
			Target: models.TrainingStatusCompleted,
		}},
		{From: models.TrainingStatusDraft, Action: ActionCancel, Rule: cancelRule},
		{From: models.TrainingStatusScheduled, Action: ActionCancel, Rule: cancelRule},
		{From: models.TrainingStatusInProgress, Action: ActionCancel, Rule: cancelRule},
	},
)

var cancelRule = Rule[models.TrainingStatus]{
	Target:         models.TrainingStatusCancelled,
	Roles:          reviewerRoles,
	RequiresReason: true,
}
