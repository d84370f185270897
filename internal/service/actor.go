package service

import "github.com/risky-biz/harmoni-hse-360-sub005/internal/models"

// Actor identifies the principal performing an operation. Request metadata is
// carried along so audit entries can record it without reaching back into gin.
type Actor struct {
	ID         string
	Name       string
	Role       models.UserRole
	Department string
	IPAddress  string
	UserAgent  string
}

// ActorFromClaims builds an actor from verified JWT claims.
func ActorFromClaims(claims *models.JWTClaims, ip, userAgent string) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{
		ID:         claims.UserID,
		Name:       claims.FullName,
		Role:       claims.Role,
		Department: claims.Department,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
}

// SystemActor is used by background jobs when no user triggered the action.
func SystemActor() Actor {
	return Actor{
		ID:        models.SystemActorID,
		Name:      "system",
		Role:      models.RoleSystem,
		IPAddress: "system",
		UserAgent: "background-job",
	}
}

// IsManager reports whether the actor holds a managing role.
func (a Actor) IsManager() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleSafetyManager
}

// optionalString maps empty strings to nil for nullable audit columns.
func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
