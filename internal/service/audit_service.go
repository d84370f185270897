package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
	appErrors "github.com/risky-biz/harmoni-hse-360-sub005/pkg/errors"
)

type auditReader interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
}

// AuditService exposes the append-only trail. Reads always hit the database;
// audit queries are never served from cache.
type AuditService struct {
	repo   auditReader
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditReader, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// List returns audit entries matching the filter. Only managing roles may
// read the trail; employees see their own actions.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter, actor Actor) ([]models.AuditLog, error) {
	switch actor.Role {
	case models.RoleAdmin, models.RoleSafetyManager:
		// unrestricted
	case models.RoleSupervisor, models.RoleEmployee:
		filter.ActorID = actor.ID
	default:
		return nil, appErrors.ErrForbidden
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	return entries, nil
}

// EntityTrail returns the full trail for one entity, newest first.
func (s *AuditService) EntityTrail(ctx context.Context, entityType models.EntityType, entityID string, actor Actor) ([]models.AuditLog, error) {
	if !actor.IsManager() && actor.Role != models.RoleSupervisor {
		return nil, appErrors.ErrForbidden
	}
	entries, err := s.repo.List(ctx, models.AuditFilter{EntityType: entityType, EntityID: entityID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}
	return entries, nil
}
