package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
	appErrors "github.com/risky-biz/harmoni-hse-360-sub005/pkg/errors"
	"github.com/risky-biz/harmoni-hse-360-sub005/pkg/storage"
)

type attachmentStore interface {
	Create(ctx context.Context, attachment *models.Attachment) error
	GetByID(ctx context.Context, id string) (*models.Attachment, error)
	ListByEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]models.Attachment, error)
	Delete(ctx context.Context, id string) error
}

// EntityFinder verifies that the target entity exists before a file is
// accepted. Implementations return a typed not-found error when it does not.
type EntityFinder func(ctx context.Context, id string) error

// AttachmentServiceConfig bounds what uploads are accepted.
type AttachmentServiceConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// AttachmentService stores entity attachments on the filesystem backend and
// hands out signed download tokens instead of raw paths.
type AttachmentService struct {
	repo    attachmentStore
	files   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	audit   auditWriter
	finders map[models.EntityType]EntityFinder
	logger  *zap.Logger

	maxSize      int64
	allowedMIMEs map[string]struct{}
}

// NewAttachmentService constructs the service.
func NewAttachmentService(repo attachmentStore, files *storage.LocalStorage, signer *storage.SignedURLSigner, audit auditWriter, finders map[models.EntityType]EntityFinder, logger *zap.Logger, cfg AttachmentServiceConfig) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 10 << 20
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mime := range cfg.AllowedMIMEs {
		allowed[strings.ToLower(strings.TrimSpace(mime))] = struct{}{}
	}
	return &AttachmentService{
		repo:         repo,
		files:        files,
		signer:       signer,
		audit:        audit,
		finders:      finders,
		logger:       logger,
		maxSize:      cfg.MaxFileSizeBytes,
		allowedMIMEs: allowed,
	}
}

// Upload stores a file for an entity and records its metadata. The reader is
// capped at the configured size limit; oversized uploads fail cleanly.
func (s *AttachmentService) Upload(ctx context.Context, entityType models.EntityType, entityID, fileName, contentType string, size int64, r io.Reader, actor Actor) (*models.Attachment, error) {
	finder, ok := s.finders[entityType]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported entity type: %s", entityType))
	}
	if err := finder(ctx, entityID); err != nil {
		return nil, err
	}
	if size > s.maxSize {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte limit", s.maxSize))
	}
	if len(s.allowedMIMEs) > 0 {
		if _, ok := s.allowedMIMEs[strings.ToLower(contentType)]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("content type %s is not allowed", contentType))
		}
	}

	attachment := &models.Attachment{
		ID:          uuid.NewString(),
		EntityType:  entityType,
		EntityID:    entityID,
		FileName:    filepath.Base(fileName),
		ContentType: contentType,
		SizeBytes:   size,
		UploadedBy:  actor.ID,
	}
	attachment.StoragePath = filepath.Join(
		strings.ToLower(string(entityType)), entityID,
		fmt.Sprintf("%s_%s", attachment.ID, attachment.FileName))

	limited := io.LimitReader(r, s.maxSize+1)
	if _, err := s.files.SaveStream(attachment.StoragePath, limited); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}
	if err := s.repo.Create(ctx, attachment); err != nil {
		// Orphaned files are cleaned up by CleanupOlderThan; best effort here.
		if cleanupErr := s.files.Delete(attachment.StoragePath); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned attachment file",
				zap.String("path", attachment.StoragePath),
				zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attachment metadata")
	}

	s.emitAudit(ctx, actor, entityType, entityID, attachment.FileName)
	return attachment, nil
}

// List returns the attachments recorded against an entity.
func (s *AttachmentService) List(ctx context.Context, entityType models.EntityType, entityID string) ([]models.Attachment, error) {
	finder, ok := s.finders[entityType]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported entity type: %s", entityType))
	}
	if err := finder(ctx, entityID); err != nil {
		return nil, err
	}
	attachments, err := s.repo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attachments")
	}
	return attachments, nil
}

// SignDownload issues a time-limited download token for an attachment.
func (s *AttachmentService) SignDownload(ctx context.Context, id string) (string, time.Time, error) {
	attachment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", time.Time{}, appErrors.ErrNotFound
	}
	token, expiresAt, err := s.signer.Generate(attachment.ID, attachment.StoragePath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return token, expiresAt, nil
}

// OpenByToken validates a download token and opens the underlying file.
// The caller owns the returned handle.
func (s *AttachmentService) OpenByToken(ctx context.Context, token string) (*os.File, *models.Attachment, error) {
	attachmentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	attachment, err := s.repo.GetByID(ctx, attachmentID)
	if err != nil {
		return nil, nil, appErrors.ErrNotFound
	}
	if attachment.StoragePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download token does not match attachment")
	}
	file, err := s.files.Open(attachment.StoragePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open attachment")
	}
	return file, attachment, nil
}

// Delete removes an attachment and its stored file. Managers only.
func (s *AttachmentService) Delete(ctx context.Context, id string, actor Actor) error {
	if !actor.IsManager() {
		return appErrors.ErrForbidden
	}
	attachment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return appErrors.ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attachment")
	}
	if err := s.files.Delete(attachment.StoragePath); err != nil {
		s.logger.Warn("failed to delete attachment file",
			zap.String("path", attachment.StoragePath),
			zap.Error(err))
	}
	return nil
}

func (s *AttachmentService) emitAudit(ctx context.Context, actor Actor, entityType models.EntityType, entityID, fileName string) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     models.AuditActionAttachmentAdd,
		ActorID:    actor.ID,
		Reason:     optionalString(fileName),
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log",
			zap.String("entity_id", entityID),
			zap.String("action", models.AuditActionAttachmentAdd),
			zap.Error(err))
	}
}
