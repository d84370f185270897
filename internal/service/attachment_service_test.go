package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
	appErrors "github.com/risky-biz/harmoni-hse-360-sub005/pkg/errors"
	"github.com/risky-biz/harmoni-hse-360-sub005/pkg/storage"
)

type stubAttachmentStore struct {
	attachments map[string]*models.Attachment
	createErr   error
}

func (s *stubAttachmentStore) Create(ctx context.Context, attachment *models.Attachment) error {
	if s.createErr != nil {
		return s.createErr
	}
	if s.attachments == nil {
		s.attachments = make(map[string]*models.Attachment)
	}
	copy := *attachment
	s.attachments[attachment.ID] = &copy
	return nil
}

func (s *stubAttachmentStore) GetByID(ctx context.Context, id string) (*models.Attachment, error) {
	attachment, ok := s.attachments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *attachment
	return &copy, nil
}

func (s *stubAttachmentStore) ListByEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]models.Attachment, error) {
	var out []models.Attachment
	for _, a := range s.attachments {
		if a.EntityType == entityType && a.EntityID == entityID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *stubAttachmentStore) Delete(ctx context.Context, id string) error {
	if _, ok := s.attachments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.attachments, id)
	return nil
}

func acceptAll(ctx context.Context, id string) error { return nil }

func newAttachmentService(t *testing.T, repo *stubAttachmentStore, audit auditWriter, cfg AttachmentServiceConfig) *AttachmentService {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	finders := map[models.EntityType]EntityFinder{models.EntityHazard: acceptAll}
	return NewAttachmentService(repo, files, signer, audit, finders, zap.NewNop(), cfg)
}

func TestAttachmentUpload(t *testing.T) {
	repo := &stubAttachmentStore{}
	audit := &stubAuditWriter{}
	svc := newAttachmentService(t, repo, audit, AttachmentServiceConfig{})

	actor := Actor{ID: "emp-1", Role: models.RoleEmployee}
	content := "inspection photo bytes"
	attachment, err := svc.Upload(context.Background(), models.EntityHazard, "hz-1", "photo.jpg", "image/jpeg", int64(len(content)), strings.NewReader(content), actor)
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", attachment.FileName)
	assert.Equal(t, "emp-1", attachment.UploadedBy)
	assert.Contains(t, repo.attachments, attachment.ID)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionAttachmentAdd, audit.entries[0].Action)

	token, expiresAt, err := svc.SignDownload(context.Background(), attachment.ID)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	file, stored, err := svc.OpenByToken(context.Background(), token)
	require.NoError(t, err)
	defer file.Close()
	raw, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, content, string(raw))
	assert.Equal(t, attachment.ID, stored.ID)
}

func TestAttachmentUploadRejectsOversized(t *testing.T) {
	svc := newAttachmentService(t, &stubAttachmentStore{}, nil, AttachmentServiceConfig{MaxFileSizeBytes: 4})

	_, err := svc.Upload(context.Background(), models.EntityHazard, "hz-1", "big.bin", "application/octet-stream", 10, strings.NewReader("0123456789"), Actor{ID: "emp-1", Role: models.RoleEmployee})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttachmentUploadRejectsContentType(t *testing.T) {
	svc := newAttachmentService(t, &stubAttachmentStore{}, nil, AttachmentServiceConfig{AllowedMIMEs: []string{"application/pdf"}})

	_, err := svc.Upload(context.Background(), models.EntityHazard, "hz-1", "notes.txt", "text/plain", 5, strings.NewReader("notes"), Actor{ID: "emp-1", Role: models.RoleEmployee})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttachmentUploadUnknownEntityType(t *testing.T) {
	svc := newAttachmentService(t, &stubAttachmentStore{}, nil, AttachmentServiceConfig{})

	_, err := svc.Upload(context.Background(), models.EntityUser, "u-1", "f.txt", "text/plain", 1, strings.NewReader("x"), Actor{ID: "emp-1", Role: models.RoleEmployee})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttachmentOpenByTokenRejectsTampered(t *testing.T) {
	svc := newAttachmentService(t, &stubAttachmentStore{}, nil, AttachmentServiceConfig{})

	_, _, err := svc.OpenByToken(context.Background(), "not.a.valid.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAttachmentDeleteRequiresManager(t *testing.T) {
	repo := &stubAttachmentStore{attachments: map[string]*models.Attachment{"att-1": {ID: "att-1"}}}
	svc := newAttachmentService(t, repo, nil, AttachmentServiceConfig{})

	err := svc.Delete(context.Background(), "att-1", Actor{ID: "emp-1", Role: models.RoleEmployee})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Contains(t, repo.attachments, "att-1")

	err = svc.Delete(context.Background(), "att-1", Actor{ID: "mgr-1", Role: models.RoleSafetyManager})
	require.NoError(t, err)
	assert.NotContains(t, repo.attachments, "att-1")
}
