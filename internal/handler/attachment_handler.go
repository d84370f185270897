package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/service"
	appErrors "github.com/risky-biz/harmoni-hse-360-sub005/pkg/errors"
	"github.com/risky-biz/harmoni-hse-360-sub005/pkg/response"
)

type attachmentService interface {
	Upload(ctx context.Context, entityType models.EntityType, entityID, fileName, contentType string, size int64, r io.Reader, actor service.Actor) (*models.Attachment, error)
	List(ctx context.Context, entityType models.EntityType, entityID string) ([]models.Attachment, error)
	SignDownload(ctx context.Context, id string) (string, time.Time, error)
	OpenByToken(ctx context.Context, token string) (*os.File, *models.Attachment, error)
	Delete(ctx context.Context, id string, actor service.Actor) error
}

// AttachmentHandler exposes file upload and signed download endpoints. The
// upload and list handlers are bound to an entity type at route registration
// so the same handler serves hazards, licenses and trainings.
type AttachmentHandler struct {
	service attachmentService
}

// NewAttachmentHandler constructs the handler.
func NewAttachmentHandler(service attachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: service}
}

// Upload godoc
// @Summary Upload an attachment for an entity
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Entity ID"
// @Param file formData file true "File to attach"
// @Success 201 {object} response.Envelope
// @Router /hazards/{id}/attachments [post]
func (h *AttachmentHandler) Upload(entityType models.EntityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file form field is required"))
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file"))
			return
		}
		defer file.Close() //nolint:errcheck

		contentType := fileHeader.Header.Get("Content-Type")
		attachment, err := h.service.Upload(c.Request.Context(), entityType, c.Param("id"),
			fileHeader.Filename, contentType, fileHeader.Size, file, actor)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusCreated, attachment, nil)
	}
}

// List godoc
// @Summary List attachments for an entity
// @Tags Attachments
// @Produce json
// @Param id path string true "Entity ID"
// @Success 200 {object} response.Envelope
// @Router /hazards/{id}/attachments [get]
func (h *AttachmentHandler) List(entityType models.EntityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := actorFromContext(c); !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		attachments, err := h.service.List(c.Request.Context(), entityType, c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, attachments, nil)
	}
}

// SignDownload godoc
// @Summary Issue a signed download URL for an attachment
// @Tags Attachments
// @Produce json
// @Param id path string true "Attachment ID"
// @Success 200 {object} response.Envelope
// @Router /attachments/{id}/download-url [post]
func (h *AttachmentHandler) SignDownload(c *gin.Context) {
	if _, ok := actorFromContext(c); !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	token, expiresAt, err := h.service.SignDownload(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"url":        fmt.Sprintf("/api/v1/attachments/download?token=%s", token),
		"expires_at": expiresAt,
	}, nil)
}

// Download godoc
// @Summary Download an attachment with a signed token
// @Tags Attachments
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /attachments/download [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, attachment, err := h.service.OpenByToken(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.FileName))
	c.Header("Content-Type", attachment.ContentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		// Headers are already out; nothing left to do but abort the stream.
		c.Abort()
	}
}

// Delete godoc
// @Summary Delete an attachment
// @Tags Attachments
// @Param id path string true "Attachment ID"
// @Success 204
// @Router /attachments/{id} [delete]
func (h *AttachmentHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
