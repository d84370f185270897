package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/service"
)

type fakeAuditSrv struct {
	entries    []models.AuditLog
	err        error
	lastFilter models.AuditFilter
}

func (f *fakeAuditSrv) List(_ context.Context, filter models.AuditFilter, _ service.Actor) ([]models.AuditLog, error) {
	f.lastFilter = filter
	return f.entries, f.err
}

func (f *fakeAuditSrv) EntityTrail(_ context.Context, _ models.EntityType, _ string, _ service.Actor) ([]models.AuditLog, error) {
	return f.entries, f.err
}

func TestAuditHandlerListParsesWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeAuditSrv{}
	handler := NewAuditHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/audit-logs?entityType=hazard&limit=25&offset=50", nil)
	authenticate(c, models.RoleAdmin)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.EntityHazard, service.lastFilter.EntityType)
	assert.Equal(t, 25, service.lastFilter.Limit)
	assert.Equal(t, 50, service.lastFilter.Offset)
}

func TestAuditHandlerListRejectsBadWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeAuditSrv{}
	handler := NewAuditHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/audit-logs?limit=abc&offset=-5", nil)
	authenticate(c, models.RoleAdmin)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, service.lastFilter.Limit)
	assert.Equal(t, 0, service.lastFilter.Offset)
}
