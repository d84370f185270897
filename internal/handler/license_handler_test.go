package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/dto"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/lifecycle"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/service"
	appErrors "github.com/risky-biz/harmoni-hse-360-sub005/pkg/errors"
)

type fakeLicenseSrv struct {
	resp       *dto.LicenseResponse
	condition  *models.LicenseCondition
	err        error
	lastID     string
	lastAction lifecycle.Action
	lastReason string
	lastActor  service.Actor
	lastFilter models.LicenseFilter
}

func (f *fakeLicenseSrv) Register(_ context.Context, _ dto.CreateLicenseRequest, actor service.Actor) (*dto.LicenseResponse, error) {
	f.lastActor = actor
	return f.resp, f.err
}

func (f *fakeLicenseSrv) Get(_ context.Context, id string, _ service.Actor) (*dto.LicenseResponse, error) {
	f.lastID = id
	return f.resp, f.err
}

func (f *fakeLicenseSrv) Update(_ context.Context, id string, _ dto.UpdateLicenseRequest, _ service.Actor) (*dto.LicenseResponse, error) {
	f.lastID = id
	return f.resp, f.err
}

func (f *fakeLicenseSrv) Delete(_ context.Context, id string, _ service.Actor) error {
	f.lastID = id
	return f.err
}

func (f *fakeLicenseSrv) Execute(_ context.Context, id string, action lifecycle.Action, reason string, actor service.Actor) (*dto.LicenseResponse, error) {
	f.lastID = id
	f.lastAction = action
	f.lastReason = reason
	f.lastActor = actor
	return f.resp, f.err
}

func (f *fakeLicenseSrv) AddCondition(_ context.Context, licenseID string, _ dto.CreateLicenseConditionRequest, _ service.Actor) (*models.LicenseCondition, error) {
	f.lastID = licenseID
	return f.condition, f.err
}

func (f *fakeLicenseSrv) CompleteCondition(_ context.Context, licenseID, _ string, _ service.Actor) error {
	f.lastID = licenseID
	return f.err
}

func (f *fakeLicenseSrv) List(_ context.Context, filter models.LicenseFilter, _ service.Actor) ([]dto.LicenseResponse, *models.Pagination, error) {
	f.lastFilter = filter
	return nil, nil, f.err
}

func licenseActionContext(body, action string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	if body == "" {
		c.Request = httptest.NewRequest(http.MethodPost, "/licenses/lic-1/actions/"+action, nil)
	} else {
		c.Request = httptest.NewRequest(http.MethodPost, "/licenses/lic-1/actions/"+action, strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
	}
	c.Params = gin.Params{{Key: "id", Value: "lic-1"}, {Key: "action", Value: action}}
	return c, rec
}

func TestLicenseHandlerActionRoutesAction(t *testing.T) {
	service := &fakeLicenseSrv{
		resp: &dto.LicenseResponse{License: models.License{ID: "lic-1", Status: models.LicenseStatusSuspended}},
	}
	handler := NewLicenseHandler(service)

	c, rec := licenseActionContext(`{"reason":"pending safety audit"}`, "Suspend")
	authenticate(c, models.RoleSafetyManager)

	handler.Action(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lic-1", service.lastID)
	assert.Equal(t, lifecycle.ActionSuspend, service.lastAction)
	assert.Equal(t, "pending safety audit", service.lastReason)
	assert.Equal(t, "mgr-1", service.lastActor.ID)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "lic-1", envelope.Data["id"])
	assert.Equal(t, string(models.LicenseStatusSuspended), envelope.Data["status"])
}

func TestLicenseHandlerActionEmptyBody(t *testing.T) {
	service := &fakeLicenseSrv{resp: &dto.LicenseResponse{}}
	handler := NewLicenseHandler(service)

	c, rec := licenseActionContext("", "submit")
	authenticate(c, models.RoleSafetyManager)

	handler.Action(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, lifecycle.ActionSubmit, service.lastAction)
	assert.Empty(t, service.lastReason)
}

func TestLicenseHandlerActionInvalidTransition(t *testing.T) {
	service := &fakeLicenseSrv{
		err: appErrors.Clone(appErrors.ErrInvalidTransition, "approve is not allowed from status ACTIVE"),
	}
	handler := NewLicenseHandler(service)

	c, rec := licenseActionContext("", "approve")
	authenticate(c, models.RoleAdmin)

	handler.Action(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, envelope.Error["code"])
	assert.Contains(t, envelope.Error["message"], "approve")
}

func TestLicenseHandlerActionMalformedPayload(t *testing.T) {
	service := &fakeLicenseSrv{resp: &dto.LicenseResponse{}}
	handler := NewLicenseHandler(service)

	c, rec := licenseActionContext(`{"reason":`, "suspend")
	authenticate(c, models.RoleSafetyManager)

	handler.Action(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, service.lastAction)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, appErrors.ErrValidation.Code, envelope.Error["code"])
}

func TestLicenseHandlerCreateRejectsBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewLicenseHandler(&fakeLicenseSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/licenses", strings.NewReader("{"))
	c.Request.Header.Set("Content-Type", "application/json")
	authenticate(c, models.RoleSafetyManager)

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLicenseHandlerRequiresClaims(t *testing.T) {
	service := &fakeLicenseSrv{resp: &dto.LicenseResponse{}}
	handler := NewLicenseHandler(service)

	c, rec := licenseActionContext("", "submit")

	handler.Action(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, service.lastAction)
}

func TestLicenseHandlerListParsesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeLicenseSrv{}
	handler := NewLicenseHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/licenses?status=active&mine=true&page=2&pageSize=5", nil)
	authenticate(c, models.RoleEmployee)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	if assert.NotNil(t, service.lastFilter.Status) {
		assert.Equal(t, models.LicenseStatusActive, *service.lastFilter.Status)
	}
	assert.True(t, service.lastFilter.OnlyMine)
	assert.Equal(t, 2, service.lastFilter.Page)
	assert.Equal(t, 5, service.lastFilter.PageSize)
}
