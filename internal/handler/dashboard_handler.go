package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/dto"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/middleware"
	appErrors "github.com/risky-biz/harmoni-hse-360-sub005/pkg/errors"
	"github.com/risky-biz/harmoni-hse-360-sub005/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, refresh bool) (*dto.DashboardSummaryResponse, bool, error)
}

// DashboardHandler wires the compliance summary to HTTP.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Summary godoc
// @Summary Cross-entity compliance summary
// @Tags Dashboard
// @Produce json
// @Param refresh query bool false "Force recomputation, bypassing the cache"
// @Success 200 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	if _, ok := actorFromContext(c); !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.Summary(c.Request.Context(), parseBoolQuery(c.Query("refresh")))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
