package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/dto"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
)

// Per-entity summary keys. Each entity service invalidates its own
// hse:<entity>:* pattern on every write, so a hazard write never evicts the
// license or training numbers.
const (
	hazardSummaryKey   = "hse:hazard:summary"
	licenseSummaryKey  = "hse:license:summary"
	trainingSummaryKey = "hse:training:summary"
)

type hazardSummarizer interface {
	Summary(ctx context.Context) (*models.HazardSummary, error)
}

type licenseSummarizer interface {
	Summary(ctx context.Context) (*models.LicenseSummary, error)
}

type trainingSummarizer interface {
	Summary(ctx context.Context) (*models.TrainingSummary, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the cross-entity compliance summary. Counts
// always cover the full collections; the composed payload is cached briefly
// and recomputed on demand when the caller asks for fresh numbers.
type DashboardService struct {
	hazards   hazardSummarizer
	licenses  licenseSummarizer
	trainings trainingSummarizer
	cache     *CacheService
	logger    *zap.Logger
	cfg       DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Hazards   hazardSummarizer
	Licenses  licenseSummarizer
	Trainings trainingSummarizer
	Cache     *CacheService
	Logger    *zap.Logger
	Config    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		hazards:   params.Hazards,
		licenses:  params.Licenses,
		trainings: params.Trainings,
		cache:     params.Cache,
		logger:    logger,
		cfg:       cfg,
	}
}

// Summary returns the combined compliance summary and whether it was served
// entirely from cache. refresh forces a recomputation; audit-sensitive callers
// use it to guarantee current numbers. Each entity summary is cached under its
// own key, so a write to one register only forces that register's recount.
func (s *DashboardService) Summary(ctx context.Context, refresh bool) (*dto.DashboardSummaryResponse, bool, error) {
	hazards, hazardsHit, err := cachedSummary(ctx, s, hazardSummaryKey, refresh, s.hazards.Summary)
	if err != nil {
		return nil, false, err
	}
	licenses, licensesHit, err := cachedSummary(ctx, s, licenseSummaryKey, refresh, s.licenses.Summary)
	if err != nil {
		return nil, false, err
	}
	trainings, trainingsHit, err := cachedSummary(ctx, s, trainingSummaryKey, refresh, s.trainings.Summary)
	if err != nil {
		return nil, false, err
	}
	summary := &dto.DashboardSummaryResponse{
		Hazards:   *hazards,
		Licenses:  *licenses,
		Trainings: *trainings,
	}
	return summary, hazardsHit && licensesHit && trainingsHit, nil
}

// cachedSummary serves one entity summary from cache or recomputes it. A
// broken cache degrades to recomputation, never to a failed request.
func cachedSummary[T any](ctx context.Context, s *DashboardService, key string, refresh bool, compute func(context.Context) (*T, error)) (*T, bool, error) {
	if s.cache != nil && !refresh {
		var cached T
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("summary cache read failed", zap.String("key", key), zap.Error(err))
		} else if hit {
			return &cached, true, nil
		}
	}
	value, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("summary cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return value, false, nil
}
