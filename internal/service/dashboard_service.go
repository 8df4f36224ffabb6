package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mini-event-api/internal/dto"
	"github.com/noah-isme/mini-event-api/internal/models"
	appErrors "github.com/noah-isme/mini-event-api/pkg/errors"
)

const eventDashboardCachePrefix = "events:dashboard:"

type eventAnalytics interface {
	EventCounts(ctx context.Context, today, clock string) ([]models.EventCountRow, error)
	Upcoming(ctx context.Context, today, clock string, limit int) ([]models.Event, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL            time.Duration
	UpcomingEventsLimit int
	Location            *time.Location
}

// DashboardService composes the overview payload.
type DashboardService struct {
	analytics eventAnalytics
	cache     *CacheService
	logger    *zap.Logger
	now       func() time.Time
	cfg       DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Analytics eventAnalytics
	Cache     *CacheService
	Logger    *zap.Logger
	Config    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.UpcomingEventsLimit <= 0 {
		cfg.UpcomingEventsLimit = 5
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		analytics: params.Analytics,
		cache:     params.Cache,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
	}
}

// Summary returns the dashboard for the current minute and indicates cache utilisation.
func (s *DashboardService) Summary(ctx context.Context) (*dto.DashboardResponse, bool, error) {
	now := s.now().In(s.cfg.Location)
	today := now.Format(models.DateLayout)
	clock := now.Format(models.TimeLayout)

	cacheKey := eventDashboardCachePrefix + today + "T" + clock
	if s.cache.Enabled() {
		var cached dto.DashboardResponse
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.String("key", cacheKey), zap.Error(err))
		} else if hit {
			return &cached, true, nil
		}
	}

	rows, err := s.analytics.EventCounts(ctx, today, clock)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count events")
	}
	upcoming, err := s.analytics.Upcoming(ctx, today, clock, s.cfg.UpcomingEventsLimit)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upcoming events")
	}

	summary := composeDashboard(rows)
	summary.Date = today
	summary.Time = clock
	if upcoming != nil {
		summary.Upcoming = upcoming
	}
	summary.GeneratedAt = now.UTC()

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return summary, false, nil
}

// composeDashboard folds the grouped rows into totals. Every category is
// present in the breakdown, even with zero events.
func composeDashboard(rows []models.EventCountRow) *dto.DashboardResponse {
	byCategory := make(map[models.Category]*dto.CategoryBreakdown, len(models.Categories))
	breakdown := make([]dto.CategoryBreakdown, len(models.Categories))
	for i, category := range models.Categories {
		breakdown[i].Category = category
		byCategory[category] = &breakdown[i]
	}

	var totals dto.DashboardTotals
	for _, row := range rows {
		entry, ok := byCategory[row.Category]
		if !ok {
			entry = byCategory[models.CategoryOther]
		}
		totals.All += row.Total
		if row.Archived {
			totals.Archived += row.Total
			entry.Archived += row.Total
			continue
		}
		totals.Active += row.Total
		totals.Today += row.Today
		totals.Overdue += row.Overdue
		entry.Active += row.Total
	}

	return &dto.DashboardResponse{Totals: totals, ByCategory: breakdown, Upcoming: []models.Event{}}
}
