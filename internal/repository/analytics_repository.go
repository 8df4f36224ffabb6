package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mini-event-api/internal/models"
)

// AnalyticsRepository exposes read-optimised aggregate queries over events.
type AnalyticsRepository struct {
	db      *sqlx.DB
	metrics queryObserver
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB, metrics queryObserver) *AnalyticsRepository {
	return &AnalyticsRepository{db: db, metrics: metrics}
}

func (r *AnalyticsRepository) observe(label string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

// EventCounts groups events by category and archived flag. today and clock
// are the caller's wall clock; Today counts events on that date and Overdue
// counts those whose start lies before it.
func (r *AnalyticsRepository) EventCounts(ctx context.Context, today, clock string) ([]models.EventCountRow, error) {
	defer r.observe("analytics.event_counts", time.Now())
	query := `SELECT category, archived, COUNT(*) AS total,
		SUM(CASE WHEN event_date = ? THEN 1 ELSE 0 END) AS today,
		SUM(CASE WHEN event_date < ? OR (event_date = ? AND event_time < ?) THEN 1 ELSE 0 END) AS overdue
		FROM events
		GROUP BY category, archived
		ORDER BY category, archived`

	rows := []models.EventCountRow{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), today, today, today, clock); err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	return rows, nil
}

// Upcoming returns the next active events starting at or after today+clock.
func (r *AnalyticsRepository) Upcoming(ctx context.Context, today, clock string, limit int) ([]models.Event, error) {
	defer r.observe("analytics.upcoming", time.Now())
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT %s FROM events
		WHERE archived = ? AND (event_date > ? OR (event_date = ? AND event_time >= ?))
		ORDER BY event_date ASC, event_time ASC, created_at ASC
		LIMIT %d`, eventColumns, limit)

	events := []models.Event{}
	if err := r.db.SelectContext(ctx, &events, r.db.Rebind(query), false, today, today, clock); err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return events, nil
}
