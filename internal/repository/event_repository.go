package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/mini-event-api/internal/models"
)

const eventColumns = "id, title, event_date, event_time, notes, category, category_source, archived, created_at, updated_at"

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// EventRepository persists events.
type EventRepository struct {
	db      *sqlx.DB
	metrics queryObserver
}

// NewEventRepository constructs an event repository.
func NewEventRepository(db *sqlx.DB, metrics queryObserver) *EventRepository {
	return &EventRepository{db: db, metrics: metrics}
}

func (r *EventRepository) observe(label string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

// List returns one page of events matching filter plus the total match count.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	defer r.observe("events.list", time.Now())
	filter = filter.Normalize()
	whereClause, args := buildEventWhere(filter)

	query := fmt.Sprintf("SELECT %s FROM events WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		eventColumns, whereClause, orderClause(filter), filter.Limit, filter.Offset())
	events := []models.Event{}
	if err := r.db.SelectContext(ctx, &events, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(countQuery), args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return events, total, nil
}

// ListAll returns every event matching filter, ignoring paging. Used by exports.
func (r *EventRepository) ListAll(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	defer r.observe("events.list_all", time.Now())
	filter = filter.Normalize()
	whereClause, args := buildEventWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM events WHERE %s ORDER BY %s", eventColumns, whereClause, orderClause(filter))
	events := []models.Event{}
	if err := r.db.SelectContext(ctx, &events, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list all events: %w", err)
	}
	return events, nil
}

// GetByID fetches an event. It returns sql.ErrNoRows when absent.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	defer r.observe("events.get", time.Now())
	query := r.db.Rebind("SELECT " + eventColumns + " FROM events WHERE id = ?")
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, missingOnMalformedID(err)
	}
	return &event, nil
}

// Create inserts an event, assigning ID and timestamps.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	defer r.observe("events.create", time.Now())
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	event.SearchText = event.BuildSearchText()
	query := `INSERT INTO events (id, title, event_date, event_time, notes, category, category_source, archived, search_text, created_at, updated_at)
VALUES (:id, :title, :event_date, :event_time, :notes, :category, :category_source, :archived, :search_text, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns of an event.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	defer r.observe("events.update", time.Now())
	event.UpdatedAt = time.Now().UTC()
	event.SearchText = event.BuildSearchText()
	query := `UPDATE events SET title = :title, event_date = :event_date, event_time = :event_time, notes = :notes,
category = :category, category_source = :category_source, archived = :archived, search_text = :search_text,
updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, event)
	if err != nil {
		return missingOnMalformedID(fmt.Errorf("update event: %w", err))
	}
	return expectAffected(res)
}

// SetArchived updates only the archived flag.
func (r *EventRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	defer r.observe("events.set_archived", time.Now())
	query := r.db.Rebind("UPDATE events SET archived = ?, updated_at = ? WHERE id = ?")
	res, err := r.db.ExecContext(ctx, query, archived, time.Now().UTC(), id)
	if err != nil {
		return missingOnMalformedID(fmt.Errorf("set event archived: %w", err))
	}
	return expectAffected(res)
}

// Delete removes an event. It returns sql.ErrNoRows when nothing was deleted.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	defer r.observe("events.delete", time.Now())
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM events WHERE id = ?"), id)
	if err != nil {
		return missingOnMalformedID(fmt.Errorf("delete event: %w", err))
	}
	return expectAffected(res)
}

// ArchiveBefore archives active events scheduled strictly before date+clock.
func (r *EventRepository) ArchiveBefore(ctx context.Context, date, clock string) (int64, error) {
	defer r.observe("events.archive_before", time.Now())
	query := r.db.Rebind(`UPDATE events SET archived = ?, updated_at = ?
WHERE archived = ? AND (event_date < ? OR (event_date = ? AND event_time < ?))`)
	res, err := r.db.ExecContext(ctx, query, true, time.Now().UTC(), false, date, date, clock)
	if err != nil {
		return 0, fmt.Errorf("archive past events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive past events rows: %w", err)
	}
	return n, nil
}

// BackfillSearchText fills search_text for rows written before the column
// existed. It returns the number of rows updated.
func (r *EventRepository) BackfillSearchText(ctx context.Context) (int, error) {
	defer r.observe("events.backfill_search", time.Now())
	var stale []models.Event
	query := r.db.Rebind("SELECT id, title, notes FROM events WHERE search_text = ?")
	if err := r.db.SelectContext(ctx, &stale, query, ""); err != nil {
		return 0, fmt.Errorf("list events without search text: %w", err)
	}
	update := r.db.Rebind("UPDATE events SET search_text = ? WHERE id = ?")
	for _, event := range stale {
		if _, err := r.db.ExecContext(ctx, update, event.BuildSearchText(), event.ID); err != nil {
			return 0, fmt.Errorf("backfill search text: %w", err)
		}
	}
	return len(stale), nil
}

// Ping checks database connectivity for the readiness check.
func (r *EventRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func buildEventWhere(filter models.EventFilter) (string, []interface{}) {
	where := []string{"1=1"}
	args := []interface{}{}

	switch filter.Archived {
	case models.ArchivedOnly:
		where = append(where, "archived = ?")
		args = append(args, true)
	case models.ArchivedInclude:
	default:
		where = append(where, "archived = ?")
		args = append(args, false)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Search != "" {
		// search_text is folded in Go; SQL LOWER only folds ASCII on SQLite.
		where = append(where, `search_text LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(models.FoldSearch(filter.Search))+"%")
	}
	if filter.DateFrom != "" {
		where = append(where, "event_date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		where = append(where, "event_date <= ?")
		args = append(args, filter.DateTo)
	}
	return strings.Join(where, " AND "), args
}

func orderClause(filter models.EventFilter) string {
	dir := "ASC"
	if filter.SortOrder == models.SortDesc {
		dir = "DESC"
	}
	switch filter.SortBy {
	case models.SortByTitle:
		return fmt.Sprintf("LOWER(title) %s, event_date ASC, event_time ASC", dir)
	case models.SortByCreatedAt:
		return fmt.Sprintf("created_at %s, id ASC", dir)
	default:
		return fmt.Sprintf("event_date %[1]s, event_time %[1]s, created_at ASC", dir)
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// missingOnMalformedID reports ids Postgres cannot cast to uuid as absent
// rows, matching what SQLite answers for the same lookup.
func missingOnMalformedID(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "invalid_text_representation" {
		return sql.ErrNoRows
	}
	return err
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
