package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mini-event-api/internal/models"
)

var eventRowColumns = []string{"id", "title", "event_date", "event_time", "notes", "category", "category_source", "archived", "created_at", "updated_at"}

func newEventRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

type observerStub struct {
	labels []string
}

func (o *observerStub) ObserveDBQuery(label string, duration time.Duration) {
	o.labels = append(o.labels, label)
}

func TestEventRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	obs := &observerStub{}
	repo := NewEventRepository(db, obs)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	notes := "bring slides"
	event := &models.Event{
		Title:          "Quarterly review",
		Date:           "2025-08-15",
		Time:           "09:30",
		Notes:          &notes,
		Category:       models.CategoryWork,
		CategorySource: models.CategorySourceAuto,
	}
	require.NoError(t, repo.Create(context.Background(), event))
	require.NotEmpty(t, event.ID)
	require.False(t, event.CreatedAt.IsZero())

	now := time.Now()
	rows := sqlmock.NewRows(eventRowColumns).
		AddRow(event.ID, event.Title, event.Date, event.Time, notes, "Work", "auto", false, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, event_date, event_time")).
		WithArgs(event.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, found.ID)
	assert.Equal(t, models.CategoryWork, found.Category)
	assert.Equal(t, "bring slides", found.NotesText())
	assert.Equal(t, []string{"events.create", "events.get"}, obs.labels)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db, nil)
	now := time.Now()
	rows := sqlmock.NewRows(eventRowColumns).
		AddRow("evt-1", "Team standup", "2025-08-15", "09:00", nil, "Work", "auto", false, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, event_date, event_time, notes, category, category_source, archived, created_at, updated_at FROM events WHERE 1=1 AND archived = ? AND category = ? AND search_text LIKE ? ESCAPE")).
		WithArgs(false, "Work", "%stand\\_up%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM events WHERE 1=1 AND archived = ?")).
		WithArgs(false, "Work", "%stand\\_up%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	events, total, err := repo.List(context.Background(), models.EventFilter{
		Search:   "Stand_up",
		Category: models.CategoryWork,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, total)
	assert.Nil(t, events[0].Notes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListArchivedOnlyOrdersDescending(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND archived = ? AND event_date >= ? ORDER BY event_date DESC, event_time DESC, created_at ASC LIMIT 5 OFFSET 5")).
		WithArgs(true, "2025-01-01").
		WillReturnRows(sqlmock.NewRows(eventRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM events")).
		WithArgs(true, "2025-01-01").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))

	events, total, err := repo.List(context.Background(), models.EventFilter{
		Archived:  models.ArchivedOnly,
		DateFrom:  "2025-01-01",
		SortOrder: models.SortDesc,
		Page:      2,
		Limit:     5,
	})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 6, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db, nil)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE id = ?")).
		WithArgs("evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "evt-1"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE id = ?")).
		WithArgs("evt-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "evt-2"), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryArchiveBefore(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db, nil)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET archived = ?, updated_at = ?")).
		WithArgs(true, sqlmock.AnyArg(), false, "2025-07-01", "2025-07-01", "12:00").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.ArchiveBefore(context.Background(), "2025-07-01", "12:00")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositorySetArchivedMissing(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db, nil)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET archived = ?")).
		WithArgs(true, sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.SetArchived(context.Background(), "missing", true), sql.ErrNoRows)
}

func TestOrderClause(t *testing.T) {
	assert.Equal(t, "LOWER(title) ASC, event_date ASC, event_time ASC", orderClause(models.EventFilter{SortBy: models.SortByTitle}.Normalize()))
	assert.Equal(t, "created_at DESC, id ASC", orderClause(models.EventFilter{SortBy: models.SortByCreatedAt, SortOrder: models.SortDesc}))
	assert.Equal(t, `50\%\\off`, escapeLike(`50%\off`))
}

func TestEventRepositoryMalformedIDIsMissing(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db, nil)
	invalidUUID := &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}
	mock.ExpectQuery(regexp.QuoteMeta("FROM events WHERE id = ?")).WithArgs("abc").WillReturnError(invalidUUID)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE id = ?")).WithArgs("abc").WillReturnError(invalidUUID)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET archived = ?")).WillReturnError(invalidUUID)

	_, err := repo.GetByID(context.Background(), "abc")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.ErrorIs(t, repo.Delete(context.Background(), "abc"), sql.ErrNoRows)
	assert.ErrorIs(t, repo.SetArchived(context.Background(), "abc", true), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryOtherDriverErrorsPassThrough(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db, nil)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events")).WillReturnError(&pq.Error{Code: "57014"})

	err := repo.Delete(context.Background(), "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, sql.ErrNoRows)
}
