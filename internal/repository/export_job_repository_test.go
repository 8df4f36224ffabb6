package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mini-event-api/internal/models"
)

func TestExportJobRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewExportJobRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO export_jobs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ExportJob{
		Format: models.ExportFormatICS,
		Filter: models.ExportFilter{EventFilter: models.EventFilter{Category: models.CategoryPersonal}},
		Status: models.ExportStatusQueued,
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)

	rows := sqlmock.NewRows([]string{"id", "format", "filter", "status", "progress", "result_url", "error_message", "created_by", "created_at", "finished_at"}).
		AddRow(job.ID, "ics", `{"category":"Personal"}`, "QUEUED", 0, nil, nil, "", time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, format, filter, status")).
		WithArgs(job.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatICS, found.Format)
	assert.Equal(t, models.CategoryPersonal, found.Filter.Category)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewExportJobRepository(db)
	status := models.ExportStatusFailed
	msg := "render failed"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE export_jobs SET status = ?, error_message = ? WHERE id = ?")).
		WithArgs("FAILED", "render failed", "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateExportJobParams{Status: &status, ErrorMessage: &msg}))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE export_jobs SET status = ?")).
		WithArgs("FAILED", "job-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Update(context.Background(), "job-2", UpdateExportJobParams{Status: &status}), sql.ErrNoRows)

	require.NoError(t, repo.Update(context.Background(), "job-3", UpdateExportJobParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobRepositoryMalformedIDIsMissing(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewExportJobRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM export_jobs WHERE id = ?")).
		WithArgs("not-a-uuid").
		WillReturnError(&pq.Error{Code: "22P02"})

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestExportJobRepositoryListUnfinishedIncludesProcessing(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewExportJobRepository(db)
	rows := sqlmock.NewRows([]string{"id", "format", "filter", "status", "progress", "result_url", "error_message", "created_by", "created_at", "finished_at"}).
		AddRow("job-1", "csv", `{}`, "QUEUED", 0, nil, nil, "", time.Now(), nil).
		AddRow("job-2", "pdf", `{}`, "PROCESSING", 10, nil, nil, "", time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM export_jobs WHERE status IN (?, ?) ORDER BY created_at ASC LIMIT 100")).
		WithArgs("QUEUED", "PROCESSING").
		WillReturnRows(rows)

	jobs, err := repo.ListUnfinished(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, models.ExportStatusProcessing, jobs[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
