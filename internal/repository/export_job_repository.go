package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mini-event-api/internal/models"
)

const exportJobColumns = "id, format, filter, status, progress, result_url, error_message, created_by, created_at, finished_at"

// ExportJobRepository persists asynchronous export jobs.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository constructs the repository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

// UpdateExportJobParams holds optional column updates.
type UpdateExportJobParams struct {
	Status       *models.ExportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Create inserts a new job.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO export_jobs (id, format, filter, status, progress, result_url, error_message, created_by, created_at, finished_at)
VALUES (:id, :format, :filter, :status, :progress, :result_url, :error_message, :created_by, :created_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// GetByID returns a job or sql.ErrNoRows.
func (r *ExportJobRepository) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	var job models.ExportJob
	query := r.db.Rebind("SELECT " + exportJobColumns + " FROM export_jobs WHERE id = ?")
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, missingOnMalformedID(err)
	}
	return &job, nil
}

// Update applies the non-nil params.
func (r *ExportJobRepository) Update(ctx context.Context, id string, params UpdateExportJobParams) error {
	sets := []string{}
	args := []interface{}{}
	if params.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*params.Status))
	}
	if params.Progress != nil {
		sets = append(sets, "progress = ?")
		args = append(args, *params.Progress)
	}
	if params.ResultURL != nil {
		sets = append(sets, "result_url = ?")
		args = append(args, *params.ResultURL)
	}
	if params.ErrorMessage != nil {
		sets = append(sets, "error_message = ?")
		args = append(args, *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		sets = append(sets, "finished_at = ?")
		args = append(args, *params.FinishedAt)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := r.db.Rebind(fmt.Sprintf("UPDATE export_jobs SET %s WHERE id = ?", strings.Join(sets, ", ")))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	return expectAffected(res)
}

// ListUnfinished returns queued and processing jobs, oldest first.
func (r *ExportJobRepository) ListUnfinished(ctx context.Context, limit int) ([]models.ExportJob, error) {
	query := r.db.Rebind(fmt.Sprintf("SELECT %s FROM export_jobs WHERE status IN (?, ?) ORDER BY created_at ASC LIMIT %d", exportJobColumns, limit))
	jobs := []models.ExportJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, string(models.ExportStatusQueued), string(models.ExportStatusProcessing)); err != nil {
		return nil, fmt.Errorf("list unfinished export jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore returns finished jobs older than cutoff.
func (r *ExportJobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	query := r.db.Rebind(fmt.Sprintf("SELECT %s FROM export_jobs WHERE status = ? AND finished_at < ? ORDER BY finished_at ASC LIMIT %d", exportJobColumns, limit))
	jobs := []models.ExportJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, string(models.ExportStatusFinished), cutoff); err != nil {
		return nil, fmt.Errorf("list finished export jobs: %w", err)
	}
	return jobs, nil
}

// DeleteByID removes a job record.
func (r *ExportJobRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM export_jobs WHERE id = ?"), id); err != nil {
		return fmt.Errorf("delete export job: %w", err)
	}
	return nil
}
