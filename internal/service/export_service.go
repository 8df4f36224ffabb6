package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mini-event-api/internal/models"
	appErrors "github.com/noah-isme/mini-event-api/pkg/errors"
	"github.com/noah-isme/mini-event-api/pkg/export"
	"github.com/noah-isme/mini-event-api/pkg/storage"
)

type eventLister interface {
	ListAll(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type icsRenderer interface {
	Render(events []models.Event) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportFile is a rendered export held in memory.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Count       int
}

// ExportResult captures a stored export and its signed download link.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders event lists and persists rendered files.
type ExportService struct {
	events  eventLister
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	ics     icsRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers get defaults.
func NewExportService(events eventLister, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, ics icsRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if ics == nil {
		ics = export.NewICSExporter(time.UTC, time.Hour)
	}
	return &ExportService{
		events:  events,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		ics:     ics,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Render loads the events matching filter and renders them in format.
func (s *ExportService) Render(ctx context.Context, format models.ExportFormat, filter models.EventFilter) (*ExportFile, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be one of csv, pdf, ics")
	}
	events, err := s.events.ListAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(export.EventDataset(events))
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(export.EventDataset(events), exportTitle(filter))
	case models.ExportFormatICS:
		payload, err = s.ics.Render(events)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("events_%s.%s", s.now().UTC().Format("20060102_150405"), format),
		ContentType: format.ContentType(),
		Data:        payload,
		Count:       len(events),
	}, nil
}

// Generate renders the job's export, stores it and signs a download token.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	file, err := s.Render(ctx, job.Format, job.Filter.EventFilter)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(fmt.Sprintf("%s/%s", job.ID, file.Filename), file.Data)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	s.logger.Debug("export stored", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("events", file.Count))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.DownloadToken, error) {
	return s.signer.Parse(token, allowExpired)
}

// Read returns the stored file content.
func (s *ExportService) Read(relPath string) ([]byte, error) {
	return s.storage.Read(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, or the configured result TTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func exportTitle(filter models.EventFilter) string {
	parts := []string{"Events"}
	if filter.Category != "" {
		parts = append(parts, string(filter.Category))
	}
	if filter.Search != "" {
		parts = append(parts, fmt.Sprintf("matching %q", filter.Search))
	}
	switch {
	case filter.DateFrom != "" && filter.DateTo != "":
		parts = append(parts, fmt.Sprintf("%s to %s", filter.DateFrom, filter.DateTo))
	case filter.DateFrom != "":
		parts = append(parts, "from "+filter.DateFrom)
	case filter.DateTo != "":
		parts = append(parts, "until "+filter.DateTo)
	}
	return strings.Join(parts, " ")
}
