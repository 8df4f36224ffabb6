package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mini-event-api/internal/dto"
	"github.com/noah-isme/mini-event-api/internal/models"
	appErrors "github.com/noah-isme/mini-event-api/pkg/errors"
)

const (
	eventListCachePrefix = "events:list:"
	// mutations drop every cached view derived from the events table
	eventCachePattern = "events:*"
)

type eventRepository interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
	ListAll(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	GetByID(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	SetArchived(ctx context.Context, id string, archived bool) error
	Delete(ctx context.Context, id string) error
	ArchiveBefore(ctx context.Context, date, clock string) (int64, error)
}

type eventListCacheEntry struct {
	Events     []models.Event     `json:"events"`
	Pagination *models.Pagination `json:"pagination"`
}

// EventService implements event CRUD, search and archiving.
type EventService struct {
	repo       eventRepository
	cache      *CacheService
	classifier *Classifier
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewEventService constructs the service and registers the event validators.
func NewEventService(repo eventRepository, cache *CacheService, classifier *Classifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if classifier == nil {
		classifier = NewClassifier(nil, nil)
	}
	RegisterEventValidations(validate)
	return &EventService{
		repo:       repo,
		cache:      cache,
		classifier: classifier,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// RegisterEventValidations adds the eventdate, eventtime and category tags.
func RegisterEventValidations(validate *validator.Validate) {
	validate.RegisterValidation("eventdate", func(fl validator.FieldLevel) bool {
		return ValidDate(fl.Field().String())
	})
	validate.RegisterValidation("eventtime", func(fl validator.FieldLevel) bool {
		return ValidTime(fl.Field().String())
	})
	validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, err := models.ParseCategory(fl.Field().String())
		return err == nil
	})
}

// ValidDate reports whether raw is a real YYYY-MM-DD calendar date.
func ValidDate(raw string) bool {
	if len(raw) != len(models.DateLayout) {
		return false
	}
	_, err := time.Parse(models.DateLayout, raw)
	return err == nil
}

// ValidTime reports whether raw is a zero padded 24-hour HH:mm clock.
func ValidTime(raw string) bool {
	if len(raw) != len(models.TimeLayout) {
		return false
	}
	_, err := time.Parse(models.TimeLayout, raw)
	return err == nil
}

// List returns one page of events. The bool reports a cache hit.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.Event, *models.Pagination, bool, error) {
	filter = filter.Normalize()
	if err := validateFilter(filter); err != nil {
		return nil, nil, false, err
	}

	key := Key(eventListCachePrefix, filter)
	var cached eventListCacheEntry
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Events, cached.Pagination, true, nil
	}

	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	pagination := models.NewPagination(filter.Page, filter.Limit, total)
	_ = s.cache.Set(ctx, key, eventListCacheEntry{Events: events, Pagination: pagination}, 0)
	return events, pagination, false, nil
}

// Search is List with a required search term.
func (s *EventService) Search(ctx context.Context, term string, filter models.EventFilter) ([]models.Event, *models.Pagination, bool, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil, false, appErrors.Clone(appErrors.ErrValidation, "searchTerm is required")
	}
	filter.Search = term
	return s.List(ctx, filter)
}

// ListAll returns every event matching the filter, unpaged.
func (s *EventService) ListAll(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	filter = filter.Normalize()
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	events, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, nil
}

// Get returns an event by id.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapEventError(err, "failed to get event")
	}
	return event, nil
}

// Create stores a new event, classifying it when no category was supplied.
func (s *EventService) Create(ctx context.Context, req dto.CreateEventRequest) (*models.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	req.Category = strings.TrimSpace(req.Category)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	event := &models.Event{
		Title: req.Title,
		Date:  req.Date,
		Time:  req.Time,
		Notes: normalizeNotes(req.Notes),
	}
	if req.Category == "" {
		event.Category = s.classifier.Classify(event.Title, event.NotesText())
		event.CategorySource = models.CategorySourceAuto
	} else {
		event.Category, _ = models.ParseCategory(req.Category)
		event.CategorySource = models.CategorySourceUser
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	s.metrics.EventCreated(event.Category)
	s.invalidate(ctx)
	s.logger.Debug("event created", zap.String("event_id", event.ID), zap.String("category", string(event.Category)))
	return event, nil
}

// Update applies a partial update.
func (s *EventService) Update(ctx context.Context, id string, req dto.UpdateEventRequest) (*models.Event, error) {
	if req.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}
	trimPtr(req.Title)
	trimPtr(req.Date)
	trimPtr(req.Time)
	trimPtr(req.Category)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if req.Title != nil && *req.Title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title must not be empty")
	}
	if req.Date != nil && *req.Date == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must not be empty")
	}
	if req.Time != nil && *req.Time == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "time must not be empty")
	}

	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapEventError(err, "failed to load event")
	}

	textChanged := false
	if req.Title != nil && *req.Title != event.Title {
		event.Title = *req.Title
		textChanged = true
	}
	if req.Date != nil {
		event.Date = *req.Date
	}
	if req.Time != nil {
		event.Time = *req.Time
	}
	if req.Notes != nil {
		notes := normalizeNotes(req.Notes)
		if event.NotesText() != derefString(notes) {
			textChanged = true
		}
		event.Notes = notes
	}
	switch {
	case req.Category != nil && *req.Category != "":
		event.Category, _ = models.ParseCategory(*req.Category)
		event.CategorySource = models.CategorySourceUser
	case req.Category != nil:
		event.Category = s.classifier.Classify(event.Title, event.NotesText())
		event.CategorySource = models.CategorySourceAuto
	case textChanged && event.CategorySource == models.CategorySourceAuto:
		event.Category = s.classifier.Classify(event.Title, event.NotesText())
	}
	wasArchived := event.Archived
	if req.Archived != nil {
		event.Archived = *req.Archived
	}

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, mapEventError(err, "failed to update event")
	}
	if !wasArchived && event.Archived {
		s.metrics.EventsArchived(1)
	}
	s.invalidate(ctx)
	return event, nil
}

// ToggleArchive flips the archived flag.
func (s *EventService) ToggleArchive(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapEventError(err, "failed to load event")
	}
	return s.setArchived(ctx, event, !event.Archived)
}

// SetArchived archives or restores an event. Repeating the call is a no-op.
func (s *EventService) SetArchived(ctx context.Context, id string, archived bool) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapEventError(err, "failed to load event")
	}
	if event.Archived == archived {
		return event, nil
	}
	return s.setArchived(ctx, event, archived)
}

func (s *EventService) setArchived(ctx context.Context, event *models.Event, archived bool) (*models.Event, error) {
	if err := s.repo.SetArchived(ctx, event.ID, archived); err != nil {
		return nil, mapEventError(err, "failed to archive event")
	}
	event.Archived = archived
	event.UpdatedAt = time.Now().UTC()
	if archived {
		s.metrics.EventsArchived(1)
	}
	s.invalidate(ctx)
	return event, nil
}

// Delete removes an event permanently.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapEventError(err, "failed to delete event")
	}
	s.metrics.EventDeleted()
	s.invalidate(ctx)
	return nil
}

// SuggestCategory classifies a title and notes without storing anything.
func (s *EventService) SuggestCategory(title, notes string) (models.Category, error) {
	if strings.TrimSpace(title) == "" && strings.TrimSpace(notes) == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "title or notes required")
	}
	return s.classifier.Classify(title, notes), nil
}

// ArchivePast archives active events scheduled before cutoff, read as wall clock time.
func (s *EventService) ArchivePast(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.repo.ArchiveBefore(ctx, cutoff.Format(models.DateLayout), cutoff.Format(models.TimeLayout))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive past events")
	}
	if n > 0 {
		s.metrics.EventsArchived(int(n))
		s.invalidate(ctx)
	}
	return int(n), nil
}

func (s *EventService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, eventCachePattern)
}

func validateFilter(filter models.EventFilter) error {
	if filter.DateFrom != "" && !ValidDate(filter.DateFrom) {
		return appErrors.Clone(appErrors.ErrValidation, "dateFrom must be YYYY-MM-DD")
	}
	if filter.DateTo != "" && !ValidDate(filter.DateTo) {
		return appErrors.Clone(appErrors.ErrValidation, "dateTo must be YYYY-MM-DD")
	}
	if filter.DateFrom != "" && filter.DateTo != "" && filter.DateTo < filter.DateFrom {
		return appErrors.Clone(appErrors.ErrValidation, "dateTo must be on or after dateFrom")
	}
	switch filter.SortBy {
	case models.SortByDate, models.SortByTitle, models.SortByCreatedAt:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unsupported sortBy")
	}
	switch filter.Archived {
	case models.ArchivedExclude, models.ArchivedOnly, models.ArchivedInclude:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unsupported archived filter")
	}
	return nil
}

func mapEventError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
