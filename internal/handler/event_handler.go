package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mini-event-api/internal/dto"
	"github.com/noah-isme/mini-event-api/internal/middleware"
	"github.com/noah-isme/mini-event-api/internal/models"
	"github.com/noah-isme/mini-event-api/internal/service"
	appErrors "github.com/noah-isme/mini-event-api/pkg/errors"
	"github.com/noah-isme/mini-event-api/pkg/response"
)

type eventService interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, *models.Pagination, bool, error)
	Search(ctx context.Context, term string, filter models.EventFilter) ([]models.Event, *models.Pagination, bool, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, req dto.CreateEventRequest) (*models.Event, error)
	Update(ctx context.Context, id string, req dto.UpdateEventRequest) (*models.Event, error)
	ToggleArchive(ctx context.Context, id string) (*models.Event, error)
	SetArchived(ctx context.Context, id string, archived bool) (*models.Event, error)
	Delete(ctx context.Context, id string) error
}

type exportRenderer interface {
	Render(ctx context.Context, format models.ExportFormat, filter models.EventFilter) (*service.ExportFile, error)
}

// EventHandler exposes event CRUD endpoints.
type EventHandler struct {
	events  eventService
	exports exportRenderer
}

// NewEventHandler constructs the handler. exports may be nil when exports are disabled.
func NewEventHandler(events eventService, exports exportRenderer) *EventHandler {
	return &EventHandler{events: events, exports: exports}
}

// List godoc
// @Summary List events
// @Description Lists events sorted by date and time. searchTerm matches title or notes.
// @Tags Events
// @Produce json
// @Param searchTerm query string false "Case-insensitive substring of title or notes"
// @Param category query string false "Work, Personal, Other or all"
// @Param includeArchived query bool false "Include archived events"
// @Param archived query bool false "true lists archived events only"
// @Param dateFrom query string false "YYYY-MM-DD"
// @Param dateTo query string false "YYYY-MM-DD"
// @Param sortBy query string false "date, title or createdAt"
// @Param sortOrder query string false "asc or desc"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	filter, err := parseEventFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var (
		events     []models.Event
		pagination *models.Pagination
		cacheHit   bool
	)
	if filter.Search != "" {
		events, pagination, cacheHit, err = h.events.Search(c.Request.Context(), filter.Search, filter)
	} else {
		events, pagination, cacheHit, err = h.events.List(c.Request.Context(), filter)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, events, pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Create godoc
// @Summary Create event
// @Description Category is assigned automatically when omitted.
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	event, err := h.events.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update godoc
// @Summary Update event
// @Description Partial update. Omitted fields are unchanged; an empty notes string clears notes.
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.UpdateEventRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id} [patch]
func (h *EventHandler) Update(c *gin.Context) {
	var req dto.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	event, err := h.events.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// ToggleArchive godoc
// @Summary Toggle archived flag
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id} [put]
func (h *EventHandler) ToggleArchive(c *gin.Context) {
	event, err := h.events.ToggleArchive(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Archive godoc
// @Summary Archive event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/archive [post]
func (h *EventHandler) Archive(c *gin.Context) {
	h.setArchived(c, true)
}

// Unarchive godoc
// @Summary Restore archived event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/unarchive [post]
func (h *EventHandler) Unarchive(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *EventHandler) setArchived(c *gin.Context, archived bool) {
	event, err := h.events.SetArchived(c.Request.Context(), c.Param("id"), archived)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Delete godoc
// @Summary Delete event
// @Tags Events
// @Param id path string true "Event ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.events.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Download events
// @Description Renders the filtered list as csv, pdf or ics.
// @Tags Exports
// @Produce text/csv,application/pdf,text/calendar
// @Param format query string true "csv, pdf or ics"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /events/export [get]
func (h *EventHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "exports are disabled"))
		return
	}
	filter, err := parseEventFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := models.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(models.ExportFormatCSV))))
	file, err := h.exports.Render(c.Request.Context(), format, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.Itoa(file.Count))
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func parseEventFilter(c *gin.Context) (models.EventFilter, error) {
	filter := models.EventFilter{
		Search:    strings.TrimSpace(c.Query("searchTerm")),
		DateFrom:  c.Query("dateFrom"),
		DateTo:    c.Query("dateTo"),
		SortBy:    models.SortField(c.Query("sortBy")),
		SortOrder: models.SortOrder(strings.ToLower(c.Query("sortOrder"))),
	}
	if raw := strings.TrimSpace(c.Query("category")); raw != "" && !strings.EqualFold(raw, "all") {
		category, err := models.ParseCategory(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "category must be Work, Personal, Other or all")
		}
		filter.Category = category
	}

	includeArchived, err := optionalBool(c, "includeArchived")
	if err != nil {
		return filter, err
	}
	archivedOnly, err := optionalBool(c, "archived")
	if err != nil {
		return filter, err
	}
	switch {
	case archivedOnly:
		filter.Archived = models.ArchivedOnly
	case includeArchived:
		filter.Archived = models.ArchivedInclude
	default:
		filter.Archived = models.ArchivedExclude
	}

	if filter.Page, err = optionalInt(c, "page"); err != nil {
		return filter, err
	}
	if filter.Limit, err = optionalInt(c, "limit"); err != nil {
		return filter, err
	}
	return filter, nil
}

func optionalBool(c *gin.Context, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, appErrors.Clone(appErrors.ErrValidation, key+" must be true or false")
	}
	return v, nil
}

func optionalInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a positive integer")
	}
	return v, nil
}
