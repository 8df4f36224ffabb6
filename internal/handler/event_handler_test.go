package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mini-event-api/internal/dto"
	"github.com/noah-isme/mini-event-api/internal/models"
	"github.com/noah-isme/mini-event-api/internal/service"
	appErrors "github.com/noah-isme/mini-event-api/pkg/errors"
)

type eventServiceMock struct {
	filter     models.EventFilter
	searchTerm string
	events     []models.Event
	cacheHit   bool
	event      *models.Event
	err        error
	created    dto.CreateEventRequest
	updated    dto.UpdateEventRequest
	archivedTo *bool
	deletedID  string
}

func (m *eventServiceMock) List(ctx context.Context, filter models.EventFilter) ([]models.Event, *models.Pagination, bool, error) {
	m.filter = filter
	if m.err != nil {
		return nil, nil, false, m.err
	}
	return m.events, models.NewPagination(1, 20, len(m.events)), m.cacheHit, nil
}

func (m *eventServiceMock) Search(ctx context.Context, term string, filter models.EventFilter) ([]models.Event, *models.Pagination, bool, error) {
	m.searchTerm = term
	return m.List(ctx, filter)
}

func (m *eventServiceMock) Get(ctx context.Context, id string) (*models.Event, error) {
	return m.event, m.err
}

func (m *eventServiceMock) Create(ctx context.Context, req dto.CreateEventRequest) (*models.Event, error) {
	m.created = req
	return m.event, m.err
}

func (m *eventServiceMock) Update(ctx context.Context, id string, req dto.UpdateEventRequest) (*models.Event, error) {
	m.updated = req
	return m.event, m.err
}

func (m *eventServiceMock) ToggleArchive(ctx context.Context, id string) (*models.Event, error) {
	return m.event, m.err
}

func (m *eventServiceMock) SetArchived(ctx context.Context, id string, archived bool) (*models.Event, error) {
	m.archivedTo = &archived
	return m.event, m.err
}

func (m *eventServiceMock) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return m.err
}

type exportRendererMock struct {
	format models.ExportFormat
}

func (m *exportRendererMock) Render(ctx context.Context, format models.ExportFormat, filter models.EventFilter) (*service.ExportFile, error) {
	m.format = format
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "bad format")
	}
	return &service.ExportFile{Filename: "events." + string(format), ContentType: format.ContentType(), Data: []byte("data"), Count: 3}, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestEventHandlerListParsesQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &eventServiceMock{events: []models.Event{{ID: "e1", Title: "Demo"}}, cacheHit: true}
	handler := NewEventHandler(mock, nil)

	c, w := newGinContext(http.MethodGet, "/events?searchTerm=%20demo%20&category=work&includeArchived=true&page=2&limit=5&sortOrder=DESC", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "demo", mock.searchTerm)
	assert.Equal(t, models.CategoryWork, mock.filter.Category)
	assert.Equal(t, models.ArchivedInclude, mock.filter.Archived)
	assert.Equal(t, 2, mock.filter.Page)
	assert.Equal(t, 5, mock.filter.Limit)
	assert.Equal(t, models.SortDesc, mock.filter.SortOrder)

	envelope := decodeEnvelope(t, w)
	assert.Contains(t, string(envelope["meta"]), `"cache_hit":true`)
	assert.Contains(t, string(envelope["pagination"]), `"total":1`)
}

func TestEventHandlerListCategoryAllAndArchivedOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &eventServiceMock{}
	handler := NewEventHandler(mock, nil)

	c, w := newGinContext(http.MethodGet, "/events?category=all&archived=true", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, mock.filter.Category)
	assert.Equal(t, models.ArchivedOnly, mock.filter.Archived)
	assert.Empty(t, mock.searchTerm)
}

func TestEventHandlerListRejectsBadQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEventHandler(&eventServiceMock{}, nil)
	for _, query := range []string{"category=chores", "includeArchived=maybe", "page=-1", "limit=abc"} {
		c, w := newGinContext(http.MethodGet, "/events?"+query, nil)
		handler.List(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestEventHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &eventServiceMock{event: &models.Event{ID: "e1", Title: "Standup", Category: models.CategoryWork}}
	handler := NewEventHandler(mock, nil)

	payload, _ := json.Marshal(map[string]string{"title": "Standup", "date": "2024-05-01", "time": "09:00"})
	c, w := newGinContext(http.MethodPost, "/events", payload)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Standup", mock.created.Title)
	assert.Contains(t, string(decodeEnvelope(t, w)["data"]), `"category":"Work"`)
}

func TestEventHandlerCreateMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEventHandler(&eventServiceMock{}, nil)
	c, w := newGinContext(http.MethodPost, "/events", []byte("{"))
	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventHandlerUpdatePassesPointers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &eventServiceMock{event: &models.Event{ID: "e1"}}
	handler := NewEventHandler(mock, nil)

	c, w := newGinContext(http.MethodPatch, "/events/e1", []byte(`{"notes":"","archived":true}`))
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	handler.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mock.updated.Notes)
	assert.Equal(t, "", *mock.updated.Notes)
	require.NotNil(t, mock.updated.Archived)
	assert.True(t, *mock.updated.Archived)
	assert.Nil(t, mock.updated.Title)
}

func TestEventHandlerArchiveRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &eventServiceMock{event: &models.Event{ID: "e1", Archived: true}}
	handler := NewEventHandler(mock, nil)

	c, w := newGinContext(http.MethodPost, "/events/e1/archive", nil)
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	handler.Archive(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mock.archivedTo)
	assert.True(t, *mock.archivedTo)

	c, w = newGinContext(http.MethodPost, "/events/e1/unarchive", nil)
	handler.Unarchive(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, *mock.archivedTo)

	c, w = newGinContext(http.MethodPut, "/events/e1", nil)
	handler.ToggleArchive(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEventHandlerDeleteAndNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &eventServiceMock{}
	handler := NewEventHandler(mock, nil)

	c, w := newGinContext(http.MethodDelete, "/events/e1", nil)
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "e1", mock.deletedID)

	mock.err = appErrors.Clone(appErrors.ErrNotFound, "event not found")
	c, w = newGinContext(http.MethodGet, "/events/missing", nil)
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, string(decodeEnvelope(t, w)["error"]), "NOT_FOUND")
}

func TestEventHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	renderer := &exportRendererMock{}
	handler := NewEventHandler(&eventServiceMock{}, renderer)

	c, w := newGinContext(http.MethodGet, "/events/export?format=ICS", nil)
	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ExportFormatICS, renderer.format)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "events.ics")
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))

	c, w = newGinContext(http.MethodGet, "/events/export?format=xlsx", nil)
	handler.Export(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	disabled := NewEventHandler(&eventServiceMock{}, nil)
	c, w = newGinContext(http.MethodGet, "/events/export", nil)
	disabled.Export(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type suggesterStub struct{}

func (suggesterStub) SuggestCategory(title, notes string) (models.Category, error) {
	if title == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "title or notes required")
	}
	return models.CategoryPersonal, nil
}

func TestCategoryHandlerSuggest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCategoryHandler(suggesterStub{})

	c, w := newGinContext(http.MethodGet, "/category?title=Birthday", nil)
	handler.Suggest(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"category":"Personal"}`, string(decodeEnvelope(t, w)["data"]))

	c, w = newGinContext(http.MethodGet, "/category", nil)
	handler.Suggest(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodGet, "/categories", nil)
	handler.Categories(c)
	assert.JSONEq(t, `["Work","Personal","Other"]`, string(decodeEnvelope(t, w)["data"]))
}
