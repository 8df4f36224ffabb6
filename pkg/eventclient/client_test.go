package eventclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mini-event-api/internal/dto"
	"github.com/noah-isme/mini-event-api/internal/models"
)

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, body map[string]interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(srv.URL+"/api/v1", opts...)
	require.NoError(t, err)
	return client
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com")
	require.Error(t, err)
	_, err = New("://nope")
	require.Error(t, err)
}

func TestListEncodesFilterAndDecodesEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/events", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "gym", q.Get("searchTerm"))
		assert.Equal(t, "Personal", q.Get("category"))
		assert.Equal(t, "true", q.Get("includeArchived"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Empty(t, q.Get("archived"))
		writeEnvelope(t, w, http.StatusOK, map[string]interface{}{
			"data":       []map[string]interface{}{{"id": "e1", "title": "Gym", "date": "2024-05-01", "time": "07:00", "category": "Personal"}},
			"pagination": map[string]int{"page": 2, "limit": 20, "total": 21, "totalPages": 2},
			"meta":       map[string]interface{}{"cache_hit": true},
		})
	})

	page, err := client.Search(context.Background(), " gym ", models.EventFilter{
		Category: models.CategoryPersonal,
		Archived: models.ArchivedInclude,
		Page:     2,
	})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, "Gym", page.Events[0].Title)
	assert.Equal(t, 21, page.Pagination.Total)
	assert.True(t, page.CacheHit)
}

func TestSearchRequiresTerm(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := client.Search(context.Background(), "  ", models.EventFilter{})
	require.Error(t, err)
}

func TestCreateSendsTokenAndBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		var req dto.CreateEventRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Standup", req.Title)
		writeEnvelope(t, w, http.StatusCreated, map[string]interface{}{
			"data": map[string]interface{}{"id": "e2", "title": req.Title, "date": req.Date, "time": req.Time, "category": "Work", "categorySource": "auto"},
		})
	}, WithToken("secret-token"))

	event, err := client.Create(context.Background(), dto.CreateEventRequest{Title: "Standup", Date: "2024-05-02", Time: "09:00"})
	require.NoError(t, err)
	assert.Equal(t, "e2", event.ID)
	assert.Equal(t, models.CategoryWork, event.Category)
	assert.Equal(t, models.CategorySourceAuto, event.CategorySource)
}

func TestArchiveRoutes(t *testing.T) {
	var seen []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		writeEnvelope(t, w, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{"id": "e1", "archived": r.URL.Path != "/api/v1/events/e1/unarchive"},
		})
	})
	ctx := context.Background()

	_, err := client.ToggleArchive(ctx, "e1")
	require.NoError(t, err)
	archived, err := client.Archive(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, archived.Archived)
	restored, err := client.Unarchive(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, restored.Archived)

	assert.Equal(t, []string{
		"PUT /api/v1/events/e1",
		"POST /api/v1/events/e1/archive",
		"POST /api/v1/events/e1/unarchive",
	}, seen)
}

func TestDeleteHandlesNoContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, client.Delete(context.Background(), "e1"))
}

func TestErrorEnvelopeBecomesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusNotFound, map[string]interface{}{
			"error": map[string]interface{}{"code": "NOT_FOUND", "message": "event not found", "status": 404},
		})
	})

	_, err := client.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Equal(t, "event not found", apiErr.Message)
}

func TestNonJSONErrorFallsBackToStatusText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	_, err := client.Get(context.Background(), "e1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestSuggestCategory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/category", r.URL.Path)
		assert.Equal(t, "Dentist", r.URL.Query().Get("title"))
		writeEnvelope(t, w, http.StatusOK, map[string]interface{}{"data": map[string]string{"category": "Personal"}})
	})
	category, err := client.SuggestCategory(context.Background(), "Dentist", "")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryPersonal, category)
}

func TestExportReadsAttachment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ics", r.URL.Query().Get("format"))
		assert.Equal(t, "true", r.URL.Query().Get("archived"))
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="events-20240501.ics"`)
		_, _ = io.WriteString(w, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	})

	file, err := client.Export(context.Background(), models.ExportFormatICS, models.EventFilter{Archived: models.ArchivedOnly})
	require.NoError(t, err)
	assert.Equal(t, "events-20240501.ics", file.Filename)
	assert.Contains(t, string(file.Data), "BEGIN:VCALENDAR")
}
