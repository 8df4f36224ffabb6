package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/mini-event-api/internal/dto"
	"github.com/noah-isme/mini-event-api/internal/models"
	appErrors "github.com/noah-isme/mini-event-api/pkg/errors"
)

type eventRepoStub struct {
	events      map[string]*models.Event
	listCalls   int
	nextID      int
	archivedArg [2]string
	archiveN    int64
	failWith    error
}

func newEventRepoStub(events ...models.Event) *eventRepoStub {
	repo := &eventRepoStub{events: map[string]*models.Event{}}
	for i := range events {
		e := events[i]
		repo.events[e.ID] = &e
	}
	return repo
}

func (r *eventRepoStub) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	r.listCalls++
	if r.failWith != nil {
		return nil, 0, r.failWith
	}
	all, _ := r.ListAll(ctx, filter)
	start := filter.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (r *eventRepoStub) ListAll(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	out := []models.Event{}
	for _, e := range r.events {
		if filter.Archived == models.ArchivedExclude && e.Archived {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date+out[i].Time < out[j].Date+out[j].Time })
	return out, nil
}

func (r *eventRepoStub) GetByID(ctx context.Context, id string) (*models.Event, error) {
	e, ok := r.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *e
	return &copied, nil
}

func (r *eventRepoStub) Create(ctx context.Context, event *models.Event) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.nextID++
	event.ID = "evt-" + string(rune('0'+r.nextID))
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt
	copied := *event
	r.events[event.ID] = &copied
	return nil
}

func (r *eventRepoStub) Update(ctx context.Context, event *models.Event) error {
	if _, ok := r.events[event.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *event
	r.events[event.ID] = &copied
	return nil
}

func (r *eventRepoStub) SetArchived(ctx context.Context, id string, archived bool) error {
	e, ok := r.events[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Archived = archived
	return nil
}

func (r *eventRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.events[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.events, id)
	return nil
}

func (r *eventRepoStub) ArchiveBefore(ctx context.Context, date, clock string) (int64, error) {
	r.archivedArg = [2]string{date, clock}
	return r.archiveN, nil
}

func newEventServiceForTest(repo *eventRepoStub, cache *CacheService) *EventService {
	return NewEventService(repo, cache, NewClassifier(nil, nil), NewMetricsService(), nil, zap.NewNop())
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestEventServiceCreateClassifiesWhenCategoryMissing(t *testing.T) {
	repo := newEventRepoStub()
	svc := newEventServiceForTest(repo, nil)

	event, err := svc.Create(context.Background(), dto.CreateEventRequest{
		Title: "  Sprint planning meeting ",
		Date:  "2024-05-01",
		Time:  "09:30",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sprint planning meeting", event.Title)
	assert.Equal(t, models.CategoryWork, event.Category)
	assert.Equal(t, models.CategorySourceAuto, event.CategorySource)
	assert.False(t, event.Archived)
	assert.Nil(t, event.Notes)
}

func TestEventServiceCreateKeepsUserCategory(t *testing.T) {
	svc := newEventServiceForTest(newEventRepoStub(), nil)

	event, err := svc.Create(context.Background(), dto.CreateEventRequest{
		Title:    "Team meeting",
		Date:     "2024-05-01",
		Time:     "10:00",
		Category: "personal",
		Notes:    strPtr("bring snacks"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryPersonal, event.Category)
	assert.Equal(t, models.CategorySourceUser, event.CategorySource)
	require.NotNil(t, event.Notes)
	assert.Equal(t, "bring snacks", *event.Notes)
}

func TestEventServiceCreateValidation(t *testing.T) {
	svc := newEventServiceForTest(newEventRepoStub(), nil)
	cases := []struct {
		name string
		req  dto.CreateEventRequest
	}{
		{"blank title", dto.CreateEventRequest{Title: "   ", Date: "2024-05-01", Time: "10:00"}},
		{"missing date", dto.CreateEventRequest{Title: "x", Time: "10:00"}},
		{"impossible date", dto.CreateEventRequest{Title: "x", Date: "2024-02-30", Time: "10:00"}},
		{"bad time", dto.CreateEventRequest{Title: "x", Date: "2024-05-01", Time: "25:00"}},
		{"unpadded time", dto.CreateEventRequest{Title: "x", Date: "2024-05-01", Time: "9:00"}},
		{"unknown category", dto.CreateEventRequest{Title: "x", Date: "2024-05-01", Time: "10:00", Category: "Chores"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrValidation))
		})
	}
}

func TestEventServiceGetNotFound(t *testing.T) {
	svc := newEventServiceForTest(newEventRepoStub(), nil)
	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEventServiceUpdateReclassifiesAutoCategory(t *testing.T) {
	repo := newEventRepoStub(models.Event{ID: "e1", Title: "Client call", Date: "2024-05-01", Time: "10:00",
		Category: models.CategoryWork, CategorySource: models.CategorySourceAuto})
	svc := newEventServiceForTest(repo, nil)

	event, err := svc.Update(context.Background(), "e1", dto.UpdateEventRequest{Title: strPtr("Birthday dinner")})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryPersonal, event.Category)
	assert.Equal(t, models.CategorySourceAuto, event.CategorySource)
}

func TestEventServiceUpdateKeepsUserCategory(t *testing.T) {
	repo := newEventRepoStub(models.Event{ID: "e1", Title: "Client call", Date: "2024-05-01", Time: "10:00",
		Category: models.CategoryOther, CategorySource: models.CategorySourceUser})
	svc := newEventServiceForTest(repo, nil)

	event, err := svc.Update(context.Background(), "e1", dto.UpdateEventRequest{
		Title: strPtr("Birthday dinner"),
		Notes: strPtr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOther, event.Category)
	assert.Nil(t, event.Notes)
}

func TestEventServiceUpdateExplicitCategoryAndArchive(t *testing.T) {
	repo := newEventRepoStub(models.Event{ID: "e1", Title: "Lunch", Date: "2024-05-01", Time: "12:00",
		Category: models.CategoryPersonal, CategorySource: models.CategorySourceAuto})
	svc := newEventServiceForTest(repo, nil)

	event, err := svc.Update(context.Background(), "e1", dto.UpdateEventRequest{
		Category: strPtr("WORK"),
		Archived: boolPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryWork, event.Category)
	assert.Equal(t, models.CategorySourceUser, event.CategorySource)
	assert.True(t, repo.events["e1"].Archived)
}

func TestEventServiceUpdateRejectsEmptyPatch(t *testing.T) {
	svc := newEventServiceForTest(newEventRepoStub(), nil)
	_, err := svc.Update(context.Background(), "e1", dto.UpdateEventRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Update(context.Background(), "e1", dto.UpdateEventRequest{Title: strPtr("  ")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestEventServiceToggleAndSetArchived(t *testing.T) {
	repo := newEventRepoStub(models.Event{ID: "e1", Title: "Gym", Date: "2024-05-01", Time: "07:00"})
	svc := newEventServiceForTest(repo, nil)
	ctx := context.Background()

	event, err := svc.ToggleArchive(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, event.Archived)

	event, err = svc.SetArchived(ctx, "e1", true)
	require.NoError(t, err)
	assert.True(t, event.Archived)

	event, err = svc.ToggleArchive(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, event.Archived)
	assert.False(t, repo.events["e1"].Archived)

	_, err = svc.ToggleArchive(ctx, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestEventServiceDelete(t *testing.T) {
	repo := newEventRepoStub(models.Event{ID: "e1", Title: "Gym", Date: "2024-05-01", Time: "07:00"})
	svc := newEventServiceForTest(repo, nil)

	require.NoError(t, svc.Delete(context.Background(), "e1"))
	assert.Empty(t, repo.events)

	err := svc.Delete(context.Background(), "e1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestEventServiceListUsesCache(t *testing.T) {
	repo := newEventRepoStub(
		models.Event{ID: "b", Title: "Later", Date: "2024-05-02", Time: "08:00", Category: models.CategoryOther},
		models.Event{ID: "a", Title: "Sooner", Date: "2024-05-01", Time: "18:00", Category: models.CategoryOther},
	)
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	svc := newEventServiceForTest(repo, cache)
	ctx := context.Background()

	events, pagination, hit, err := svc.List(ctx, models.EventFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, 2, pagination.Total)
	assert.Equal(t, 1, pagination.TotalPages)

	_, _, hit, err = svc.List(ctx, models.EventFilter{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, repo.listCalls)

	_, err = svc.Create(ctx, dto.CreateEventRequest{Title: "New", Date: "2024-05-03", Time: "09:00"})
	require.NoError(t, err)
	assert.Empty(t, cacheRepo.items)

	_, _, hit, err = svc.List(ctx, models.EventFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, repo.listCalls)
}

func TestEventServiceListValidatesFilter(t *testing.T) {
	svc := newEventServiceForTest(newEventRepoStub(), nil)
	_, _, _, err := svc.List(context.Background(), models.EventFilter{DateFrom: "2024-13-01"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, _, _, err = svc.List(context.Background(), models.EventFilter{DateFrom: "2024-05-02", DateTo: "2024-05-01"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestEventServiceSearchRequiresTerm(t *testing.T) {
	svc := newEventServiceForTest(newEventRepoStub(), nil)
	_, _, _, err := svc.Search(context.Background(), "  ", models.EventFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestEventServiceSuggestCategory(t *testing.T) {
	svc := newEventServiceForTest(newEventRepoStub(), nil)
	category, err := svc.SuggestCategory("Dentist appointment", "")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryPersonal, category)

	_, err = svc.SuggestCategory("", " ")
	assert.Error(t, err)
}

func TestEventServiceArchivePast(t *testing.T) {
	repo := newEventRepoStub()
	repo.archiveN = 3
	svc := newEventServiceForTest(repo, nil)

	n, err := svc.ArchivePast(context.Background(), time.Date(2024, 5, 1, 14, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, [2]string{"2024-05-01", "14:05"}, repo.archivedArg)
}
