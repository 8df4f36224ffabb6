package eventclient

import (
	"context"
	"sync"

	"github.com/noah-isme/mini-event-api/internal/dto"
	"github.com/noah-isme/mini-event-api/internal/models"
)

type eventAPI interface {
	List(ctx context.Context, filter models.EventFilter) (*Page, error)
	Create(ctx context.Context, req dto.CreateEventRequest) (*models.Event, error)
	Update(ctx context.Context, id string, req dto.UpdateEventRequest) (*models.Event, error)
	ToggleArchive(ctx context.Context, id string) (*models.Event, error)
	Delete(ctx context.Context, id string) error
}

// Store mirrors the server's event list locally. Every mutation goes through
// the API first and only the server's answer is applied to the mirror.
type Store struct {
	api eventAPI

	mu     sync.RWMutex
	events []models.Event
}

// NewStore returns an empty store backed by api.
func NewStore(api eventAPI) *Store {
	return &Store{api: api}
}

// Load replaces the mirror with every event matching filter, following pagination.
func (s *Store) Load(ctx context.Context, filter models.EventFilter) error {
	filter.Page = 1
	filter.Limit = models.MaxPageSize

	var all []models.Event
	for {
		page, err := s.api.List(ctx, filter)
		if err != nil {
			return err
		}
		all = append(all, page.Events...)
		if page.Pagination == nil || filter.Page >= page.Pagination.TotalPages || len(page.Events) == 0 {
			break
		}
		filter.Page++
	}
	SortEvents(all)

	s.mu.Lock()
	s.events = all
	s.mu.Unlock()
	return nil
}

// Add creates an event and inserts it in schedule order.
func (s *Store) Add(ctx context.Context, req dto.CreateEventRequest) (*models.Event, error) {
	created, err := s.api.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.events = append(s.events, *created)
	SortEvents(s.events)
	s.mu.Unlock()
	return created, nil
}

// Edit applies a partial update and replaces the mirrored copy.
func (s *Store) Edit(ctx context.Context, id string, req dto.UpdateEventRequest) (*models.Event, error) {
	updated, err := s.api.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.replace(*updated)
	return updated, nil
}

// ToggleArchive flips the archived flag and replaces the mirrored copy.
func (s *Store) ToggleArchive(ctx context.Context, id string) (*models.Event, error) {
	updated, err := s.api.ToggleArchive(ctx, id)
	if err != nil {
		return nil, err
	}
	s.replace(*updated)
	return updated, nil
}

// Remove deletes an event and drops it from the mirror.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	for _, e := range s.events {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	s.events = kept
	return nil
}

// Events returns a copy of the mirror in schedule order.
func (s *Store) Events() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Filtered applies f to the mirror.
func (s *Store) Filtered(f Filter) []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return f.Apply(s.events)
}

// Len returns the number of mirrored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Store) replace(event models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == event.ID {
			s.events[i] = event
			SortEvents(s.events)
			return
		}
	}
	s.events = append(s.events, event)
	SortEvents(s.events)
}
