package eventclient

import (
	"sort"
	"strings"

	"github.com/noah-isme/mini-event-api/internal/models"
)

// CategoryAll disables the category predicate.
const CategoryAll = "all"

// Filter is the client side predicate behind the list views.
type Filter struct {
	SearchTerm   string
	Category     string
	ShowArchived bool
	ArchivedOnly bool
}

// Match reports whether e passes every predicate of f.
func (f Filter) Match(e models.Event) bool {
	if term := strings.ToLower(strings.TrimSpace(f.SearchTerm)); term != "" {
		if !strings.Contains(strings.ToLower(e.Title), term) &&
			!strings.Contains(strings.ToLower(e.NotesText()), term) {
			return false
		}
	}
	if cat := strings.TrimSpace(f.Category); cat != "" && !strings.EqualFold(cat, CategoryAll) {
		if !strings.EqualFold(cat, string(e.Category)) {
			return false
		}
	}
	switch {
	case f.ArchivedOnly:
		return e.Archived
	case f.ShowArchived:
		return true
	default:
		return !e.Archived
	}
}

// Apply returns the matching events in schedule order. events is not modified.
func (f Filter) Apply(events []models.Event) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	SortEvents(out)
	return out
}

// SortEvents orders events by date then time ascending. Events whose date or
// time cannot be parsed keep their relative order at the end.
func SortEvents(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, aErr := events[i].StartsAt(nil)
		b, bErr := events[j].StartsAt(nil)
		switch {
		case aErr != nil || bErr != nil:
			return aErr == nil && bErr != nil
		case a.Equal(b):
			return false
		default:
			return a.Before(b)
		}
	})
}
