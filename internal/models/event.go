package models

import (
	"fmt"
	"strings"
	"time"
)

// Category is the closed set of event categories.
type Category string

const (
	CategoryWork     Category = "Work"
	CategoryPersonal Category = "Personal"
	CategoryOther    Category = "Other"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryWork, CategoryPersonal, CategoryOther}

// ParseCategory normalises a case-insensitive category name.
func ParseCategory(raw string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "work":
		return CategoryWork, nil
	case "personal":
		return CategoryPersonal, nil
	case "other":
		return CategoryOther, nil
	default:
		return "", fmt.Errorf("unknown category %q", raw)
	}
}

// CategorySource records who picked the category.
type CategorySource string

const (
	CategorySourceUser CategorySource = "user"
	CategorySourceAuto CategorySource = "auto"
)

// Date and time layouts for the string columns.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Event is a user-created calendar item.
type Event struct {
	ID             string         `db:"id" json:"id"`
	Title          string         `db:"title" json:"title"`
	Date           string         `db:"event_date" json:"date"`
	Time           string         `db:"event_time" json:"time"`
	Notes          *string        `db:"notes" json:"notes,omitempty"`
	Category       Category       `db:"category" json:"category"`
	CategorySource CategorySource `db:"category_source" json:"categorySource"`
	Archived       bool           `db:"archived" json:"archived"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
	// SearchText is the case-folded title and notes the repository matches
	// search terms against.
	SearchText string `db:"search_text" json:"-"`
}

// NotesText returns the notes or an empty string.
func (e Event) NotesText() string {
	if e.Notes == nil {
		return ""
	}
	return *e.Notes
}

// FoldSearch lower-cases text for search with full Unicode case mapping.
func FoldSearch(text string) string {
	return strings.ToLower(text)
}

// BuildSearchText returns the stored search key for title and notes. The
// separator keeps a term from matching across the two fields.
func (e Event) BuildSearchText() string {
	return FoldSearch(e.Title) + "\n" + FoldSearch(e.NotesText())
}

// StartsAt combines date and time in the given location.
func (e Event) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, e.Date+" "+e.Time, loc)
}

// ArchivedFilter is the tri-state archived predicate.
type ArchivedFilter string

const (
	ArchivedExclude ArchivedFilter = "exclude"
	ArchivedOnly    ArchivedFilter = "only"
	ArchivedInclude ArchivedFilter = "include"
)

// SortField enumerates sortable columns.
type SortField string

const (
	SortByDate      SortField = "date"
	SortByTitle     SortField = "title"
	SortByCreatedAt SortField = "createdAt"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// EventFilter narrows down events.
type EventFilter struct {
	Search    string         `json:"searchTerm,omitempty"`
	Category  Category       `json:"category,omitempty"`
	Archived  ArchivedFilter `json:"archived,omitempty"`
	DateFrom  string         `json:"dateFrom,omitempty"`
	DateTo    string         `json:"dateTo,omitempty"`
	SortBy    SortField      `json:"sortBy,omitempty"`
	SortOrder SortOrder      `json:"sortOrder,omitempty"`
	Page      int            `json:"page,omitempty"`
	Limit     int            `json:"limit,omitempty"`
}

// Filter bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps the row offset well inside int32 on every platform.
	MaxPage = 10_000_000
)

// Normalize fills defaults and clamps paging.
func (f EventFilter) Normalize() EventFilter {
	f.Search = strings.TrimSpace(f.Search)
	if f.Archived == "" {
		f.Archived = ArchivedExclude
	}
	if f.SortBy == "" {
		f.SortBy = SortByDate
	}
	if f.SortOrder != SortDesc {
		f.SortOrder = SortAsc
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	return f
}

// Offset returns the row offset of the current page.
func (f EventFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
