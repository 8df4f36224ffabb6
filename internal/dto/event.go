package dto

import "github.com/noah-isme/mini-event-api/internal/models"

// CreateEventRequest is the payload accepted by POST /events.
type CreateEventRequest struct {
	Title    string  `json:"title" validate:"required,max=200"`
	Date     string  `json:"date" validate:"required,eventdate"`
	Time     string  `json:"time" validate:"required,eventtime"`
	Notes    *string `json:"notes" validate:"omitempty,max=2000"`
	Category string  `json:"category" validate:"omitempty,category"`
}

// UpdateEventRequest is a partial update; nil fields are left untouched.
type UpdateEventRequest struct {
	Title    *string `json:"title" validate:"omitempty,max=200"`
	Date     *string `json:"date" validate:"omitempty,eventdate"`
	Time     *string `json:"time" validate:"omitempty,eventtime"`
	Notes    *string `json:"notes" validate:"omitempty,max=2000"`
	Category *string `json:"category" validate:"omitempty,category"`
	Archived *bool   `json:"archived"`
}

// Empty reports whether the patch carries no fields.
func (r UpdateEventRequest) Empty() bool {
	return r.Title == nil && r.Date == nil && r.Time == nil && r.Notes == nil && r.Category == nil && r.Archived == nil
}

// CategorySuggestion answers GET /category.
type CategorySuggestion struct {
	Category models.Category `json:"category"`
}
