package dto

import (
	"time"

	"github.com/noah-isme/mini-event-api/internal/models"
)

// DashboardResponse summarises the event book for the overview screen.
type DashboardResponse struct {
	Date        string              `json:"date"`
	Time        string              `json:"time"`
	Totals      DashboardTotals     `json:"totals"`
	ByCategory  []CategoryBreakdown `json:"byCategory"`
	Upcoming    []models.Event      `json:"upcoming"`
	GeneratedAt time.Time           `json:"generatedAt"`
}

// DashboardTotals aggregates counts across categories.
type DashboardTotals struct {
	All      int `json:"all"`
	Active   int `json:"active"`
	Archived int `json:"archived"`
	Today    int `json:"today"`
	Overdue  int `json:"overdue"`
}

// CategoryBreakdown counts events of one category.
type CategoryBreakdown struct {
	Category models.Category `json:"category"`
	Active   int             `json:"active"`
	Archived int             `json:"archived"`
}
