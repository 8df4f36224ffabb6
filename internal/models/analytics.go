package models

// EventCountRow is one (category, archived) bucket of the events table.
type EventCountRow struct {
	Category Category `db:"category"`
	Archived bool     `db:"archived"`
	Total    int      `db:"total"`
	Today    int      `db:"today"`
	Overdue  int      `db:"overdue"`
}
