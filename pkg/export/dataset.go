package export

import (
	"strconv"

	"github.com/noah-isme/mini-event-api/internal/models"
)

// Column describes one exported field.
type Column struct {
	Header string
	// Width is the relative PDF column weight.
	Width float64
}

// Dataset defines tabular export content.
type Dataset struct {
	Columns []Column
	Rows    [][]string
}

// Headers returns the column headers in order.
func (d Dataset) Headers() []string {
	headers := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		headers[i] = col.Header
	}
	return headers
}

var eventColumns = []Column{
	{Header: "ID", Width: 3},
	{Header: "Title", Width: 4},
	{Header: "Date", Width: 2},
	{Header: "Time", Width: 1.2},
	{Header: "Category", Width: 1.8},
	{Header: "Notes", Width: 5},
	{Header: "Archived", Width: 1.6},
}

// EventDataset flattens events into export rows.
func EventDataset(events []models.Event) Dataset {
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{
			e.ID,
			e.Title,
			e.Date,
			e.Time,
			string(e.Category),
			e.NotesText(),
			strconv.FormatBool(e.Archived),
		})
	}
	return Dataset{Columns: eventColumns, Rows: rows}
}
