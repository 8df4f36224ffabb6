package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/noah-isme/mini-event-api/internal/models"
)

const titleWidth = 40

func (a *app) renderEvents(events []models.Event) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(a.out, "no events")
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tTITLE\tCATEGORY\tSTATUS")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			a.dates.FormatDateTime(e.Date, e.Time),
			clip(e.Title, titleWidth),
			e.Category,
			a.status(e),
		)
	}
	return tw.Flush()
}

func (a *app) renderEvent(e *models.Event) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", e.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", e.Title)
	fmt.Fprintf(tw, "When:\t%s (%s)\n", a.dates.FormatDateTime(e.Date, e.Time), a.dates.RelativeTime(e.Date, e.Time))
	fmt.Fprintf(tw, "Category:\t%s (%s)\n", e.Category, e.CategorySource)
	fmt.Fprintf(tw, "Status:\t%s\n", a.status(*e))
	if notes := e.NotesText(); notes != "" {
		fmt.Fprintf(tw, "Notes:\t%s\n", notes)
	}
	return tw.Flush()
}

func (a *app) status(e models.Event) string {
	switch {
	case e.Archived:
		return "archived"
	case a.dates.IsPast(e.Date, e.Time):
		return "past"
	default:
		return "upcoming"
	}
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
