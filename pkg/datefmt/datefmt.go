// Package datefmt renders event dates and times for humans.
package datefmt

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Placeholders returned instead of a formatted value.
const (
	NotAvailable = "N/A"
	InvalidDate  = "Invalid Date"
	InvalidTime  = "Invalid Time"
)

const (
	dateLayout    = "2006-01-02"
	displayLayout = "Mon, Jan 2, 2006"
	clockLayout   = "3:04 PM"
)

var timeLayouts = []string{"15:04", "15:04:05"}

// Formatter formats dates relative to a clock in a fixed location.
type Formatter struct {
	loc *time.Location
	now func() time.Time
}

// New returns a formatter for loc using the wall clock. A nil loc means time.Local.
func New(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.Local
	}
	return &Formatter{loc: loc, now: time.Now}
}

// WithClock returns a copy of f that reads the current time from now.
func (f *Formatter) WithClock(now func() time.Time) *Formatter {
	clone := *f
	clone.now = now
	return &clone
}

// FormatDate returns Today, Tomorrow or Yesterday, else e.g. "Wed, May 1, 2024".
func (f *Formatter) FormatDate(date string) string {
	if strings.TrimSpace(date) == "" {
		return NotAvailable
	}
	d, ok := f.parseDate(date)
	if !ok {
		return InvalidDate
	}
	today := f.today()
	switch days := int(math.Round(d.Sub(today).Hours() / 24)); days {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	case -1:
		return "Yesterday"
	}
	return d.Format(displayLayout)
}

// FormatTime renders a 24h HH:MM clock as 12h, e.g. "2:30 PM".
func (f *Formatter) FormatTime(clock string) string {
	if strings.TrimSpace(clock) == "" {
		return NotAvailable
	}
	t, ok := parseClock(clock)
	if !ok {
		return InvalidTime
	}
	return t.Format(clockLayout)
}

// FormatDateTime joins FormatDate and FormatTime with "at".
func (f *Formatter) FormatDateTime(date, clock string) string {
	d := f.FormatDate(date)
	t := f.FormatTime(clock)
	if d == NotAvailable || t == NotAvailable {
		return NotAvailable
	}
	return d + " at " + t
}

// RelativeTime describes how far date+clock is from now in whole days.
func (f *Formatter) RelativeTime(date, clock string) string {
	if strings.TrimSpace(date) == "" || strings.TrimSpace(clock) == "" {
		return NotAvailable
	}
	at, ok := f.combine(date, clock)
	if !ok {
		return InvalidDate
	}
	days := int(math.Floor(at.Sub(f.now()).Hours() / 24))
	switch {
	case days == 0:
		return "Today"
	case days == 1:
		return "Tomorrow"
	case days == -1:
		return "Yesterday"
	case days > 0:
		return fmt.Sprintf("in %d days", days)
	default:
		return fmt.Sprintf("%d days ago", -days)
	}
}

// IsPast reports whether date+clock lies before now. Unparseable input is never past.
func (f *Formatter) IsPast(date, clock string) bool {
	at, ok := f.combine(date, clock)
	if !ok {
		return false
	}
	return at.Before(f.now())
}

// DayBounds returns the first and last instant of date.
func (f *Formatter) DayBounds(date string) (start, end time.Time, ok bool) {
	d, ok := f.parseDate(date)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return d, d.AddDate(0, 0, 1).Add(-time.Nanosecond), true
}

// AddDays shifts date by n days. Unparseable input is returned unchanged.
func (f *Formatter) AddDays(date string, n int) string {
	d, ok := f.parseDate(date)
	if !ok {
		return date
	}
	return d.AddDate(0, 0, n).Format(dateLayout)
}

func (f *Formatter) today() time.Time {
	now := f.now().In(f.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, f.loc)
}

func (f *Formatter) parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if d, err := time.ParseInLocation(dateLayout, raw, f.loc); err == nil {
		return d, true
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		ts = ts.In(f.loc)
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, f.loc), true
	}
	return time.Time{}, false
}

func (f *Formatter) combine(date, clock string) (time.Time, bool) {
	d, ok := f.parseDate(date)
	if !ok {
		return time.Time{}, false
	}
	t, ok := parseClock(clock)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, f.loc), true
}

func parseClock(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var std = New(nil)

// FormatDate formats date against the local wall clock.
func FormatDate(date string) string { return std.FormatDate(date) }

// FormatTime formats a 24h clock as 12h.
func FormatTime(clock string) string { return std.FormatTime(clock) }

// FormatDateTime formats date and clock against the local wall clock.
func FormatDateTime(date, clock string) string { return std.FormatDateTime(date, clock) }

// RelativeTime describes date+clock relative to the local wall clock.
func RelativeTime(date, clock string) string { return std.RelativeTime(date, clock) }

// IsPast reports whether date+clock is before the local wall clock.
func IsPast(date, clock string) bool { return std.IsPast(date, clock) }

// DayBounds returns the local first and last instant of date.
func DayBounds(date string) (time.Time, time.Time, bool) { return std.DayBounds(date) }

// AddDays shifts date by n days.
func AddDays(date string, n int) string { return std.AddDays(date, n) }
