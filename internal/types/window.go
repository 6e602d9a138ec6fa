package types

import (
	"fmt"
	"strings"
	"time"
)

const (
	windowIDLayout   = "20060102"
	windowDateLayout = "2006-01-02"
)

// Window is a calendar date range in UTC. Both Start and End are dates (midnight UTC)
// and End is inclusive: a window covers every bar from Start up to, but excluding,
// the midnight after End.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowDates is the JSON form of a window used in artefacts.
type WindowDates struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// NewWindow truncates both bounds to UTC dates and checks their order.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: truncateDay(start), End: truncateDay(end)}
	if w.End.Before(w.Start) {
		return Window{}, fmt.Errorf("window end %s before start %s", w.End.Format(windowDateLayout), w.Start.Format(windowDateLayout))
	}

	return w, nil
}

// MustWindow is NewWindow for constants and tests.
func MustWindow(start, end time.Time) Window {
	w, err := NewWindow(start, end)
	if err != nil {
		panic(err)
	}

	return w
}

// ParseWindowID parses an id of the form YYYYMMDD_YYYYMMDD.
func ParseWindowID(id string) (Window, error) {
	parts := strings.Split(id, "_")
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("invalid window id %q", id)
	}

	start, err := time.ParseInLocation(windowIDLayout, parts[0], time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window id %q: %w", id, err)
	}

	end, err := time.ParseInLocation(windowIDLayout, parts[1], time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window id %q: %w", id, err)
	}

	return NewWindow(start, end)
}

// ID returns the window id YYYYMMDD_YYYYMMDD.
func (w Window) ID() string {
	return w.Start.Format(windowIDLayout) + "_" + w.End.Format(windowIDLayout)
}

func (w Window) String() string {
	return w.ID()
}

// Until is the exclusive upper bound of the window.
func (w Window) Until() time.Time {
	return w.End.AddDate(0, 0, 1)
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	t = t.UTC()

	return !t.Before(w.Start) && t.Before(w.Until())
}

// Days is the number of calendar days covered.
func (w Window) Days() int {
	return int(w.Until().Sub(w.Start).Hours() / 24)
}

// Dates returns the artefact representation of the window.
func (w Window) Dates() WindowDates {
	return WindowDates{
		StartDate: w.Start.Format(windowDateLayout),
		EndDate:   w.End.Format(windowDateLayout),
	}
}

// Window converts artefact dates back into a window.
func (d WindowDates) Window() (Window, error) {
	start, err := time.ParseInLocation(windowDateLayout, d.StartDate, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("invalid start_date %q: %w", d.StartDate, err)
	}

	end, err := time.ParseInLocation(windowDateLayout, d.EndDate, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("invalid end_date %q: %w", d.EndDate, err)
	}

	return NewWindow(start, end)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
