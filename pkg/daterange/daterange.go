// Package daterange turns symbolic period selectors into concrete windows.
// Month and year periods follow calendar boundaries rather than rolling
// 30 or 365 day spans, and every window ends on the last instant of a day.
package daterange

import (
	"fmt"
	"time"
)

// Key names a symbolic period.
type Key string

// Supported keys.
const (
	Last7Days     Key = "last7Days"
	CurrentMonth  Key = "currentMonth"
	PreviousMonth Key = "previousMonth"
	Last3Months   Key = "last3Months"
	Last6Months   Key = "last6Months"
	Last12Months  Key = "last12Months"
	CurrentYear   Key = "currentYear"
	PreviousYear  Key = "previousYear"
	Last3Years    Key = "last3Years"
	Last6Years    Key = "last6Years"
	AllTime       Key = "allTime"
)

// Default is used when no key is supplied.
const Default = Last7Days

// Keys lists the supported keys in display order.
func Keys() []Key {
	return []Key{Last7Days, CurrentMonth, PreviousMonth, Last3Months, Last6Months, Last12Months,
		CurrentYear, PreviousYear, Last3Years, Last6Years, AllTime}
}

// Range is an inclusive window.
type Range struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// Contains reports whether t falls inside the window. A nil range contains everything.
func (r *Range) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	return !t.Before(r.Start) && !t.After(r.End)
}

// Resolve maps key to a window anchored on the calendar day of anchor, in
// anchor's location. AllTime resolves to nil and an empty key to Default.
func Resolve(key Key, anchor time.Time) (*Range, error) {
	if key == "" {
		key = Default
	}
	y, m, d := anchor.Date()
	loc := anchor.Location()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch key {
	case Last7Days:
		return window(today.AddDate(0, 0, -6), today), nil
	case CurrentMonth:
		return window(monthStart(y, m, loc), monthEnd(y, m, loc)), nil
	case PreviousMonth:
		first := monthStart(y, m, loc).AddDate(0, -1, 0)
		return window(first, monthEnd(first.Year(), first.Month(), loc)), nil
	case Last3Months:
		return window(monthStart(y, m, loc).AddDate(0, -3, 0), monthEnd(y, m, loc)), nil
	case Last6Months:
		return window(monthStart(y, m, loc).AddDate(0, -6, 0), monthEnd(y, m, loc)), nil
	case Last12Months:
		return window(monthStart(y, m, loc).AddDate(0, -12, 0), monthEnd(y, m, loc)), nil
	case CurrentYear:
		return window(yearStart(y, loc), yearEnd(y, loc)), nil
	case PreviousYear:
		return window(yearStart(y-1, loc), yearEnd(y-1, loc)), nil
	case Last3Years:
		return window(yearStart(y-3, loc), yearEnd(y, loc)), nil
	case Last6Years:
		return window(yearStart(y-6, loc), yearEnd(y, loc)), nil
	case AllTime:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown date range %q", key)
	}
}

// Custom normalizes a caller supplied window to whole days.
func Custom(start, end time.Time) (*Range, error) {
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("custom range requires start and end dates")
	}
	r := window(StartOfDay(start), StartOfDay(end.In(start.Location())))
	if r.Start.After(r.End) {
		return nil, fmt.Errorf("custom range start %s is after end %s", start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return r, nil
}

// StartOfDay returns midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func window(startDay, endDay time.Time) *Range {
	return &Range{Start: startDay, End: EndOfDay(endDay)}
}

func monthStart(y int, m time.Month, loc *time.Location) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, loc)
}

func monthEnd(y int, m time.Month, loc *time.Location) time.Time {
	return monthStart(y, m, loc).AddDate(0, 1, -1)
}

func yearStart(y int, loc *time.Location) time.Time {
	return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
}

func yearEnd(y int, loc *time.Location) time.Time {
	return time.Date(y, time.December, 31, 0, 0, 0, 0, loc)
}
