// Package date contains the calendar arithmetic used to walk the console's
// date panel and the localized month/year label handling.
package date

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

const (
	// ISOLayout is the layout of dates in urls, exports and processed files.
	ISOLayout = "2006-01-02"
	// MonthYearLayout matches labels such as "March 2024".
	MonthYearLayout = "January 2006"
	// DefaultLocale is used when no console locale is configured.
	DefaultLocale = monday.LocaleEnUS
)

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FirstOfMonth returns midnight UTC of the first day of t's month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Range returns the inclusive range of days days ending at last, newest first.
func Range(last time.Time, days int) []time.Time {
	last = Day(last)
	r := make([]time.Time, 0, max(days, 0))
	for d := 0; d < days; d++ {
		r = append(r, last.AddDate(0, 0, -d))
	}
	return r
}

// MonthDelta moves t by delta months, clamping the day to the length of the
// target month (March 31 minus one month is February 28 or 29).
func MonthDelta(t time.Time, delta int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	day := min(t.Day(), daysIn(first.Year(), first.Month()))
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthsBetween is the signed number of months from a to b, ignoring days.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// ParseISO parses a YYYY-MM-DD date.
func ParseISO(s string) (time.Time, error) {
	return time.Parse(ISOLayout, strings.TrimSpace(s))
}

// ParseMonthYear parses a localized "Month YYYY" label into the first of that month.
func ParseMonthYear(label string, locale monday.Locale) (time.Time, error) {
	if locale == "" {
		locale = DefaultLocale
	}
	t, err := monday.Parse(MonthYearLayout, strings.TrimSpace(label), locale)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse month and year from %q: %w", label, err)
	}
	return FirstOfMonth(t), nil
}

// ParseDayMonthYear combines a day number label with a "Month YYYY" label.
func ParseDayMonthYear(day string, monthYear string, locale monday.Locale) (time.Time, error) {
	d, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse day from %q: %w", day, err)
	}
	m, err := ParseMonthYear(monthYear, locale)
	if err != nil {
		return time.Time{}, err
	}
	if d < 1 || d > daysIn(m.Year(), m.Month()) {
		return time.Time{}, fmt.Errorf("day %d out of range for %s", d, m.Format(MonthYearLayout))
	}
	return m.AddDate(0, 0, d-1), nil
}

// FormatMonthYear renders t as a localized "Month YYYY" label.
func FormatMonthYear(t time.Time, locale monday.Locale) string {
	if locale == "" {
		locale = DefaultLocale
	}
	return monday.Format(t, MonthYearLayout, locale)
}
