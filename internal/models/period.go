package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// PeriodRange is the inclusive date range a reporting period covers
type PeriodRange struct {
	Start time.Time
	End   time.Time
}

// ParsePeriod derives the date range of a reporting period. Accepted forms are
// YYYYMM, YYYY-MM, YYYYMMDD, YYYY, YYYYQn, YYYYWn and an explicit range written
// YYYY-MM-DD:YYYY-MM-DD or YYYY-MM-DD/YYYY-MM-DD.
func ParsePeriod(period string) (PeriodRange, error) {
	p := strings.TrimSpace(period)
	invalid := fmt.Errorf("%w: %q", ErrInvalidPeriod, period)

	if start, end, ok := cutRange(p); ok {
		s, err := time.Parse(dateLayout, start)
		if err != nil {
			return PeriodRange{}, invalid
		}
		e, err := time.Parse(dateLayout, end)
		if err != nil || e.Before(s) {
			return PeriodRange{}, invalid
		}
		return PeriodRange{Start: s, End: e}, nil
	}

	if len(p) > 5 && (p[4] == 'Q' || p[4] == 'W') {
		year, err := strconv.Atoi(p[:4])
		if err != nil {
			return PeriodRange{}, invalid
		}
		n, err := strconv.Atoi(p[5:])
		if err != nil {
			return PeriodRange{}, invalid
		}
		if p[4] == 'Q' {
			if n < 1 || n > 4 || len(p) != 6 {
				return PeriodRange{}, invalid
			}
			start := time.Date(year, time.Month(3*(n-1)+1), 1, 0, 0, 0, 0, time.UTC)
			return PeriodRange{Start: start, End: start.AddDate(0, 3, -1)}, nil
		}
		start, ok := isoWeekStart(year, n)
		if !ok {
			return PeriodRange{}, invalid
		}
		return PeriodRange{Start: start, End: start.AddDate(0, 0, 6)}, nil
	}

	var err error
	switch len(p) {
	case 4:
		var year time.Time
		if year, err = time.Parse("2006", p); err == nil {
			return PeriodRange{Start: year, End: year.AddDate(1, 0, -1)}, nil
		}
	case 6, 7:
		layout := "200601"
		if len(p) == 7 {
			layout = "2006-01"
		}
		var month time.Time
		if month, err = time.Parse(layout, p); err == nil {
			return PeriodRange{Start: month, End: month.AddDate(0, 1, -1)}, nil
		}
	case 8:
		var day time.Time
		if day, err = time.Parse("20060102", p); err == nil {
			return PeriodRange{Start: day, End: day}, nil
		}
	}
	return PeriodRange{}, invalid
}

func cutRange(p string) (string, string, bool) {
	if start, end, ok := strings.Cut(p, ":"); ok {
		return start, end, true
	}
	return strings.Cut(p, "/")
}

// isoWeekStart returns the Monday of ISO week n of year
func isoWeekStart(year, n int) (time.Time, bool) {
	if n < 1 || n > 53 {
		return time.Time{}, false
	}
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	start := jan4.AddDate(0, 0, -offset+7*(n-1))
	if y, w := start.ISOWeek(); y != year || w != n {
		return time.Time{}, false
	}
	return start, true
}

// StartDate formats the first day of the range
func (r PeriodRange) StartDate() string { return r.Start.Format(dateLayout) }

// EndDate formats the last day of the range
func (r PeriodRange) EndDate() string { return r.End.Format(dateLayout) }

// PreviousMonthPeriod returns the YYYYMM period of the calendar month before now
func PreviousMonthPeriod(now time.Time) string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, -1, 0).Format("200601")
}
