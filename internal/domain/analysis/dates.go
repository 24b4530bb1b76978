package analysis

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for date bounds.
const DateLayout = "2006-01-02"

// DateBounds resolves a relative date keyword to explicit inclusive bounds
// at the given evaluation time. days is only read for DateLastNDays.
func DateBounds(kw DateKeyword, days int, now time.Time) (gte, lte string, err error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch kw {
	case DateToday:
		return format(today), format(today), nil
	case DateYesterday:
		y := today.AddDate(0, 0, -1)
		return format(y), format(y), nil
	case DateThisWeek:
		start := startOfWeek(today)
		return format(start), format(today), nil
	case DateThisMonth:
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return format(start), format(today), nil
	case DateThisYear:
		start := time.Date(today.Year(), 1, 1, 0, 0, 0, 0, today.Location())
		return format(start), format(today), nil
	case DateLastWeek:
		thisWeek := startOfWeek(today)
		start := thisWeek.AddDate(0, 0, -7)
		end := thisWeek.AddDate(0, 0, -1)
		return format(start), format(end), nil
	case DateLastMonth:
		firstOfThis := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		start := firstOfThis.AddDate(0, -1, 0)
		end := firstOfThis.AddDate(0, 0, -1)
		return format(start), format(end), nil
	case DateLastQuarter:
		qStart := startOfQuarter(today)
		start := qStart.AddDate(0, -3, 0)
		end := qStart.AddDate(0, 0, -1)
		return format(start), format(end), nil
	case DateLastYear:
		start := time.Date(today.Year()-1, 1, 1, 0, 0, 0, 0, today.Location())
		end := time.Date(today.Year()-1, 12, 31, 0, 0, 0, 0, today.Location())
		return format(start), format(end), nil
	case DateLastNDays:
		if days <= 0 {
			return "", "", fmt.Errorf("last_n_days requires a positive day count")
		}
		start := today.AddDate(0, 0, -days)
		return format(start), format(today), nil
	}
	return "", "", fmt.Errorf("unknown date keyword %q", kw)
}

// startOfWeek returns the Monday on or before d.
func startOfWeek(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// startOfQuarter returns the first day of d's calendar quarter.
func startOfQuarter(d time.Time) time.Time {
	qMonth := time.Month(((int(d.Month())-1)/3)*3 + 1)
	return time.Date(d.Year(), qMonth, 1, 0, 0, 0, 0, d.Location())
}

func format(t time.Time) string { return t.Format(DateLayout) }
