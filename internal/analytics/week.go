package analytics

import (
	"strings"
	"time"
)

// WeekKey identifies an ISO-8601 week.
type WeekKey struct {
	Year int
	Week int
}

func (k WeekKey) Less(other WeekKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Week < other.Week
}

// WeekOf returns the ISO week containing t: weeks start on Monday and week 1
// is the one holding the year's first Thursday.
func WeekOf(t time.Time) WeekKey {
	year, week := t.ISOWeek()
	return WeekKey{Year: year, Week: week}
}

// dateLayouts are the shapes the inventory backend has been seen to emit:
// LocalDate, LocalDateTime and zoned timestamps.
var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	time.DateTime,
}

// ParseDate parses a transaction date. The calendar date is taken as written,
// so a zoned timestamp is not shifted into another day.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
