package erddap

import (
	"fmt"
	"time"
)

// dateLayouts are the calendar forms accepted for constraint values, tried in
// order. Layouts without a zone are interpreted as UTC.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	// Single-digit layouts also accept zero-padded months and days.
	"2006-1-2",
	"2006/1/2",
}

// ParseDate converts a calendar timestamp string into seconds since
// 1970-01-01T00:00:00Z, the numeric form ERDDAP constraints require.
// Inputs without a time zone are treated as UTC; inputs with one are
// converted to UTC. Sub-second precision is preserved.
func ParseDate(value string) (float64, error) {
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return Timestamp(t), nil
		}
	}
	return 0, fmt.Errorf("%w: cannot parse %q as a date", ErrParse, value)
}

// Timestamp returns t as floating-point seconds since the Unix epoch in UTC.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
