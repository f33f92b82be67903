package util

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the calendar-date layout used on the wire and in storage.
const DateLayout = "2006-01-02"

var dateLayouts = []string{DateLayout, "20060102", time.RFC3339}

// ParseDate accepts YYYY-MM-DD, YYYYMMDD, RFC3339 and unix seconds and
// returns the UTC calendar date.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TruncateDay(t), true
		}
	}
	if len(s) > 8 {
		if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
			return TruncateDay(time.Unix(ts, 0)), true
		}
	}
	return time.Time{}, false
}

// MustDate is ParseDate returning an error for flag and config values.
func MustDate(s string) (time.Time, error) {
	t, ok := ParseDate(s)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid date %q, want %s", s, DateLayout)
	}
	return t, nil
}

// ParseDateDefault parses a date or returns def if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, ok := ParseDate(s); ok {
		return t
	}
	return def
}

// TruncateDay drops the clock part in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
