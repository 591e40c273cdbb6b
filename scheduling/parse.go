// ABOUTME: Parses user-supplied times and date ranges for the CLI, HTTP, and MCP surfaces
package scheduling

import (
	"fmt"
	"strings"
	"time"
)

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTime accepts RFC 3339, or a wall-clock time without offset that is
// read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC 3339 like 2024-01-15T14:00:00Z", s)
}

// ParseRange parses a [start, end) range. Either bound may be a plain date
// (2006-01-02) read in loc; a plain end date includes that whole day.
func ParseRange(start, end string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	from, err := parseBound(start, loc, false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseBound(end, loc, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func parseBound(s string, loc *time.Location, inclusiveDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		if inclusiveDay {
			d = d.AddDate(0, 0, 1)
		}
		return d.UTC(), nil
	}
	return ParseTime(s, loc)
}
