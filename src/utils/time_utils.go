package utils

import (
	"fmt"
	"strings"
	"time"
)

// Layouts seen in broker account statements, most specific first.
var executionTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"1/2/06 15:04:05",
	"1/2/2006 15:04:05",
	"01/02/2006 15:04:05",
	"1/2/06 15:04",
	"1/2/2006 15:04",
}

var dateLayouts = []string{
	"2006-01-02",
	"2 Jan 06",
	"02 Jan 06",
	"2 Jan 2006",
	"1/2/06",
	"1/2/2006",
	"01/02/2006",
}

// ParseExecutionTime parses an execution timestamp. Values without an offset
// are interpreted in loc (UTC when nil). The result is always in UTC.
func ParseExecutionTime(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range executionTimeLayouts[1:] {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// ParseDate parses a calendar date such as an option expiration.
// Month names are accepted in any case ("17 MAY 24").
func ParseDate(value string) (*time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, nil
	}
	v = titleMonth(v)

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", value)
}

// LoadLocation resolves an IANA zone name; empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

func titleMonth(v string) string {
	parts := strings.Fields(v)
	for i, p := range parts {
		if len(p) == 3 && isLetters(p) {
			parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
		}
	}
	return strings.Join(parts, " ")
}

func isLetters(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
