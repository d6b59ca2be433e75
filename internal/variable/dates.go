package variable

import (
	"fmt"
	"strings"
	"time"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

// FormatDate renders ISO-8601 with millis in UTC.
func FormatDate(t time.Time) string { return t.UTC().Format(isoMillis) }

// FormatDatePtr renders nil as nil so optional dates serialize as JSON null.
func FormatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatDate(*t)
	return &s
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate accepts the ISO-8601 shapes clients send. Zone-less values are UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
