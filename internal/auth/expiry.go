package auth

import (
	"fmt"
	"strings"
	"time"
)

// naiveLayouts are accepted for stored timestamps that carry no zone; they are read as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseStoredTime parses a timestamp persisted as text. Zone-qualified values keep their
// offset; values without zone information are assumed to be UTC.
func ParseStoredTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("parse stored time: empty value")
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse stored time %q: unrecognized layout", raw)
}

// FormatStoredTime renders t in the zone-qualified form understood by ParseStoredTime.
func FormatStoredTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
