package util

import (
	"fmt"
	"time"
)

// ParseYYYYMMDD parses a compact date like "20250103" in loc.
func ParseYYYYMMDD(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("20060102", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatYYYYMMDD renders t as a compact date in its own location.
func FormatYYYYMMDD(t time.Time) string {
	return t.Format("20060102")
}
