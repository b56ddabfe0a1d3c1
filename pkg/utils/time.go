package utils

import "time"

// Now returns the current UTC time truncated to the precision stores keep.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// FormatRFC3339 formats t in RFC3339 with nanoseconds
func FormatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseRFC3339 parses a time string in RFC3339 format
func ParseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
