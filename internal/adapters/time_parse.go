package adapters

import (
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp reads a stored timestamp. Unreadable values are the zero time.
func parseTimestamp(value string) time.Time {
	parsed, ok := parseLayouts(value)
	if !ok {
		return time.Time{}
	}
	return parsed
}

// ParseAsOf reads a user supplied point in time for historical store reads.
// An empty value means "latest" and yields the zero time.
func ParseAsOf(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	parsed, ok := parseLayouts(value)
	if !ok {
		return time.Time{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("as-of must be RFC3339 or YYYY-MM-DD, got " + value)
	}
	return parsed, nil
}

func parseLayouts(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}
