package validation

import (
	"time"

	"github.com/core-coin/tabula/internal/fault"
)

// ParseTimestamp parses an ISO 8601 / RFC3339 UTC timestamp used in query
// filters. An invalid format is a caller error, never silently ignored.
func ParseTimestamp(name, value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fault.Newf(fault.Validation, "invalid %s, must be ISO 8601 date string if specified: (%s)", name, value)
	}
	return ts.UTC(), nil
}
