package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryDate reads a calendar date (YYYY-MM-DD) or an RFC3339 timestamp.
// Plain dates are interpreted in loc. ok is false when the parameter is absent.
func ParseQueryDate(r *http.Request, key string, loc *time.Location) (value time.Time, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, false, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if day, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return day, true, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a date").WithDetails(map[string]any{"field": key})
	}
	return ts.In(loc), true, nil
}
