package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// CoerceTimestamp normalizes the three timestamp encodings the reconciliation
// layer can see on read: the store's native time value, an ISO-8601 string
// (local persistence), or an epoch-milliseconds integer. Writes to the remote
// side always use the native time type; this only widens the read path.
func CoerceTimestamp(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("timestamp is nil")
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return time.Time{}, fmt.Errorf("timestamp is nil")
		}
		return *t, nil
	case string:
		return parseTimestampString(t)
	case int64:
		return time.UnixMilli(t), nil
	case int:
		return time.UnixMilli(int64(t)), nil
	case float64:
		return time.UnixMilli(int64(t)), nil
	case json.Number:
		millis, err := t.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp number %q: %w", t.String(), err)
		}
		return time.UnixMilli(millis), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseTimestampString(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp string is empty")
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	// SQLite's datetime() output has no T separator or zone.
	if ts, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return ts.UTC(), nil
	}
	if millis, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(millis), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
