package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// TimestampLayout is the layout used when events are written back out.
const TimestampLayout = "2006-01-02T15:04:05.999999"

// Timestamp is an event time embedded in a record. Values without a zone are UTC.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// ParseTimestamp accepts ISO-8601 with or without zone and most other common layouts.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return NewTimestamp(t), nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(TimestampLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
		parsed, err := ParseTimestamp(s)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}

	// epoch milliseconds, as written by the catalog changelog
	var millis int64
	if err := json.Unmarshal(data, &millis); err != nil {
		return fmt.Errorf("invalid timestamp %s: must be a string or epoch milliseconds", string(data))
	}
	*t = NewTimestamp(time.UnixMilli(millis))
	return nil
}
