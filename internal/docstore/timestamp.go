package docstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is the store's native point-in-time value.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// TimestampOf converts t to a Timestamp.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time returns the timestamp as a UTC time.Time.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

func (ts Timestamp) String() string {
	return ts.Time().Format(time.RFC3339Nano)
}

const (
	wireSeconds = "_seconds"
	wireNanos   = "_nanoseconds"
)

// MarshalJSON encodes the timestamp in its wire form.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]int64{
		wireSeconds: ts.Seconds,
		wireNanos:   int64(ts.Nanos),
	})
}

// UnmarshalJSON decodes the wire form.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var raw map[string]int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode timestamp: %w", err)
	}
	ts.Seconds = raw[wireSeconds]
	ts.Nanos = int32(raw[wireNanos])
	return nil
}

// timestampFromWire recognises a decoded wire-form object.
func timestampFromWire(m map[string]any) (Timestamp, bool) {
	if len(m) != 2 {
		return Timestamp{}, false
	}
	s, ok1 := m[wireSeconds].(float64)
	n, ok2 := m[wireNanos].(float64)
	if !ok1 || !ok2 {
		return Timestamp{}, false
	}
	return Timestamp{Seconds: int64(s), Nanos: int32(n)}, true
}
