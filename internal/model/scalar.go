package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Scalar is a JSON value kept in its text form. Strings decode to their
// contents, numbers and booleans to their literal, null to "". Objects and
// arrays keep their raw JSON so decoding never fails on an unexpected shape.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*s = ""
	case data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
	default:
		*s = Scalar(data)
	}
	return nil
}

func (s Scalar) String() string {
	return string(s)
}

// timeLayouts are the timestamp formats servers are known to send.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02",
}

// Time parses s as a timestamp. Integers are Unix time, in milliseconds when
// they are too large to be seconds. ok is false when nothing matches.
func (s Scalar) Time() (time.Time, bool) {
	str := string(s)
	if str == "" {
		return time.Time{}, false
	}

	if n, err := strconv.ParseInt(str, 10, 64); err == nil {
		if n > 1e11 || n < -1e11 {
			return time.UnixMilli(n), true
		}
		return time.Unix(n, 0), true
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
