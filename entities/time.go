package entities

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// UnixTime is an epoch timestamp in seconds. The provider sends it either as a JSON number or as a
// numeric string, both are accepted.
type UnixTime int64

func (t *UnixTime) UnmarshalJSON(data []byte) error {
	raw := bytes.Trim(data, `"`)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*t = 0
		return nil
	}
	if v, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		*t = UnixTime(v)
		return nil
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return fmt.Errorf("parsing unix time [%s]: %w", string(data), err)
	}
	*t = UnixTime(int64(v))
	return nil
}

func (t UnixTime) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(t), 10), nil
}

func (t UnixTime) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}
