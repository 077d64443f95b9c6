// Package reading defines the observation type delivered by source
// transports and the payload formats it is parsed from.
package reading

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Reading is a single raw sensor observation: the scalar value and the
// monotonic arrival timestamp in milliseconds assigned by the source.
// Readings are ephemeral; the engine never stores them individually once
// absorbed into an accumulator.
type Reading struct {
	Sensor    string
	Value     float64
	Timestamp int64
}

// jsonPayload is the structured wire form some devices publish.
type jsonPayload struct {
	Value *float64 `json:"value"`
	State *float64 `json:"state"`
}

// ParseValue extracts a scalar from a raw payload. Devices publish either a
// bare numeric string ("21.37") or a small JSON object with a value or state
// field; anything else is rejected.
func ParseValue(payload []byte) (float64, error) {
	s := strings.TrimSpace(string(payload))
	if s == "" {
		return 0, ErrEmptyPayload
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}

	var p jsonPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, ErrMalformedPayload
	}
	switch {
	case p.Value != nil:
		return *p.Value, nil
	case p.State != nil:
		return *p.State, nil
	}
	return 0, ErrNoValueField
}
