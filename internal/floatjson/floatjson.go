// Package floatjson encodes metric maps as JSON without losing non-finite
// values. Finite values are plain JSON numbers; NaN, +Inf and -Inf are the
// strings "NaN", "+Inf" and "-Inf".
package floatjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Map is a metric map with lossless JSON encoding.
type Map map[string]float64

// MarshalJSON implements json.Marshaler. Keys are sorted.
func (m Map) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = value(v)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Map) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Map, len(raw))
	for k, r := range raw {
		v, err := parse(r)
		if err != nil {
			return fmt.Errorf("metric %q: %w", k, err)
		}
		out[k] = v
	}
	*m = out
	return nil
}

func value(v float64) any {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	default:
		return v
	}
}

func parse(r json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(r, &s); err == nil {
		switch s {
		case "NaN":
			return math.NaN(), nil
		case "+Inf", "Inf":
			return math.Inf(1), nil
		case "-Inf":
			return math.Inf(-1), nil
		}
		return 0, fmt.Errorf("invalid value %q", s)
	}
	var v float64
	if err := json.Unmarshal(r, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
