package collector

import (
	"encoding/json"
	"strconv"
	"strings"
)

// asFloat coerces a loosely typed upstream value to float64. Present but
// unparseable values ("-", "", garbage) fall back instead of raising:
// malformed data is accepted with defaults, never rejected.
func asFloat(value interface{}, fallback float64) float64 {
	switch v := value.(type) {
	case nil:
		return fallback
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return fallback
		}
		return f
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return fallback
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fallback
		}
		return f
	default:
		return fallback
	}
}
