package symbol

import "strings"

// 股票代码规范化
//
// Upstream endpoints spell the same instrument several ways: bare digits
// ("600519"), exchange-prefixed ("sh600519"), suffixed ("600519.SH"), or
// short codes with the leading zeros dropped ("1" for 平安银行). ToCode maps
// all of them to the canonical 6-digit form. Normalizing an already
// normalized code is a no-op.
func ToCode(value string) string {
	raw := strings.ToLower(strings.TrimSpace(value))
	for _, prefix := range []string{"sh", "sz", "bj"} {
		if strings.HasPrefix(raw, prefix) {
			raw = raw[len(prefix):]
			break
		}
	}
	for _, suffix := range []string{".sh", ".sz", ".bj"} {
		if strings.HasSuffix(raw, suffix) {
			raw = raw[:len(raw)-len(suffix)]
			break
		}
	}
	if len(raw) >= 6 {
		return raw
	}
	return strings.Repeat("0", 6-len(raw)) + raw
}

// IsShanghai reports whether the code is Shanghai-listed. Venue is derived
// from the leading digit (5/6/9: SSE funds, main board and B shares), never
// stored separately.
func IsShanghai(code string) bool {
	normalized := ToCode(code)
	return strings.HasPrefix(normalized, "5") ||
		strings.HasPrefix(normalized, "6") ||
		strings.HasPrefix(normalized, "9")
}

// ToCanonicalSymbol returns the venue-qualified identifier used by the
// canonical frame schema, e.g. "600519.SH" / "000001.SZ".
func ToCanonicalSymbol(code string) string {
	normalized := ToCode(code)
	if IsShanghai(normalized) {
		return normalized + ".SH"
	}
	return normalized + ".SZ"
}

// ExchangeFromCode maps a code to its exchange identifier.
func ExchangeFromCode(code string) string {
	if IsShanghai(code) {
		return "SSE"
	}
	return "SZSE"
}

// SecID builds the eastmoney security id ("1.600519" / "0.000001").
func SecID(code string) string {
	normalized := ToCode(code)
	if IsShanghai(normalized) {
		return "1." + normalized
	}
	return "0." + normalized
}

// WithVenuePrefix builds the sina spelling ("sh600519" / "sz000001").
func WithVenuePrefix(code string) string {
	normalized := ToCode(code)
	if IsShanghai(normalized) {
		return "sh" + normalized
	}
	return "sz" + normalized
}
