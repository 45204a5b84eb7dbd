package numeric

import (
	"strconv"
	"strings"
)

// Parse extracts a decimal value from free-form points text as scraped from
// the leaderboard page ("$1,181.00", "1 181", "N/A", ...). Every character
// that is not a digit, '.' or '-' is stripped before parsing. The second
// return value is false when no value could be extracted.
func Parse(text string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, text)

	if cleaned == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		// Leftovers like "--" or "1.2.3" are still garbage
		return 0, false
	}
	return value, true
}

// Key returns the sort key for a pivot cell. Numeric cells pass through;
// string cells come from legacy rows that stored points as raw text and are
// parsed on the fly. Anything else counts as unparseable.
func Key(cell any) (float64, bool) {
	switch v := cell.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		return Parse(v)
	default:
		return 0, false
	}
}

// Less orders two cells for sorting. Unparseable cells sort after every
// parseable cell no matter the direction, and equal keys report false so
// that a stable sort preserves the original row order.
func Less(a, b any, descending bool) bool {
	ka, okA := Key(a)
	kb, okB := Key(b)

	if okA != okB {
		return okA
	}
	if !okA {
		return false
	}
	if descending {
		return ka > kb
	}
	return ka < kb
}
