package generic

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT PARSING - Operator-entered amounts and dates
// =============================================================================

// dateLayouts are tried in order. Two-digit years follow Go's pivot
// (69-99 => 19xx, 00-68 => 20xx).
var dateLayouts = []string{
	DateLayout,
	"02/01/2006",
	"2/1/06",
	"02-01-2006",
	"2-1-06",
	"2/1/2006",
	"2-1-2006",
}

// ParseDate accepts ISO (2025-02-12) and day-first forms (12/02/2025,
// 12/2/25, 12-02-2025, 12-2-25).
func ParseDate(s string) (TimePoint, error) {
	raw := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return FromTime(t), nil
		}
	}
	return TimePoint{}, &FieldError{Field: "date", Value: s, Err: ErrMalformedInput}
}

// ParseAmount parses a decimal amount typed with either separator style.
//
// When both ',' and '.' appear, the rightmost one is the decimal separator
// and the other is a thousands separator ("1.234,56" and "1,234.56" are both
// 1234.56). A lone ',' is a decimal comma ("12,5" is 12.5). Empty input is
// rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return decimal.Zero, &FieldError{Field: "amount", Value: s, Err: ErrMalformedInput}
	}

	normalized := raw
	comma, dot := strings.LastIndex(raw, ","), strings.LastIndex(raw, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		normalized = strings.ReplaceAll(raw, ".", "")
		normalized = strings.ReplaceAll(normalized, ",", ".")
	case comma >= 0 && dot >= 0:
		normalized = strings.ReplaceAll(raw, ",", "")
	default:
		normalized = strings.ReplaceAll(raw, ",", ".")
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, &FieldError{Field: "amount", Value: s, Err: ErrMalformedInput}
	}
	return d, nil
}

// ParseOptionalAmount treats blank input as zero.
func ParseOptionalAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return ParseAmount(s)
}
