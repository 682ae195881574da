package generic

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal helpers shared by the interest and fleet calculators
// =============================================================================

// Amounts are carried unrounded through every calculation and rounded to
// cents only when presented.

var (
	hundred = decimal.NewFromInt(100)

	// DaysPerYear is the simple-interest day-count basis (actual/365).
	DaysPerYear = decimal.NewFromInt(365)
)

// Cents rounds half away from zero to two decimal places.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// PercentToRate converts 6 (percent) to 0.06.
func PercentToRate(pct decimal.Decimal) decimal.Decimal {
	return pct.Div(hundred)
}

// RateToPercent converts 0.06 to 6.
func RateToPercent(rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(hundred)
}

// PercentOf returns pct% of base.
func PercentOf(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// SafeDiv returns num/den, or zero when den is zero.
func SafeDiv(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

// Sum adds the values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// FormatEUR renders an amount with dot thousands and comma decimals:
// 1234.5 -> "1.234,50 €".
func FormatEUR(d decimal.Decimal) string {
	s := Cents(d).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String() + "," + frac + " €"
	if neg {
		return "-" + out
	}
	return out
}
