package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reMoneyJunk     = regexp.MustCompile(`[^0-9.,]`)
	reDecimalComma  = regexp.MustCompile(`^\d{1,3}(\.\d{3})*,\d{2}$|^\d+,\d{2}$`)
	reThousandsOnly = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
)

// ParseMoney strips currency symbols and thousands separators and returns the
// amount rounded to cents. Anything non-numeric yields 0. Signs are dropped;
// money values are non-negative.
func ParseMoney(raw string) float64 {
	d, ok := ParseMoneyDecimal(raw)
	if !ok {
		return 0
	}
	return d.InexactFloat64()
}

// ParseMoneyDecimal is ParseMoney returning the exact decimal and whether parsing succeeded.
func ParseMoneyDecimal(raw string) (decimal.Decimal, bool) {
	s := reMoneyJunk.ReplaceAllString(strings.TrimSpace(raw), "")
	s = strings.Trim(s, ".,")
	if s == "" {
		return decimal.Zero, false
	}
	switch {
	case reDecimalComma.MatchString(s):
		// 1.234,56 or 12,50
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case reThousandsOnly.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ",", "")
	}
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d.Abs().Round(2), true
}

// RoundMoney rounds v to cents.
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// SumMoney adds amounts exactly and rounds the result to cents.
func SumMoney(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.Round(2).InexactFloat64()
}

// FormatMoney renders v with exactly two decimals and no symbols ("3431.58").
func FormatMoney(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatCurrency renders v as dollar text with thousands separators ("$3,431.58").
func FormatCurrency(v float64) string {
	fixed := FormatMoney(v)
	whole, frac, _ := strings.Cut(fixed, ".")
	neg := strings.HasPrefix(whole, "-")
	whole = strings.TrimPrefix(whole, "-")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
