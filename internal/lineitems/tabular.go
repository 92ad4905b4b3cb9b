package lineitems

import (
	"math"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/normalize"
)

const (
	qtyPattern       = `(\d+(?:\.\d{1,3})?)`
	unitPricePattern = `\$?((?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2,4})`
	amountPattern    = `\$?((?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2})`
)

// priceUnitDivisors maps pricing units quoted per hundred or per thousand.
var priceUnitDivisors = map[string]float64{
	"cw":  100,
	"cwt": 100,
	"m":   1000,
}

// tabularPattern matches "qty [unit] description unit-price [price-unit] amount".
func tabularPattern(v Vocabulary) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?i)^`)
	b.WriteString(qtyPattern)
	b.WriteString(`\s+`)
	if units := alternation(v.Units); units != "" {
		b.WriteString(`(?:(` + units + `)\.?\s+)?`)
	} else {
		b.WriteString(`()`)
	}
	b.WriteString(`(.+?)\s+`)
	b.WriteString(unitPricePattern)
	if pu := alternation(v.PriceUnits); pu != "" {
		b.WriteString(`(?:\s*(?:/|per)?\s*(` + pu + `)\b\.?)?`)
	} else {
		b.WriteString(`()`)
	}
	b.WriteString(`\s+`)
	b.WriteString(amountPattern)
	b.WriteString(`$`)
	return regexp.MustCompile(b.String())
}

// Tabular reads one item per line laid out as quantity, optional unit token,
// description, unit price, optional pricing unit and amount.
func Tabular(lines []string, v Vocabulary) []entity.LineItem {
	re := tabularPattern(v)
	units := lowerSet(v.Units)
	var out []entity.LineItem
	for _, line := range lines {
		if blacklisted(line) {
			continue
		}
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		qty, ok := parseQty(m[1])
		if !ok {
			continue
		}
		desc := cleanDescription(m[3])
		if desc == "" || units[strings.ToLower(strings.TrimSuffix(desc, "."))] {
			continue
		}
		price := normalize.ParseMoney(m[4])
		amount := normalize.ParseMoney(m[6])
		if d, ok := priceUnitDivisors[strings.ToLower(m[5])]; ok {
			price = perUnitPrice(qty, price, amount, d)
		}
		out = append(out, entity.LineItem{
			Quantity:    qty,
			Description: desc,
			UnitPrice:   price,
			Amount:      amount,
		})
	}
	return out
}

// perUnitPrice rescales a price quoted per hundred/thousand units when that
// explains the amount better than the raw price does.
func perUnitPrice(qty, price, amount, divisor float64) float64 {
	raw := math.Abs(qty*price - amount)
	scaled := math.Abs(qty*price/divisor - amount)
	if scaled < raw {
		return normalize.RoundMoney(price / divisor)
	}
	return price
}
