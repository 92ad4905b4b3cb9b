package lineitems

import (
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/normalize"
	"github.com/joseph-ayodele/invoice-extractor/internal/rules"
)

// DescriptionFirst handles layouts where a product-like line carries the
// description and the quantity and amounts sit on it or on the line below.
func DescriptionFirst(lines []string, v Vocabulary) []entity.LineItem {
	isProduct := rules.ProductMatcher(v.Nouns)
	units := lowerSet(v.Units)

	var out []entity.LineItem
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if blacklisted(line) || !isProduct(line) {
			continue
		}

		toks := strings.Fields(line)
		lineLen := len(toks)
		joined := false
		money := moneyIndexes(toks)
		if len(money) < 2 && i+1 < len(lines) && !blacklisted(lines[i+1]) && !isProduct(lines[i+1]) {
			toks = append(toks, strings.Fields(lines[i+1])...)
			money = moneyIndexes(toks)
			joined = true
		}
		if len(money) < 2 {
			continue
		}
		priceIdx, amountIdx := money[len(money)-2], money[len(money)-1]

		qtyIdx, qty := locateQty(toks, lineLen, joined, priceIdx, units)
		if qtyIdx < 0 {
			continue
		}

		end := min(lineLen, money[0])
		if qtyIdx > 0 && qtyIdx < end {
			end = qtyIdx
		}
		start := 0
		if qtyIdx == 0 {
			start = 1
			if start < end && units[strings.ToLower(strings.TrimSuffix(toks[start], "."))] {
				start++
			}
		}
		if start >= end {
			continue
		}
		desc := cleanDescription(strings.Join(toks[start:end], " "))
		if desc == "" {
			continue
		}

		out = append(out, entity.LineItem{
			Quantity:    qty,
			Description: desc,
			UnitPrice:   normalize.ParseMoney(toks[priceIdx]),
			Amount:      normalize.ParseMoney(toks[amountIdx]),
		})
		if joined {
			i++
		}
	}
	return out
}

// locateQty looks for the quantity at the start of the product line, then at
// the start of the following line, then as the last bare number before the price.
func locateQty(toks []string, lineLen int, joined bool, priceIdx int, units map[string]bool) (int, float64) {
	if q, ok := parseQty(toks[0]); ok && !isMoneyToken(toks[0]) {
		return 0, q
	}
	if joined && lineLen < len(toks) {
		if q, ok := parseQty(toks[lineLen]); ok && !isMoneyToken(toks[lineLen]) {
			return lineLen, q
		}
	}
	for i := priceIdx - 1; i > 0; i-- {
		t := toks[i]
		if units[strings.ToLower(t)] {
			continue
		}
		if isMoneyToken(t) {
			continue
		}
		if q, ok := parseQty(t); ok {
			return i, q
		}
		break
	}
	return -1, 0
}

func lowerSet(words []string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[strings.ToLower(strings.TrimSpace(w))] = true
	}
	return out
}
