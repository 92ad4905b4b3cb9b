package lineitems

import (
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/normalize"
)

// Generic accepts any line starting with a quantity and carrying at least one
// amount; the description is whatever sits between them. With two or more
// amounts the last two are unit price and amount.
func Generic(lines []string, _ Vocabulary) []entity.LineItem {
	var out []entity.LineItem
	for _, line := range lines {
		if blacklisted(line) {
			continue
		}
		toks := strings.Fields(line)
		if len(toks) < 3 || isMoneyToken(toks[0]) {
			continue
		}
		qty, ok := parseQty(toks[0])
		if !ok || looksLikeYearQty(qty) {
			continue
		}
		money := moneyIndexes(toks)
		if len(money) == 0 || money[0] < 2 {
			continue
		}
		desc := cleanDescription(strings.Join(toks[1:money[0]], " "))
		if desc == "" {
			continue
		}
		amount := normalize.ParseMoney(toks[money[len(money)-1]])
		price := derivedPrice(amount, qty)
		if len(money) >= 2 {
			price = normalize.ParseMoney(toks[money[len(money)-2]])
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

// looksLikeYearQty filters leading calendar years such as "2024 annual fee".
func looksLikeYearQty(q float64) bool {
	return q == float64(int(q)) && q >= 1900 && q <= 2100
}
