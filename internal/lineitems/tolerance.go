package lineitems

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// Tolerance bounds how far an amount may stray from quantity x unit price:
// |q*p - amount| <= max(Ratio*q*p, Floor).
type Tolerance struct {
	Ratio float64
	Floor float64
}

// DefaultTolerance is 10% of the computed value or one currency unit, whichever is larger.
var DefaultTolerance = Tolerance{Ratio: 0.10, Floor: 1.00}

// Accept reports whether it is plausible. Items without a positive amount are
// never accepted; items missing quantity or unit price skip the product check.
func (t Tolerance) Accept(it entity.LineItem) bool {
	if it.Amount <= 0 {
		return false
	}
	if it.Quantity <= 0 || it.UnitPrice <= 0 {
		return true
	}
	return t.fits(it.Quantity, it.UnitPrice, it.Amount)
}

func (t Tolerance) fits(qty, price, amount float64) bool {
	computed := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(price))
	diff := computed.Sub(decimal.NewFromFloat(amount)).Abs()
	allowed := decimal.Max(computed.Mul(decimal.NewFromFloat(t.Ratio)), decimal.NewFromFloat(t.Floor))
	return diff.LessThanOrEqual(allowed)
}

// Filter splits items into accepted ones (order kept) and a dropped count.
func (t Tolerance) Filter(items []entity.LineItem) ([]entity.LineItem, int) {
	kept := make([]entity.LineItem, 0, len(items))
	for _, it := range items {
		if t.Accept(it) {
			kept = append(kept, it)
		}
	}
	return kept, len(items) - len(kept)
}
