package lineitems

import (
	"encoding/csv"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/normalize"
)

var (
	reDateCol   = regexp.MustCompile(`\bdate\b`)
	reQtyCol    = regexp.MustCompile(`^(?:qty|quantity|units?|hours|hrs|count)\b`)
	reExtCol    = regexp.MustCompile(`\b(?:ext|extended|line\s+total)\b`)
	rePriceCol  = regexp.MustCompile(`\b(?:unit\s+price|unit\s+cost|price|rate)\b`)
	reAmountCol = regexp.MustCompile(`\b(?:amount|total|charge|cost|value)\b`)
	reDescCol   = regexp.MustCompile(`\b(?:description|desc|item|product|service|details|particulars|memo|name)\b`)
	reRefCol    = regexp.MustCompile(`\b(?:invoice|inv|reference|ref|document|doc|number|no|id)\b`)
	reColJunk   = regexp.MustCompile(`[^a-z ]+`)
)

// columns holds header positions; -1 means absent.
type columns struct {
	qty, price, amount, date, desc, ref int
}

func (c columns) maxIndex() int {
	return max(c.qty, c.price, c.amount, c.date, c.desc, c.ref)
}

// Delimited reads comma-separated tables: a header row naming at least an
// amount or price column followed by data rows with the same shape. This is
// how flattened spreadsheets arrive. Missing quantity defaults to 1 and a
// missing unit price is derived from the amount.
func Delimited(lines []string, _ Vocabulary) []entity.LineItem {
	var (
		out    []entity.LineItem
		header *columns
	)
	for _, line := range lines {
		cells, ok := splitDelimited(line)
		if !ok {
			header = nil
			continue
		}
		if cols, isHeader := headerColumns(cells); isHeader {
			header = &cols
			continue
		}
		if header == nil {
			continue
		}
		if len(cells) <= header.maxIndex() {
			header = nil
			continue
		}
		if blacklisted(strings.Join(cells, " ")) {
			continue
		}
		if it, ok := rowItem(cells, *header); ok {
			out = append(out, it)
		}
	}
	return out
}

func splitDelimited(line string) ([]string, bool) {
	if !strings.Contains(line, ",") {
		return nil, false
	}
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	rec, err := r.Read()
	if err != nil || len(rec) < 2 {
		return nil, false
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
	return rec, true
}

// headerColumns classifies a row as a header when no cell carries digits and
// an amount or price column is named.
func headerColumns(cells []string) (columns, bool) {
	cols := columns{qty: -1, price: -1, amount: -1, date: -1, desc: -1, ref: -1}
	named := 0
	for i, raw := range cells {
		if strings.ContainsAny(raw, "0123456789") || len(raw) > 40 {
			return cols, false
		}
		c := strings.TrimSpace(reColJunk.ReplaceAllString(strings.ToLower(raw), " "))
		if c == "" {
			continue
		}
		var role *int
		switch {
		case reDateCol.MatchString(c):
			role = &cols.date
		case reQtyCol.MatchString(c):
			role = &cols.qty
		case reExtCol.MatchString(c):
			role = &cols.amount
		case rePriceCol.MatchString(c):
			role = &cols.price
		case reAmountCol.MatchString(c):
			role = &cols.amount
		case reDescCol.MatchString(c):
			role = &cols.desc
		case reRefCol.MatchString(c):
			role = &cols.ref
		}
		if role != nil && *role < 0 {
			*role = i
			named++
		}
	}
	if cols.amount < 0 {
		cols.amount, cols.price = cols.price, -1
	}
	return cols, cols.amount >= 0 && named >= 2
}

func rowItem(cells []string, cols columns) (entity.LineItem, bool) {
	amountDec, ok := normalize.ParseMoneyDecimal(cells[cols.amount])
	if !ok || amountDec.IsZero() {
		return entity.LineItem{}, false
	}
	amount := amountDec.InexactFloat64()

	qty := 1.0
	if cols.qty >= 0 {
		q, err := strconv.ParseFloat(strings.ReplaceAll(cells[cols.qty], ",", ""), 64)
		if err != nil || q <= 0 {
			return entity.LineItem{}, false
		}
		qty = q
	}

	price := derivedPrice(amount, qty)
	if cols.price >= 0 {
		if p := normalize.ParseMoney(cells[cols.price]); p > 0 {
			price = p
		}
	}

	it := entity.LineItem{
		Quantity:    qty,
		Description: rowDescription(cells, cols),
		UnitPrice:   price,
		Amount:      amount,
	}
	if cols.date >= 0 {
		it.Date = normalize.NormalizeDate(cells[cols.date])
	}
	return it, it.Description != ""
}

// rowDescription prefers the description column, then the reference column,
// then the first unclaimed cell containing a letter.
func rowDescription(cells []string, cols columns) string {
	for _, i := range []int{cols.desc, cols.ref} {
		if i >= 0 && strings.TrimSpace(cells[i]) != "" {
			return strings.Join(strings.Fields(cells[i]), " ")
		}
	}
	for i, c := range cells {
		if i == cols.qty || i == cols.price || i == cols.amount || i == cols.date {
			continue
		}
		if d := cleanDescription(c); d != "" {
			return d
		}
	}
	return ""
}
