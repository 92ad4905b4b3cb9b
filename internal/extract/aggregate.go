package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/fields"
	"github.com/joseph-ayodele/invoice-extractor/internal/normalize"
)

// DefaultDescriptionLimit bounds a description synthesized from the first line item.
const DefaultDescriptionLimit = 100

// Aggregate merges header fields and line items into a record. A missing total
// becomes the sum of item amounts; a missing description becomes the first
// item's description, truncated to limit runes. Nothing else is checked.
func Aggregate(h fields.Header, items []entity.LineItem, limit int) entity.ExtractedRecord {
	if limit <= 0 {
		limit = DefaultDescriptionLimit
	}
	rec := entity.ExtractedRecord{
		CounterpartyName: h.CounterpartyName,
		DocumentID:       h.DocumentID,
		DocumentDate:     h.DocumentDate,
		DueDate:          h.DueDate,
		Terms:            h.Terms,
		Description:      h.Description,
		LineItems:        append([]entity.LineItem{}, items...),
		TotalAmount:      h.Total,
		Notes:            []string{},
	}
	if rec.TotalAmount == 0 {
		rec.TotalAmount = SumAmounts(items)
	}
	if rec.Description == "" && len(items) > 0 {
		rec.Description = Truncate(items[0].Description, limit)
	}
	return rec
}

// SumAmounts adds item amounts exactly, rounded to cents.
func SumAmounts(items []entity.LineItem) float64 {
	amounts := make([]float64, len(items))
	for i, it := range items {
		amounts[i] = it.Amount
	}
	return normalize.SumMoney(amounts...)
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:limit]))
}
