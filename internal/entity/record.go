package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// LineItem is one validated row of an invoice body.
type LineItem struct {
	Quantity    float64 `json:"quantity"`
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date,omitempty"`
}

// ExtractedRecord is the structured result of one extraction.
// Missing money is 0 and missing dates are "".
type ExtractedRecord struct {
	CounterpartyName string     `json:"counterparty_name"`
	DocumentID       string     `json:"document_id"`
	DocumentDate     string     `json:"document_date"`
	DueDate          string     `json:"due_date"`
	Terms            string     `json:"terms"`
	Description      string     `json:"description"`
	LineItems        []LineItem `json:"line_items"`
	TotalAmount      float64    `json:"total_amount"`
	Notes            []string   `json:"notes"`
}

// HeaderFieldCount counts the non-empty header fields.
func (r ExtractedRecord) HeaderFieldCount() int {
	n := 0
	for _, v := range []string{r.CounterpartyName, r.DocumentID, r.DocumentDate, r.DueDate, r.Terms, r.Description} {
		if v != "" {
			n++
		}
	}
	if r.TotalAmount > 0 {
		n++
	}
	return n
}

// IsEmpty reports a record with neither header fields nor line items.
func (r ExtractedRecord) IsEmpty() bool {
	return len(r.LineItems) == 0 && r.HeaderFieldCount() == 0
}

// StoredRecord is an ExtractedRecord with its provenance, as persisted.
type StoredRecord struct {
	ID          uuid.UUID                   `json:"id"`
	SourcePath  string                      `json:"source_path"`
	Filename    string                      `json:"filename"`
	ContentHash string                      `json:"content_hash"`
	Channel     constants.Channel           `json:"channel"`
	Method      constants.AcquisitionMethod `json:"method"`
	Template    string                      `json:"template"`
	Status      constants.RecordStatus      `json:"status"`
	Error       string                      `json:"error,omitempty"`
	Record      ExtractedRecord             `json:"record"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}
