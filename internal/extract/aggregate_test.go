package extract

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/fields"
)

var _ = Describe("Aggregate", func() {
	items := []entity.LineItem{
		{Quantity: 1, Description: "Freight service", UnitPrice: 0.1, Amount: 0.1},
		{Quantity: 1, Description: "Labor", UnitPrice: 0.2, Amount: 0.2},
	}

	It("keeps an explicit total even when items disagree", func() {
		rec := Aggregate(fields.Header{Total: 99.99}, items, 0)
		Expect(rec.TotalAmount).To(Equal(99.99))
	})

	It("sums item amounts exactly when no total was found", func() {
		rec := Aggregate(fields.Header{}, items, 0)
		Expect(rec.TotalAmount).To(Equal(0.3))
	})

	It("keeps an extracted description", func() {
		rec := Aggregate(fields.Header{Description: "March service"}, items, 0)
		Expect(rec.Description).To(Equal("March service"))
	})

	It("truncates by runes", func() {
		rec := Aggregate(fields.Header{}, []entity.LineItem{{Description: "Überholung Pumpe", Amount: 1}}, 5)
		Expect(rec.Description).To(Equal("Überh"))
	})

	It("returns empty collections rather than nil", func() {
		rec := Aggregate(fields.Header{}, nil, 0)
		Expect(rec.LineItems).NotTo(BeNil())
		Expect(rec.Notes).NotTo(BeNil())
		Expect(rec.TotalAmount).To(BeZero())
	})
})

var _ = Describe("ValidateRecord", func() {
	It("rejects impossible dates", func() {
		err := ValidateRecord(entity.ExtractedRecord{DocumentDate: "2025-13-01", LineItems: []entity.LineItem{}})
		Expect(err).To(MatchError(common.ErrValidation))
	})

	It("rejects negative money", func() {
		err := ValidateRecord(entity.ExtractedRecord{TotalAmount: -5, LineItems: []entity.LineItem{}})
		Expect(err).To(MatchError(common.ErrValidation))
	})

	It("accepts an empty record", func() {
		Expect(ValidateRecord(entity.ExtractedRecord{LineItems: []entity.LineItem{}})).To(Succeed())
	})

	It("rejects a null line item list", func() {
		Expect(ValidateRecordJSON([]byte(`{"counterparty_name":"","document_id":"","document_date":"","due_date":"","terms":"","description":"","line_items":null,"total_amount":0}`))).
			To(MatchError(common.ErrValidation))
	})
})
