package fields

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/invoice-extractor/internal/templates"
)

var _ = Describe("Extractor", func() {
	var (
		reg  *templates.Registry
		ex   *Extractor
		text string
		h    Header
	)

	BeforeEach(func() {
		reg = templates.DefaultRegistry()
		ex = NewExtractor(nil, WithKnownCompanies(reg.KnownCompanies()))
	})

	JustBeforeEach(func() {
		h = ex.Extract(text, reg.Recognize(text))
	})

	When("the document is a typical invoice", func() {
		BeforeEach(func() {
			text = "ACME STEEL SUPPLY LLC\n123 Mill Road\nInvoice 9165009\nInvoice Date: 10/02/2025\nDue Date: 11/01/2025\nTerms: NET 30\n\n" +
				"Bill To:\nWidget Works Inc.\nPO #: 445566\n\n10 EA STEEL SHEET 66.50 CW 665.00\nTotal $3,431.58"
		})

		It("fills every header field", func() {
			Expect(h.CounterpartyName).To(Equal("ACME STEEL SUPPLY LLC"))
			Expect(h.DocumentID).To(Equal("9165009"))
			Expect(h.DocumentDate).To(Equal("2025-10-02"))
			Expect(h.DueDate).To(Equal("2025-11-01"))
			Expect(h.Terms).To(Equal("NET 30"))
			Expect(h.Total).To(Equal(3431.58))
			Expect(h.Sources).To(HaveKeyWithValue(templates.FieldCounterparty, "entity_suffix"))
		})
	})

	When("the only company-like line sits in the bill-to block", func() {
		BeforeEach(func() {
			text = "INVOICE\nBill To:\nWidget Works Inc.\n\nSold By: Northwind Traders\nInvoice No: 55501"
		})

		It("falls through to the labeled field", func() {
			Expect(h.CounterpartyName).To(Equal("Northwind Traders"))
			Expect(h.DocumentID).To(Equal("55501"))
		})
	})

	When("a known company name appears in any case", func() {
		BeforeEach(func() {
			text = "summit freight lines\nfreight bill\nPRO No: 120-443-981"
		})

		It("uses the literal company name", func() {
			Expect(h.CounterpartyName).To(Equal("Summit Freight Lines"))
			Expect(h.Sources[templates.FieldCounterparty]).To(Equal("literal"))
			Expect(h.DocumentID).To(Equal("120-443-981"))
		})
	})

	When("the letterhead is an all-caps heading", func() {
		BeforeEach(func() {
			text = "BLUE RIDGE HARDWARE\nInvoice # A-10023\nDescription: Shop supplies for March"
		})

		It("uses the heading and the labeled description", func() {
			Expect(h.CounterpartyName).To(Equal("BLUE RIDGE HARDWARE"))
			Expect(h.DocumentID).To(Equal("A-10023"))
			Expect(h.Description).To(Equal("Shop supplies for March"))
		})
	})

	When("the first identifier candidate is a bare year", func() {
		BeforeEach(func() {
			text = "Invoice 2024\nReference No: RX-88812"
		})

		It("rejects it and takes the next rule", func() {
			Expect(h.DocumentID).To(Equal("RX-88812"))
		})
	})

	When("the first date candidate does not normalize", func() {
		BeforeEach(func() {
			text = "Invoice Date: 13/45/99\nDate: 01/02/2024"
		})

		It("moves on to the next candidate", func() {
			Expect(h.DocumentDate).To(Equal("2024-01-02"))
		})
	})

	When("the only content is a terms phrase", func() {
		BeforeEach(func() {
			text = "NET 30"
		})

		It("extracts only the terms", func() {
			Expect(h.Terms).To(Equal("NET 30"))
			Expect(h.Total).To(BeZero())
			Expect(h.Count()).To(Equal(1))
		})
	})

	When("subtotal and tax lines precede the total", func() {
		BeforeEach(func() {
			text = "Subtotal 600.00\nSales Tax 36.00\nTotal 636.00"
		})

		It("takes the grand total", func() {
			Expect(h.Total).To(Equal(636.0))
		})
	})

	When("only a labeled amount due exists", func() {
		BeforeEach(func() {
			text = "Subtotal 600.00\nAmount Due: $1,636.00"
		})

		It("reads the amount due", func() {
			Expect(h.Total).To(Equal(1636.0))
		})
	})

	When("the total is a whole-dollar amount", func() {
		BeforeEach(func() {
			text = "Invoice 5501\nTotal: $1,000\n"
		})

		It("reads it without cents", func() {
			Expect(h.Total).To(Equal(1000.0))
		})
	})

	When("a date follows the total label", func() {
		BeforeEach(func() {
			text = "Total due 12/01/2024\nThank you"
		})

		It("does not read the month as an amount", func() {
			Expect(h.Total).To(BeZero())
		})
	})

	When("nothing matches", func() {
		BeforeEach(func() {
			text = "lorem ipsum dolor"
		})

		It("returns an empty header", func() {
			Expect(h.Count()).To(BeZero())
			Expect(h.Sources).To(BeEmpty())
		})
	})
})
