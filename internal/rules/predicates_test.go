package rules

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func candidateIn(text, value string) Candidate {
	start := strings.Index(text, value)
	Expect(start).To(BeNumerically(">=", 0))
	return Candidate{Value: value, Start: start, End: start + len(value), Text: text}
}

var _ = Describe("predicates", func() {
	DescribeTable("LooksLikeYear",
		func(s string, want bool) { Expect(LooksLikeYear(s)).To(Equal(want)) },
		Entry("four digit year", "2024", true),
		Entry("nineteen hundreds", "1999", true),
		Entry("two digits", "25", true),
		Entry("four digits outside year range", "9165", false),
		Entry("identifier", "9165009", false),
	)

	DescribeTable("LooksLikeDate",
		func(s string, want bool) { Expect(LooksLikeDate(s)).To(Equal(want)) },
		Entry("us date", "10/02/2025", true),
		Entry("compact", "02Oct25", true),
		Entry("identifier", "INV-20931", false),
		Entry("five digit number", "55501", false),
	)

	DescribeTable("HasEntitySuffix",
		func(s string, want bool) { Expect(HasEntitySuffix(s)).To(Equal(want)) },
		Entry("llc", "Great Lakes Metal Supply, LLC", true),
		Entry("inc with dot", "Acme Widgets Inc.", true),
		Entry("corp", "NORTHWIND CORP", true),
		Entry("co with dot", "Harbor Freight Co.", true),
		Entry("plain words", "Steel sheet 10 ga", false),
		Entry("word containing inc", "Incoming freight", false),
	)

	DescribeTable("LooksLikeHeading",
		func(s string, want bool) { Expect(LooksLikeHeading(s)).To(Equal(want)) },
		Entry("company heading", "SUMMIT FREIGHT LINES", true),
		Entry("with ampersand", "ACME PIPE & FITTING", true),
		Entry("single word", "INVOICE", false),
		Entry("mixed case", "Summit Freight Lines", false),
		Entry("with digits", "PO BOX 1234", false),
		Entry("too long", strings.Repeat("WORD ", 15), false),
	)

	DescribeTable("IsHeaderFooterLine",
		func(s string, want bool) { Expect(IsHeaderFooterLine(s)).To(Equal(want)) },
		Entry("table header", "QTY DESCRIPTION UNIT PRICE AMOUNT", true),
		Entry("subtotal", "Subtotal 665.00", true),
		Entry("page", "Page 1 of 2", true),
		Entry("thanks", "Thank you for your business", true),
		Entry("item row", "10 EA STEEL SHEET 66.50 CW 665.00", false),
	)

	It("ProductMatcher matches nouns with plurals only on word boundaries", func() {
		m := ProductMatcher([]string{"sheet", "freight", ""})
		Expect(m("Steel sheets 4x8")).To(BeTrue())
		Expect(m("FREIGHT CHARGE")).To(BeTrue())
		Expect(m("sheetrock")).To(BeFalse())
		Expect(ProductMatcher(nil)("sheet")).To(BeFalse())
	})

	Describe("InAddressBlock", func() {
		text := "ACME STEEL LLC\nInvoice 55501\n\nBill To:\nWidget Works\nPO 778812\n\nRemit 99120"

		It("flags values under a bill-to label", func() {
			Expect(InAddressBlock(candidateIn(text, "778812"))).To(BeTrue())
		})

		It("does not flag values outside the block", func() {
			Expect(InAddressBlock(candidateIn(text, "55501"))).To(BeFalse())
			Expect(InAddressBlock(candidateIn(text, "99120"))).To(BeFalse())
		})

		It("flags values on the label line itself", func() {
			t := "Customer No: 448812"
			Expect(InAddressBlock(candidateIn(t, "448812"))).To(BeTrue())
		})
	})

	It("IdentifierLength enforces 4..30", func() {
		Expect(RejectIdentifierLength(Candidate{Value: "123"})).To(BeTrue())
		Expect(RejectIdentifierLength(Candidate{Value: "1234"})).To(BeFalse())
		Expect(RejectIdentifierLength(Candidate{Value: strings.Repeat("A", 31)})).To(BeTrue())
	})

	It("resolves predicates by name", func() {
		p, err := PredicateByName(" Bare_Year ")
		Expect(err).NotTo(HaveOccurred())
		Expect(p(Candidate{Value: "2024"})).To(BeTrue())

		_, err = PredicateByName("nope")
		Expect(err).To(MatchError(ContainSubstring("unknown reject predicate")))
	})
})

var _ = Describe("label predicates", func() {
	It("HasOtherDateLabel only looks left of the candidate on its line", func() {
		text := "Invoice Date: 01/02/2024  Due Date: 02/01/2024"
		Expect(HasOtherDateLabel(candidateIn(text, "01/02/2024"))).To(BeFalse())
		Expect(HasOtherDateLabel(candidateIn(text, "02/01/2024"))).To(BeTrue())
	})

	It("IsPartialTotal flags subtotal and tax lines", func() {
		Expect(IsPartialTotal(candidateIn("Sub Total 600.00", "600.00"))).To(BeTrue())
		Expect(IsPartialTotal(candidateIn("Sales Tax 12.00", "12.00"))).To(BeTrue())
		Expect(IsPartialTotal(candidateIn("Total $3,431.58", "$3,431.58"))).To(BeFalse())
	})
})
