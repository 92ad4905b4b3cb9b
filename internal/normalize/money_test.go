package normalize

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseMoney", func() {
	DescribeTable("parsing raw amounts",
		func(raw string, want float64) {
			Expect(ParseMoney(raw)).To(Equal(want))
		},
		Entry("dollar sign and thousands", "$3,431.58", 3431.58),
		Entry("plain decimal", "665.00", 665.0),
		Entry("usd suffix", "250.00 USD", 250.0),
		Entry("thousands without cents", "1,250", 1250.0),
		Entry("decimal comma", "1.234,56", 1234.56),
		Entry("short decimal comma", "12,50", 12.5),
		Entry("rounds to cents", "10.005", 10.01),
		Entry("negative becomes magnitude", "-45.10", 45.1),
		Entry("non-numeric", "N/A", 0.0),
		Entry("empty", "", 0.0),
		Entry("two decimal points", "12.5.3", 0.0),
	)

	It("is idempotent through currency formatting", func() {
		for _, raw := range []string{"$3,431.58", "0.99", "1234567.8", "$0.00", "12,50", "999,999.99"} {
			v := ParseMoney(raw)
			Expect(ParseMoney(FormatCurrency(v))).To(Equal(v), raw)
			Expect(ParseMoney(FormatMoney(v))).To(Equal(v), raw)
		}
	})
})

var _ = Describe("FormatCurrency", func() {
	It("groups thousands", func() {
		Expect(FormatCurrency(3431.58)).To(Equal("$3,431.58"))
		Expect(FormatCurrency(1234567.8)).To(Equal("$1,234,567.80"))
		Expect(FormatCurrency(5)).To(Equal("$5.00"))
	})
})

var _ = Describe("SumMoney", func() {
	It("adds without float drift", func() {
		Expect(SumMoney(0.1, 0.2)).To(Equal(0.3))
		Expect(SumMoney(665.00, 1.15, 0.05)).To(Equal(666.2))
		Expect(SumMoney()).To(Equal(0.0))
	})
})
