package normalize

import (
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NormalizeDate", func() {
	DescribeTable("supported and rejected formats",
		func(raw, want string) {
			Expect(NormalizeDate(raw)).To(Equal(want))
		},
		Entry("month/day/4-digit year", "01/02/2024", "2024-01-02"),
		Entry("month-day-2-digit year in 20xx", "3-7-25", "2025-03-07"),
		Entry("two-digit year 50 stays in 20xx", "12/31/50", "2050-12-31"),
		Entry("two-digit year 51 maps to 19xx", "12/31/51", "1951-12-31"),
		Entry("year-month-day", "2024-11-05", "2024-11-05"),
		Entry("year/month/day", "2024/1/5", "2024-01-05"),
		Entry("compact day-month-year", "02Oct25", "2025-10-02"),
		Entry("dashed day-month-year", "02-Oct-2025", "2025-10-02"),
		Entry("day month year", "2 October 2025", "2025-10-02"),
		Entry("month day, year", "Oct 2, 2025", "2025-10-02"),
		Entry("month with ordinal", "September 3rd 2024", "2024-09-03"),
		Entry("spreadsheet serial", "45000", "2023-03-15"),
		Entry("spreadsheet serial with time fraction", "45000.5", "2023-03-15"),
		Entry("trailing time", "01/02/2024 10:30", "2024-01-02"),
		Entry("trailing punctuation", "01/02/2024.", "2024-01-02"),
		Entry("invalid month and day", "13/45/99", ""),
		Entry("february 30", "02/30/2024", ""),
		Entry("leap day", "02/29/2024", "2024-02-29"),
		Entry("bare year", "2024", ""),
		Entry("unknown month", "02Foo25", ""),
		Entry("garbage", "not a date", ""),
		Entry("empty", "", ""),
	)

	It("only ever yields empty or a valid calendar date", func() {
		iso := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
		for _, raw := range []string{"1/1/00", "99/99/99", "0/0/0", "31Dec99", "2024-13-01", "2024-02-30", "12345", "Jan 32, 2024", "6/15/1988"} {
			out := NormalizeDate(raw)
			if out == "" {
				continue
			}
			Expect(out).To(MatchRegexp(iso.String()), raw)
			_, err := time.Parse("2006-01-02", out)
			Expect(err).NotTo(HaveOccurred(), raw)
		}
	})
})
