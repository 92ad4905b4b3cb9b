package acquire

import (
	"unicode/utf16"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("TextReader", func() {
	var r TextReader

	It("decodes Windows-1252 text", func() {
		text, err := r.Text([]byte("Caf\xe9 invoice \x80 5.00"), "txt")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Café invoice € 5.00"))
	})

	It("reads the plain part of a multipart email", func() {
		eml := "From: Billing <billing@northwind.example>\r\n" +
			"Subject: Invoice 55501\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
			"\r\n" +
			"--b1\r\n" +
			"Content-Type: text/html\r\n" +
			"\r\n" +
			"<p>Total <b>$10.00</b></p>\r\n" +
			"--b1\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"Content-Transfer-Encoding: quoted-printable\r\n" +
			"\r\n" +
			"Total due: $10.00=\r\n" +
			" NET 30\r\n" +
			"--b1--\r\n"
		text, err := r.Text([]byte(eml), "eml")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(ContainSubstring("Subject: Invoice 55501"))
		Expect(text).To(ContainSubstring("Total due: $10.00 NET 30"))
		Expect(text).NotTo(ContainSubstring("<b>"))
	})

	It("falls back to stripped html", func() {
		eml := "Subject: Statement\r\nContent-Type: text/html\r\n\r\n<div>Amount Due: $5.00</div><br>Thanks"
		text, err := r.Text([]byte(eml), "eml")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(ContainSubstring("Amount Due: $5.00\n"))
	})

	It("pulls utf-16 runs out of outlook messages", func() {
		var data []byte
		data = append(data, 0xD0, 0xCF, 0x11, 0xE0, 0x00, 0x00)
		for _, u := range utf16.Encode([]rune("Invoice 77812 Total $99.00")) {
			data = append(data, byte(u), byte(u>>8))
		}
		data = append(data, 0x00, 0x00, 0x01, 0x02)
		text, err := r.Text(data, "msg")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(ContainSubstring("Invoice 77812 Total $99.00"))
	})
})
