package acquire

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

type fakePDF struct {
	pages []PageText
	err   error
}

func (f *fakePDF) Pages(context.Context, []byte) ([]PageText, error) { return f.pages, f.err }

type fakeRaster struct {
	pages    int
	openErr  error
	rendered []int
	scales   []float64
	inFlight int
	maxSeen  int
	closed   bool
}

func (f *fakeRaster) Open([]byte) (RasterDocument, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakeRaster) NumPages() int { return f.pages }

func (f *fakeRaster) Render(page int, scale float64) (image.Image, error) {
	f.inFlight++
	defer func() { f.inFlight-- }()
	f.maxSeen = max(f.maxSeen, f.inFlight)
	f.rendered = append(f.rendered, page)
	f.scales = append(f.scales, scale)
	return image.NewGray(image.Rect(0, 0, 4, 4)), nil
}

func (f *fakeRaster) Close() error {
	f.closed = true
	return nil
}

type fakeRecognizer struct {
	texts []string
	err   error
	calls int
	langs []string
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ image.Image, lang string) (string, error) {
	f.langs = append(f.langs, lang)
	if f.err != nil {
		return "", f.err
	}
	i := f.calls
	f.calls++
	if i < len(f.texts) {
		return f.texts[i], nil
	}
	return "", nil
}

const longPage = "Invoice 9165009 from Great Lakes Metal Supply, LLC. Total $3,431.58"

var _ = Describe("Pipeline", func() {
	var (
		pdf    *fakePDF
		raster *fakeRaster
		rec    *fakeRecognizer
		p      *Pipeline
		doc    *entity.SourceDocument
		out    entity.AcquiredText
		err    error
	)

	BeforeEach(func() {
		pdf = &fakePDF{}
		raster = &fakeRaster{pages: 2}
		rec = &fakeRecognizer{texts: []string{"Invoice 1001", "Total 10.00"}}
		doc = &entity.SourceDocument{Filename: "inv.pdf", Data: []byte("%PDF-1.7")}
	})

	JustBeforeEach(func() {
		p = NewPipeline(Config{}, nil,
			WithPDFTextReader(pdf),
			WithRasterizer(raster),
			WithRecognizer(rec),
		)
		out, err = p.Acquire(context.Background(), doc)
	})

	When("the text layer has enough content", func() {
		BeforeEach(func() {
			pdf.pages = []PageText{{Text: longPage, Fragments: 12}, {Text: "Page 2 terms NET 30", Fragments: 3}}
		})

		It("uses the text layer and never calls OCR", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Method).To(Equal(constants.MethodTextLayer))
			Expect(out.Pages).To(Equal(2))
			Expect(out.Content).To(Equal(longPage + constants.PageMarker + "Page 2 terms NET 30"))
			Expect(out.PageBoundaries).To(Equal([]int{0, len(longPage) + len(constants.PageMarker)}))
			Expect(out.Page(1)).To(Equal("Page 2 terms NET 30"))
			Expect(out.Page(0)).To(Equal(longPage))
			Expect(rec.calls).To(BeZero())
			Expect(raster.rendered).To(BeEmpty())
			Expect(doc.Channel).To(Equal(constants.PDF))
			Expect(doc.PageCount).To(Equal(2))
		})
	})

	When("the text layer is below the visible character floor", func() {
		BeforeEach(func() {
			pdf.pages = []PageText{{Text: "  \n 1 ", Fragments: 1}, {}}
		})

		It("rasterizes each page at 2x and recognizes them in order", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Method).To(Equal(constants.MethodOCR))
			Expect(out.Content).To(Equal("Invoice 1001" + constants.PageMarker + "Total 10.00"))
			Expect(raster.rendered).To(Equal([]int{0, 1}))
			Expect(raster.scales).To(Equal([]float64{2, 2}))
			Expect(raster.maxSeen).To(Equal(1))
			Expect(raster.closed).To(BeTrue())
			Expect(rec.langs).To(Equal([]string{"eng", "eng"}))
			Expect(out.Confidence).To(BeNumerically(">", 0))
		})
	})

	When("the text layer is long but has no fragments", func() {
		BeforeEach(func() {
			pdf.pages = []PageText{{Text: longPage, Fragments: 0}}
		})

		It("falls back to OCR", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Method).To(Equal(constants.MethodOCR))
		})
	})

	When("OCR recognizes nothing", func() {
		BeforeEach(func() {
			rec.texts = nil
		})

		It("reports the document as unreadable", func() {
			Expect(err).To(MatchError(common.ErrScannedDocumentUnreadable))
			Expect(common.Remediation(err)).To(ContainSubstring("rescan"))
		})
	})

	When("the OCR backend fails", func() {
		BeforeEach(func() {
			rec.err = errors.New("engine crashed")
		})

		It("reports the document as unreadable", func() {
			Expect(err).To(MatchError(common.ErrScannedDocumentUnreadable))
			Expect(err.Error()).To(ContainSubstring("engine crashed"))
		})
	})

	When("the PDF cannot be read", func() {
		BeforeEach(func() {
			pdf.err = errors.New("xref table broken")
		})

		It("fails acquisition", func() {
			Expect(err).To(MatchError(common.ErrAcquisitionFailed))
		})
	})

	When("the rasterizer cannot open the file", func() {
		BeforeEach(func() {
			raster.openErr = errors.New("not a pdf")
		})

		It("fails acquisition", func() {
			Expect(err).To(MatchError(common.ErrAcquisitionFailed))
		})
	})

	When("the file type is unknown", func() {
		BeforeEach(func() {
			doc = &entity.SourceDocument{Filename: "blob.bin", MediaType: "application/octet-stream"}
		})

		It("fails classification", func() {
			Expect(err).To(MatchError(common.ErrUnsupportedChannel))
		})
	})

	When("a photo is uploaded", func() {
		BeforeEach(func() {
			var buf bytes.Buffer
			img := image.NewRGBA(image.Rect(0, 0, 8, 8))
			img.Set(1, 1, color.Black)
			Expect(png.Encode(&buf, img)).To(Succeed())
			doc = &entity.SourceDocument{Filename: "receipt.png", Data: buf.Bytes()}
			rec.texts = []string{"Total $12.00"}
		})

		It("recognizes it once", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Method).To(Equal(constants.MethodOCR))
			Expect(out.Content).To(Equal("Total $12.00"))
			Expect(rec.calls).To(Equal(1))
		})
	})

	When("a workbook is uploaded", func() {
		BeforeEach(func() {
			f := excelize.NewFile()
			sheet := f.GetSheetName(0)
			Expect(f.SetCellValue(sheet, "A1", "Invoice")).To(Succeed())
			Expect(f.SetCellValue(sheet, "B1", "Amount")).To(Succeed())
			Expect(f.SetCellValue(sheet, "C1", "Date")).To(Succeed())
			Expect(f.SetCellValue(sheet, "A2", "INV-1")).To(Succeed())
			Expect(f.SetCellValue(sheet, "B2", "$250.00")).To(Succeed())
			Expect(f.SetCellValue(sheet, "C2", "01/02/2024")).To(Succeed())
			Expect(f.SetCellValue(sheet, "A3", "INV-2")).To(Succeed())
			Expect(f.SetCellValue(sheet, "B3", "$1,250.00")).To(Succeed())
			buf, werr := f.WriteToBuffer()
			Expect(werr).NotTo(HaveOccurred())
			doc = &entity.SourceDocument{Filename: "march.xlsx", Data: buf.Bytes()}
		})

		It("flattens the first sheet to comma-delimited rows", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Method).To(Equal(constants.MethodFlattened))
			Expect(out.Content).To(Equal("Invoice,Amount,Date\nINV-1,$250.00,01/02/2024\nINV-2,\"$1,250.00\""))
			Expect(rec.calls).To(BeZero())
		})
	})

	When("an OOXML workbook is saved under a legacy .xls name", func() {
		BeforeEach(func() {
			f := excelize.NewFile()
			sheet := f.GetSheetName(0)
			Expect(f.SetCellValue(sheet, "A1", "Invoice")).To(Succeed())
			Expect(f.SetCellValue(sheet, "B1", "Amount")).To(Succeed())
			Expect(f.SetCellValue(sheet, "A2", "INV-7")).To(Succeed())
			Expect(f.SetCellValue(sheet, "B2", "$40.00")).To(Succeed())
			buf, werr := f.WriteToBuffer()
			Expect(werr).NotTo(HaveOccurred())
			doc = &entity.SourceDocument{Filename: "march.xls", Data: buf.Bytes()}
		})

		It("reads it by content, not by extension", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Content).To(Equal("Invoice,Amount\nINV-7,$40.00"))
		})
	})

	When("a damaged legacy .xls workbook is uploaded", func() {
		BeforeEach(func() {
			data := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 504)...)
			doc = &entity.SourceDocument{Filename: "march.xls", Data: data}
		})

		It("goes to the BIFF reader and fails as an acquisition error", func() {
			Expect(err).To(MatchError(common.ErrAcquisitionFailed))
			Expect(err.Error()).To(ContainSubstring("legacy workbook"))
			Expect(rec.calls).To(BeZero())
		})
	})

	When("a CSV file is uploaded", func() {
		BeforeEach(func() {
			doc = &entity.SourceDocument{Filename: "export.csv", Data: []byte("\xef\xbb\xbfInvoice,Amount,Date\r\nINV-1,$250.00,01/02/2024\r\n")}
		})

		It("re-emits it through the same flattening", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Content).To(Equal("Invoice,Amount,Date\nINV-1,$250.00,01/02/2024"))
		})
	})

	When("a plain text file is uploaded", func() {
		BeforeEach(func() {
			doc = &entity.SourceDocument{Filename: "notes.txt", Data: []byte("Terms:\tNET 30\r\n")}
		})

		It("uses the decoded content", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Method).To(Equal(constants.MethodRaw))
			Expect(out.Content).To(Equal("Terms: NET 30"))
		})
	})
})

var _ = Describe("NeedsOCR", func() {
	It("uses the 50 character floor", func() {
		Expect(NeedsOCR(strings.Repeat("x", 49), 1, 50)).To(BeTrue())
		Expect(NeedsOCR(strings.Repeat("x", 50), 1, 50)).To(BeFalse())
		Expect(NeedsOCR(strings.Repeat("x ", 60), 1, 50)).To(BeFalse())
		Expect(NeedsOCR(strings.Repeat("x", 80), 0, 50)).To(BeTrue())
	})
})
