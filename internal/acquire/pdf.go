package acquire

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/dslipak/pdf"
)

// PageText is the text layer of one PDF page.
type PageText struct {
	Text string
	// Fragments counts the discrete text runs the page content stream draws.
	Fragments int
}

// PDFTextReader reads the text layer of every page, in page order.
type PDFTextReader interface {
	Pages(ctx context.Context, data []byte) ([]PageText, error)
}

// PDFReader reads text layers with github.com/dslipak/pdf.
type PDFReader struct {
	logger *slog.Logger
}

func NewPDFReader(logger *slog.Logger) *PDFReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFReader{logger: logger}
}

func (r *PDFReader) Pages(ctx context.Context, data []byte) ([]PageText, error) {
	f, err := openPDF(data)
	if err != nil {
		return nil, err
	}

	numPages := f.NumPage()
	r.logger.Debug("acquire.pdf.open", "pages", numPages)
	pages := make([]PageText, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := f.Page(i)
		if page.V.IsNull() {
			pages = append(pages, PageText{})
			continue
		}
		pt, err := pageText(page)
		if err != nil {
			// a broken content stream leaves the page empty; OCR may still read it
			r.logger.Warn("acquire.pdf.page_failed", "page", i, "error", err)
			pages = append(pages, PageText{})
			continue
		}
		pages = append(pages, pt)
	}
	return pages, nil
}

// openPDF guards against the parser panicking on malformed files.
func openPDF(data []byte) (f *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			f, err = nil, fmt.Errorf("open pdf: malformed document: %v", rec)
		}
	}()
	f, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return f, nil
}

func pageText(page pdf.Page) (pt PageText, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("read page content: %v", rec)
		}
	}()
	text, err := page.GetPlainText(nil)
	if err != nil {
		return PageText{}, err
	}
	return PageText{Text: text, Fragments: len(page.Content().Text)}, nil
}
