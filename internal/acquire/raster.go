package acquire

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// nominalDPI is the PDF user-space resolution; scale 1 renders at 72 DPI.
const nominalDPI = 72.0

// Rasterizer opens a PDF for page rendering.
type Rasterizer interface {
	Open(data []byte) (RasterDocument, error)
}

// RasterDocument renders pages (0-based) to bitmaps. It is a single-instance
// resource: pages are rendered one at a time and the document is closed after use.
type RasterDocument interface {
	NumPages() int
	Render(page int, scale float64) (image.Image, error)
	Close() error
}

// FitzRasterizer renders with MuPDF through github.com/gen2brain/go-fitz.
type FitzRasterizer struct{}

func (FitzRasterizer) Open(data []byte) (RasterDocument, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	return fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d fitzDocument) NumPages() int { return d.doc.NumPage() }

func (d fitzDocument) Render(page int, scale float64) (image.Image, error) {
	if scale <= 0 {
		scale = 1
	}
	img, err := d.doc.ImageDPI(page, nominalDPI*scale)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page %d: %w", page+1, err)
	}
	return img, nil
}

func (d fitzDocument) Close() error { return d.doc.Close() }
