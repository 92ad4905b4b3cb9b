// Package acquire turns a source document into plain text, choosing the route
// by channel: PDF text layer with OCR fallback, OCR for photos, flattened
// spreadsheets and decoded text files.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/normalize"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// Defaults for the PDF route.
const (
	DefaultMinTextChars = 50
	DefaultRasterScale  = 2.0
	DefaultLanguage     = "eng"
)

type Config struct {
	// MinTextChars is the visible-character floor below which a text layer is
	// treated as absent and the document is OCR'd.
	MinTextChars int
	// RasterScale is the page magnification used for OCR (2 = 144 DPI).
	RasterScale float64
	Language    string
	// BackendConfidence asks backends that can score their output to do so (an extra pass).
	BackendConfidence bool
}

// Pipeline holds the collaborators. Nil collaborators make their channel fail
// with AcquisitionFailed (or ScannedDocumentUnreadable for OCR).
type Pipeline struct {
	cfg         Config
	pdf         PDFTextReader
	raster      Rasterizer
	recognizer  ocr.Recognizer
	spreadsheet SpreadsheetReader
	documents   DocumentReader
	logger      *slog.Logger
}

type Option func(*Pipeline)

func WithPDFTextReader(r PDFTextReader) Option {
	return func(p *Pipeline) { p.pdf = r }
}

func WithRasterizer(r Rasterizer) Option {
	return func(p *Pipeline) { p.raster = r }
}

// WithRecognizer sets the OCR backend used for scanned PDFs and photos.
func WithRecognizer(r ocr.Recognizer) Option {
	return func(p *Pipeline) { p.recognizer = r }
}

func WithSpreadsheetReader(r SpreadsheetReader) Option {
	return func(p *Pipeline) { p.spreadsheet = r }
}

func WithDocumentReader(r DocumentReader) Option {
	return func(p *Pipeline) { p.documents = r }
}

// NewPipeline wires the default readers (dslipak/pdf, go-fitz, excelize, text);
// the OCR recognizer must be supplied with WithRecognizer.
func NewPipeline(cfg Config, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = DefaultMinTextChars
	}
	if cfg.RasterScale <= 0 {
		cfg.RasterScale = DefaultRasterScale
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	p := &Pipeline{
		cfg:         cfg,
		pdf:         NewPDFReader(logger),
		raster:      FitzRasterizer{},
		spreadsheet: ExcelReader{},
		documents:   TextReader{},
		logger:      logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Acquire produces the text of doc. doc.Channel is classified when empty.
func (p *Pipeline) Acquire(ctx context.Context, doc *entity.SourceDocument) (entity.AcquiredText, error) {
	start := time.Now()
	if doc.Channel == "" {
		ch, err := Classify(doc.Filename, doc.MediaType)
		if err != nil {
			return entity.AcquiredText{}, err
		}
		doc.Channel = ch
	}
	ext := constants.NormalizeExt(filepath.Ext(doc.Filename))
	p.logger.Debug("acquire.start", "file", doc.Filename, "channel", doc.Channel, "bytes", len(doc.Data))

	var (
		out entity.AcquiredText
		err error
	)
	switch doc.Channel {
	case constants.PDF:
		out, err = p.acquirePDF(ctx, doc)
	case constants.IMAGE:
		out, err = p.acquireImage(ctx, doc, ext)
	case constants.SPREADSHEET:
		out, err = p.acquireSpreadsheet(doc, ext)
	case constants.TEXT:
		out, err = p.acquireText(doc, ext)
	default:
		return entity.AcquiredText{}, common.NewUnsupportedChannel(doc.Filename, doc.MediaType)
	}
	if err != nil {
		p.logger.Error("acquire.failed", "file", doc.Filename, "channel", doc.Channel, "error", err)
		return entity.AcquiredText{}, err
	}

	out.Duration = time.Since(start)
	if out.Language == "" {
		out.Language = p.cfg.Language
	}
	p.logger.Info("acquire.done",
		"file", doc.Filename,
		"channel", doc.Channel,
		"method", out.Method,
		"pages", out.Pages,
		"chars", len(out.Content),
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

func (p *Pipeline) acquirePDF(ctx context.Context, doc *entity.SourceDocument) (entity.AcquiredText, error) {
	if p.pdf == nil {
		return entity.AcquiredText{}, common.NewAcquisitionFailed("no PDF reader configured", nil)
	}
	pages, err := p.pdf.Pages(ctx, doc.Data)
	if err != nil {
		return entity.AcquiredText{}, common.NewAcquisitionFailed("reading PDF text layer", err)
	}
	doc.PageCount = len(pages)

	texts := make([]string, len(pages))
	fragments := 0
	for i, pg := range pages {
		texts[i] = normalize.NormalizeText(pg.Text)
		fragments += pg.Fragments
	}
	content, bounds := joinPages(texts)

	if NeedsOCR(content, fragments, p.cfg.MinTextChars) {
		p.logger.Info("acquire.pdf.ocr_fallback",
			"file", doc.Filename,
			"visible_chars", normalize.VisibleChars(content),
			"fragments", fragments,
		)
		return p.ocrPDF(ctx, doc)
	}

	return entity.AcquiredText{
		Content:        content,
		PageBoundaries: bounds,
		Method:         constants.MethodTextLayer,
		Pages:          len(pages),
		Confidence:     1,
	}, nil
}

// NeedsOCR reports whether a text layer is too thin to trust: fewer than
// minChars visible characters, or no text fragments at all.
func NeedsOCR(content string, fragments, minChars int) bool {
	return fragments == 0 || normalize.VisibleChars(content) < minChars
}

// ocrPDF rasterizes and recognizes pages strictly one after another; the
// raster document and the recognizer are not shared across pages concurrently.
func (p *Pipeline) ocrPDF(ctx context.Context, doc *entity.SourceDocument) (entity.AcquiredText, error) {
	if p.recognizer == nil {
		return entity.AcquiredText{}, common.NewScannedUnreadable("no OCR backend configured", ocr.ErrUnavailable)
	}
	if p.raster == nil {
		return entity.AcquiredText{}, common.NewAcquisitionFailed("no page rasterizer configured", nil)
	}
	rd, err := p.raster.Open(doc.Data)
	if err != nil {
		return entity.AcquiredText{}, common.NewAcquisitionFailed("opening PDF for rasterization", err)
	}
	defer func() {
		if cerr := rd.Close(); cerr != nil {
			p.logger.Warn("acquire.raster.close_failed", "error", cerr)
		}
	}()

	n := rd.NumPages()
	doc.PageCount = n
	texts := make([]string, 0, n)
	var warnings []string
	var confSum float32
	for i := 0; i < n; i++ {
		img, err := rd.Render(i, p.cfg.RasterScale)
		if err != nil {
			return entity.AcquiredText{}, common.NewAcquisitionFailed(fmt.Sprintf("rasterizing page %d", i+1), err)
		}
		text, err := p.recognizer.Recognize(ctx, img, p.cfg.Language)
		if err != nil {
			return entity.AcquiredText{}, common.NewScannedUnreadable(fmt.Sprintf("OCR failed on page %d", i+1), err)
		}
		text = normalize.NormalizeText(text)
		if text == "" {
			warnings = append(warnings, fmt.Sprintf("page %d: no text recognized", i+1))
		}
		confSum += p.confidence(ctx, img, text)
		texts = append(texts, text)
		p.logger.Debug("acquire.ocr.page", "page", i+1, "chars", len(text))
	}

	content, bounds := joinPages(texts)
	if normalize.VisibleChars(content) == 0 {
		return entity.AcquiredText{}, common.NewScannedUnreadable("OCR recognized no characters", nil)
	}
	var conf float32
	if n > 0 {
		conf = confSum / float32(n)
	}
	return entity.AcquiredText{
		Content:        content,
		PageBoundaries: bounds,
		Method:         constants.MethodOCR,
		Pages:          n,
		Confidence:     conf,
		Warnings:       warnings,
	}, nil
}

func (p *Pipeline) acquireImage(ctx context.Context, doc *entity.SourceDocument, ext string) (entity.AcquiredText, error) {
	if p.recognizer == nil {
		return entity.AcquiredText{}, common.NewScannedUnreadable("no OCR backend configured", ocr.ErrUnavailable)
	}
	img, err := DecodeImage(doc.Data, doc.MediaType, ext)
	if err != nil {
		return entity.AcquiredText{}, common.NewAcquisitionFailed("decoding image", err)
	}
	doc.PageCount = 1

	text, err := p.recognizer.Recognize(ctx, img, p.cfg.Language)
	if err != nil {
		return entity.AcquiredText{}, common.NewScannedUnreadable("OCR failed", err)
	}
	text = normalize.NormalizeText(text)
	if normalize.VisibleChars(text) == 0 {
		return entity.AcquiredText{}, common.NewScannedUnreadable("OCR recognized no characters", nil)
	}
	return entity.AcquiredText{
		Content:        text,
		PageBoundaries: []int{0},
		Method:         constants.MethodOCR,
		Pages:          1,
		Confidence:     p.confidence(ctx, img, text),
	}, nil
}

// confidence blends the backend's own score (when it has one) with the text heuristic.
func (p *Pipeline) confidence(ctx context.Context, img image.Image, text string) float32 {
	var backend float32
	if s, ok := p.recognizer.(ocr.Scorer); ok && p.cfg.BackendConfidence {
		c, err := s.Confidence(ctx, img, p.cfg.Language)
		if err != nil {
			p.logger.Warn("acquire.ocr.confidence_failed", "error", err)
		} else {
			backend = c
		}
	}
	return ocr.Blend(backend, ocr.HeuristicConfidence(text))
}

func (p *Pipeline) acquireSpreadsheet(doc *entity.SourceDocument, ext string) (entity.AcquiredText, error) {
	if p.spreadsheet == nil {
		return entity.AcquiredText{}, common.NewAcquisitionFailed("no spreadsheet reader configured", nil)
	}
	text, err := p.spreadsheet.Flatten(doc.Data, ext)
	if err != nil {
		return entity.AcquiredText{}, common.NewAcquisitionFailed("reading spreadsheet", err)
	}
	doc.PageCount = 1
	return entity.AcquiredText{
		Content:        normalize.NormalizeText(text),
		PageBoundaries: []int{0},
		Method:         constants.MethodFlattened,
		Pages:          1,
		Confidence:     1,
	}, nil
}

func (p *Pipeline) acquireText(doc *entity.SourceDocument, ext string) (entity.AcquiredText, error) {
	if p.documents == nil {
		return entity.AcquiredText{}, common.NewAcquisitionFailed("no document reader configured", nil)
	}
	text, err := p.documents.Text(doc.Data, ext)
	if err != nil {
		return entity.AcquiredText{}, common.NewAcquisitionFailed("decoding text document", err)
	}
	doc.PageCount = 1
	return entity.AcquiredText{
		Content:        normalize.NormalizeText(text),
		PageBoundaries: []int{0},
		Method:         constants.MethodRaw,
		Pages:          1,
		Confidence:     1,
	}, nil
}

// joinPages concatenates pages with the page marker and records where each starts.
func joinPages(pages []string) (string, []int) {
	var b strings.Builder
	bounds := make([]int, 0, len(pages))
	for i, t := range pages {
		if i > 0 {
			b.WriteString(constants.PageMarker)
		}
		bounds = append(bounds, b.Len())
		b.WriteString(t)
	}
	return b.String(), bounds
}

// IsOCRUnavailable reports a scanned-document failure caused by a missing or unreachable backend.
func IsOCRUnavailable(err error) bool {
	return errors.Is(err, common.ErrScannedDocumentUnreadable) && errors.Is(err, ocr.ErrUnavailable)
}
