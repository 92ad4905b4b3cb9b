package extract

import (
	"context"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/fields"
	"github.com/joseph-ayodele/invoice-extractor/internal/lineitems"
	"github.com/joseph-ayodele/invoice-extractor/internal/templates"
)

// TextAcquirer is stage 1: document -> text.
type TextAcquirer interface {
	Acquire(ctx context.Context, doc *entity.SourceDocument) (entity.AcquiredText, error)
}

// TemplateRecognizer picks the vendor template for acquired text.
type TemplateRecognizer interface {
	Recognize(text string) *templates.VendorTemplate
}

// HeaderExtractor is stage 2a: text -> header fields.
type HeaderExtractor interface {
	Extract(text string, tmpl *templates.VendorTemplate) fields.Header
}

// LineItemExtractor is stage 2b: text -> validated line items.
type LineItemExtractor interface {
	Extract(text string, tmpl *templates.VendorTemplate) lineitems.Result
}
