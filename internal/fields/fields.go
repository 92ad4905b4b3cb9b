// Package fields extracts header fields by running each field's rule cascade.
package fields

import (
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/normalize"
	"github.com/joseph-ayodele/invoice-extractor/internal/rules"
	"github.com/joseph-ayodele/invoice-extractor/internal/templates"
)

// defaultTopLines bounds the "near the top of the document" window.
const defaultTopLines = 15

// Header holds the extracted header fields. Unknown values stay empty or 0.
type Header struct {
	CounterpartyName string
	DocumentID       string
	DocumentDate     string
	DueDate          string
	Terms            string
	Description      string
	Total            float64
	// Sources records which rule or cascade step produced each field.
	Sources map[templates.Field]string
}

// Count returns the number of non-empty header fields.
func (h Header) Count() int {
	n := 0
	for _, v := range []string{h.CounterpartyName, h.DocumentID, h.DocumentDate, h.DueDate, h.Terms, h.Description} {
		if v != "" {
			n++
		}
	}
	if h.Total > 0 {
		n++
	}
	return n
}

// Extractor runs the header cascades. It holds only immutable configuration.
type Extractor struct {
	companies []string
	topLines  int
	logger    *slog.Logger
}

type Option func(*Extractor)

// WithKnownCompanies sets the literal company names tried first for the counterparty.
func WithKnownCompanies(names []string) Option {
	return func(e *Extractor) {
		e.companies = append([]string(nil), names...)
	}
}

// WithTopLines sets how many leading lines count as the top of the document.
func WithTopLines(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.topLines = n
		}
	}
}

func NewExtractor(logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{topLines: defaultTopLines, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract evaluates every header field of tmpl against text.
func (e *Extractor) Extract(text string, tmpl *templates.VendorTemplate) Header {
	h := Header{Sources: make(map[templates.Field]string)}

	if name, src := e.counterparty(text, tmpl); name != "" {
		h.CounterpartyName = name
		h.Sources[templates.FieldCounterparty] = src
	}

	for _, f := range []templates.Field{
		templates.FieldDocumentID,
		templates.FieldDocumentDate,
		templates.FieldDueDate,
		templates.FieldTerms,
		templates.FieldTotal,
		templates.FieldDescription,
	} {
		m, ok := rules.Evaluate(tmpl.Rules(f), text)
		if !ok {
			continue
		}
		h.Sources[f] = m.Rule.Source
		switch f {
		case templates.FieldDocumentID:
			h.DocumentID = strings.Trim(m.Value, ".,;:")
		case templates.FieldDocumentDate:
			h.DocumentDate = m.Value
		case templates.FieldDueDate:
			h.DueDate = m.Value
		case templates.FieldTerms:
			h.Terms = m.Value
		case templates.FieldTotal:
			h.Total = normalize.ParseMoney(m.Value)
		case templates.FieldDescription:
			h.Description = m.Value
		}
	}

	e.logger.Debug("fields.extract.done", "template", tmpl.Name, "found", h.Count())
	return h
}
