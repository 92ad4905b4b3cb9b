// Package extract runs the whole heuristic extraction for one document:
// acquisition, template recognition, header fields, line items, aggregation.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/fields"
	"github.com/joseph-ayodele/invoice-extractor/internal/lineitems"
	"github.com/joseph-ayodele/invoice-extractor/internal/templates"
)

// Result is a record plus the diagnostics of how it was produced.
type Result struct {
	Record   entity.ExtractedRecord
	Text     entity.AcquiredText
	Channel  constants.Channel
	Template string
	// Strategy is the line-item strategy that produced the items.
	Strategy string
	// Dropped counts line-item candidates rejected by tolerance validation.
	Dropped int
	// Sources maps each found header field to the rule that produced it.
	Sources      map[templates.Field]string
	DerivedTotal bool
}

// Engine is safe for concurrent use: it holds only immutable collaborators and
// the template registry. Each call owns its document.
type Engine struct {
	acquirer   TextAcquirer
	recognizer TemplateRecognizer
	header     HeaderExtractor
	items      LineItemExtractor
	descLimit  int
	logger     *slog.Logger
}

type Option func(*Engine)

// WithRegistry sets the template registry and its known company names.
func WithRegistry(r *templates.Registry) Option {
	return func(e *Engine) {
		e.recognizer = r
		e.header = fields.NewExtractor(e.logger, fields.WithKnownCompanies(r.KnownCompanies()))
	}
}

func WithHeaderExtractor(h HeaderExtractor) Option {
	return func(e *Engine) { e.header = h }
}

func WithLineItemExtractor(x LineItemExtractor) Option {
	return func(e *Engine) { e.items = x }
}

// WithTolerance sets the quantity x price plausibility bound for line items.
func WithTolerance(t lineitems.Tolerance) Option {
	return func(e *Engine) { e.items = lineitems.NewExtractor(e.logger, lineitems.WithTolerance(t)) }
}

func WithDescriptionLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.descLimit = n
		}
	}
}

// New builds an engine around acq. Without options it uses the embedded
// template registry and the default tolerance.
func New(acq TextAcquirer, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	reg := templates.DefaultRegistry()
	e := &Engine{
		acquirer:   acq,
		recognizer: reg,
		header:     fields.NewExtractor(logger, fields.WithKnownCompanies(reg.KnownCompanies())),
		items:      lineitems.NewExtractor(logger),
		descLimit:  DefaultDescriptionLimit,
		logger:     logger,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract returns the record for doc. A record with no header fields and no
// line items comes back together with an error matching common.ErrNoDataExtracted;
// the record is still usable for manual entry.
func (e *Engine) Extract(ctx context.Context, doc entity.SourceDocument) (entity.ExtractedRecord, error) {
	res, err := e.Run(ctx, doc)
	return res.Record, err
}

// Run is Extract with diagnostics.
func (e *Engine) Run(ctx context.Context, doc entity.SourceDocument) (Result, error) {
	if e.acquirer == nil {
		return Result{}, common.NewAcquisitionFailed("no acquisition pipeline configured", nil)
	}
	start := time.Now()

	text, err := e.acquirer.Acquire(ctx, &doc)
	if err != nil {
		return Result{Channel: doc.Channel}, err
	}

	res := e.FromText(text)
	res.Channel = doc.Channel

	e.logger.Info("extract.done",
		"file", doc.Filename,
		"content_hash", common.ContentHashFromContext(ctx),
		"channel", doc.Channel,
		"method", text.Method,
		"template", res.Template,
		"strategy", res.Strategy,
		"fields", res.Record.HeaderFieldCount(),
		"items", len(res.Record.LineItems),
		"dropped", res.Dropped,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if res.Record.IsEmpty() {
		return res, common.NewNoDataExtracted()
	}
	return res, nil
}

// FromText runs recognition, field and line-item extraction and aggregation
// over already-acquired text. It is pure with respect to its input.
func (e *Engine) FromText(text entity.AcquiredText) Result {
	tmpl := e.recognizer.Recognize(text.Content)
	h := e.header.Extract(text.Content, tmpl)
	li := e.items.Extract(text.Content, tmpl)

	rec := Aggregate(h, li.Items, e.descLimit)
	res := Result{
		Record:       rec,
		Text:         text,
		Template:     tmpl.Name,
		Strategy:     li.Strategy,
		Dropped:      li.Dropped,
		Sources:      h.Sources,
		DerivedTotal: h.Total == 0 && len(li.Items) > 0,
	}
	res.Record.Notes = notes(res)
	return res
}

func notes(res Result) []string {
	out := []string{}
	if res.Template != "" && res.Template != templates.GenericName {
		out = append(out, fmt.Sprintf("matched vendor template %q", res.Template))
	}
	switch res.Text.Method {
	case constants.MethodOCR:
		out = append(out, fmt.Sprintf("text recognized by OCR (confidence %.2f); verify amounts", res.Text.Confidence))
	case constants.MethodFlattened:
		out = append(out, "read from the first worksheet")
	}
	if res.DerivedTotal {
		out = append(out, "total derived from the sum of line items")
	}
	if res.Dropped > 0 {
		out = append(out, fmt.Sprintf("%d line item candidate(s) dropped: quantity x unit price did not match amount", res.Dropped))
	}
	out = append(out, res.Text.Warnings...)
	return out
}
