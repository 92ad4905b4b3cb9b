// Package lineitems finds invoice body rows with an ordered list of strategies.
// The first strategy yielding at least one validated item wins.
package lineitems

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/normalize"
	"github.com/joseph-ayodele/invoice-extractor/internal/rules"
	"github.com/joseph-ayodele/invoice-extractor/internal/templates"
)

// Strategy names as used in template line_items.strategies.
const (
	StrategyDelimited        = "delimited"
	StrategyTabular          = "tabular"
	StrategyDescriptionFirst = "description_first"
	StrategyGeneric          = "generic"
)

// Strategy turns trimmed non-blank lines into candidate items. It must be pure.
type Strategy func(lines []string, v Vocabulary) []entity.LineItem

var registry = map[string]Strategy{
	StrategyDelimited:        Delimited,
	StrategyTabular:          Tabular,
	StrategyDescriptionFirst: DescriptionFirst,
	StrategyGeneric:          Generic,
}

// Known reports whether name is a registered strategy.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// CheckStrategies rejects a registry whose templates name strategies that do not exist.
func CheckStrategies(reg *templates.Registry) error {
	var unknown []string
	for _, name := range reg.Names() {
		tmpl, ok := reg.Lookup(name)
		if !ok {
			continue
		}
		for _, s := range tmpl.LineItems.Strategies {
			if !Known(s) {
				unknown = append(unknown, fmt.Sprintf("%s: %q", name, s))
			}
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown line item strategies: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Vocabulary is the template-specific token set the strategies read.
type Vocabulary struct {
	Units      []string
	PriceUnits []string
	Nouns      []string
}

// Result is the outcome of one extraction.
type Result struct {
	Items []entity.LineItem
	// Strategy is the winning strategy name, empty when nothing survived.
	Strategy string
	// Dropped counts candidates rejected by tolerance validation across attempted strategies.
	Dropped int
}

type Extractor struct {
	tolerance Tolerance
	logger    *slog.Logger
}

type Option func(*Extractor)

// WithTolerance overrides DefaultTolerance.
func WithTolerance(t Tolerance) Option {
	return func(e *Extractor) {
		if t.Ratio >= 0 && t.Floor >= 0 {
			e.tolerance = t
		}
	}
}

func NewExtractor(logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{tolerance: DefaultTolerance, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract runs tmpl's strategies in order over text.
func (e *Extractor) Extract(text string, tmpl *templates.VendorTemplate) Result {
	lines := normalize.Lines(text)
	v := Vocabulary{
		Units:      tmpl.LineItems.Units,
		PriceUnits: tmpl.LineItems.PriceUnits,
		Nouns:      tmpl.LineItems.Nouns,
	}

	var res Result
	for _, name := range tmpl.LineItems.Strategies {
		fn, ok := registry[name]
		if !ok {
			e.logger.Warn("lineitems.strategy.unknown", "strategy", name, "template", tmpl.Name)
			continue
		}
		kept, dropped := e.tolerance.Filter(fn(lines, v))
		res.Dropped += dropped
		if dropped > 0 {
			e.logger.Debug("lineitems.validate.dropped", "strategy", name, "dropped", dropped)
		}
		if len(kept) > 0 {
			res.Items = kept
			res.Strategy = name
			break
		}
	}

	e.logger.Debug("lineitems.extract.done",
		"template", tmpl.Name,
		"strategy", res.Strategy,
		"items", len(res.Items),
		"dropped", res.Dropped,
	)
	return res
}

var (
	reMoneyToken = regexp.MustCompile(`^\$?((?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2})$`)
	reQtyToken   = regexp.MustCompile(`^\d+(?:\.\d{1,3})?$`)
	reLetter     = regexp.MustCompile(`[A-Za-z]`)
)

// isMoneyToken reports a whitespace-delimited 2-decimal amount like "$1,250.00".
func isMoneyToken(tok string) bool {
	return reMoneyToken.MatchString(tok)
}

func parseQty(tok string) (float64, bool) {
	if !reQtyToken.MatchString(tok) {
		return 0, false
	}
	q, err := strconv.ParseFloat(tok, 64)
	if err != nil || q <= 0 {
		return 0, false
	}
	return q, true
}

// moneyIndexes returns the positions of amount tokens in toks.
func moneyIndexes(toks []string) []int {
	var out []int
	for i, t := range toks {
		if isMoneyToken(t) {
			out = append(out, i)
		}
	}
	return out
}

func cleanDescription(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "-:|,;")
	s = strings.TrimSpace(s)
	if !reLetter.MatchString(s) {
		return ""
	}
	return strings.Join(strings.Fields(s), " ")
}

// derivedPrice returns amount/qty rounded to cents.
func derivedPrice(amount, qty float64) float64 {
	if qty <= 0 {
		return 0
	}
	return normalize.RoundMoney(amount / qty)
}

func blacklisted(line string) bool {
	return rules.IsHeaderFooterLine(line)
}

func alternation(words []string) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w != "" {
			parts = append(parts, regexp.QuoteMeta(w))
		}
	}
	return strings.Join(parts, "|")
}
