// Package templates loads vendor templates and picks the one matching a document.
package templates

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/normalize"
	"github.com/joseph-ayodele/invoice-extractor/internal/rules"
)

// Field names a header field of the extracted record.
type Field string

const (
	FieldCounterparty Field = "counterparty"
	FieldDocumentID   Field = "document_id"
	FieldDocumentDate Field = "document_date"
	FieldDueDate      Field = "due_date"
	FieldTerms        Field = "terms"
	FieldTotal        Field = "total"
	FieldDescription  Field = "description"
)

// Fields lists every header field in extraction order.
var Fields = []Field{FieldCounterparty, FieldDocumentID, FieldDocumentDate, FieldDueDate, FieldTerms, FieldTotal, FieldDescription}

// GenericName is the name of the fallback template.
const GenericName = "generic"

const (
	datePattern  = `(?:\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}|\d{4}-\d{1,2}-\d{1,2}|\d{1,2}[\s\-]?[A-Za-z]{3,9}\.?[\s\-,]*\d{2,4}|[A-Za-z]{3,9}\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4})`
	moneyPattern = `\$?\s*(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{2})?`
)

// amountEndPattern stops a cents-less amount from matching the start of a
// date, a longer number or a one-digit decimal.
const amountEndPattern = `(?:[^\d/,.\-]|[.,](?:\D|$)|$)`

// genericPriorityOffset keeps inherited generic rules behind a vendor's own rules.
const genericPriorityOffset = 1000

// LineItemRules configures the line-item cascade for a template.
type LineItemRules struct {
	// Strategies is the ordered list of strategy names to try.
	Strategies []string
	// Units are quantity unit tokens (EA, LBS, FT ...).
	Units []string
	// PriceUnits are pricing unit tokens that may follow a unit price (CW, EA ...).
	PriceUnits []string
	// Nouns mark product-like lines for the description-first strategy.
	Nouns []string
}

// VendorTemplate bundles the field and line-item rules for one issuer layout.
type VendorTemplate struct {
	Name    string
	Company string
	// Signatures is a list of keyword sets; the template matches when every
	// keyword of any one set appears in the lowercased text.
	Signatures [][]string
	FieldRules map[Field][]rules.PatternRule
	LineItems  LineItemRules
}

// IsGeneric reports the fallback template.
func (t *VendorTemplate) IsGeneric() bool { return t.Name == GenericName }

// Rules returns the ordered rules for a field.
func (t *VendorTemplate) Rules(f Field) []rules.PatternRule { return t.FieldRules[f] }

// Matches reports whether lowered (already lowercased text) carries one of the signatures.
func (t *VendorTemplate) Matches(lowered string) bool {
	for _, sig := range t.Signatures {
		if len(sig) == 0 {
			continue
		}
		all := true
		for _, kw := range sig {
			if !strings.Contains(lowered, kw) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func expandPattern(p string) string {
	p = strings.ReplaceAll(p, "{{date}}", datePattern)
	p = strings.ReplaceAll(p, "{{money}}", moneyPattern)
	return strings.ReplaceAll(p, "{{amount_end}}", amountEndPattern)
}

// transformFor returns the value transform applied to every rule of a field.
func transformFor(f Field) rules.Transform {
	switch f {
	case FieldDocumentDate, FieldDueDate:
		return normalize.NormalizeDate
	case FieldTerms:
		return normalize.NormalizeTerms
	case FieldCounterparty, FieldDescription:
		return cleanLabelValue
	default:
		return nil
	}
}

var reTrailingPunct = regexp.MustCompile(`[\s,;:]+$`)

func cleanLabelValue(s string) string {
	return reTrailingPunct.ReplaceAllString(strings.TrimSpace(s), "")
}

func compileRule(name string, f Field, spec ruleSpec) (rules.PatternRule, error) {
	re, err := regexp.Compile(expandPattern(spec.Pattern))
	if err != nil {
		return rules.PatternRule{}, fmt.Errorf("template %s field %s: %w", name, f, err)
	}
	if re.NumSubexp() < 1 {
		return rules.PatternRule{}, fmt.Errorf("template %s field %s: pattern %q has no capture group", name, f, spec.Pattern)
	}
	out := rules.PatternRule{
		Priority:  spec.Priority,
		Pattern:   re,
		Transform: transformFor(f),
		Source:    fmt.Sprintf("%s/%s/%d", name, f, spec.Priority),
	}
	for _, pn := range spec.Reject {
		p, err := rules.PredicateByName(pn)
		if err != nil {
			return rules.PatternRule{}, fmt.Errorf("template %s field %s: %w", name, f, err)
		}
		out.Reject = append(out.Reject, p)
	}
	return out, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// union appends the entries of extra not already in base.
func union(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, s := range append(append([]string{}, base...), extra...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
