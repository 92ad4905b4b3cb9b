package fields

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/rules"
	"github.com/joseph-ayodele/invoice-extractor/internal/templates"
)

var (
	reLeadingLabel = regexp.MustCompile(`^[A-Za-z ]{2,20}:\s*`)
	reNameTrail    = regexp.MustCompile(`[\s,;:|]+$`)
)

type topLine struct {
	text   string
	offset int
}

// counterparty tries, in order: literal company names, entity-suffix lines
// near the top, all-caps headings near the top, then the template's labeled rules.
func (e *Extractor) counterparty(text string, tmpl *templates.VendorTemplate) (string, string) {
	if name := e.literalCompany(text, tmpl); name != "" {
		return name, "literal"
	}

	top := e.topOf(text)
	for _, l := range top {
		if !rules.HasEntitySuffix(l.text) || e.excluded(text, l) {
			continue
		}
		if name := cleanName(l.text); name != "" {
			return name, "entity_suffix"
		}
	}
	for _, l := range top {
		if !rules.LooksLikeHeading(l.text) || e.excluded(text, l) {
			continue
		}
		return cleanName(l.text), "heading"
	}

	if m, ok := rules.Evaluate(tmpl.Rules(templates.FieldCounterparty), text); ok {
		return cleanName(m.Value), m.Rule.Source
	}
	return "", ""
}

func (e *Extractor) literalCompany(text string, tmpl *templates.VendorTemplate) string {
	lowered := strings.ToLower(text)
	names := e.companies
	if tmpl != nil && tmpl.Company != "" {
		names = append([]string{tmpl.Company}, names...)
	}
	for _, n := range names {
		if n != "" && strings.Contains(lowered, strings.ToLower(n)) {
			return n
		}
	}
	return ""
}

func (e *Extractor) topOf(text string) []topLine {
	var out []topLine
	offset := 0
	for _, raw := range strings.SplitAfter(text, "\n") {
		l := strings.TrimSpace(raw)
		if l != "" {
			out = append(out, topLine{text: l, offset: offset + strings.Index(raw, l)})
			if len(out) == e.topLines {
				break
			}
		}
		offset += len(raw)
	}
	return out
}

// excluded rejects header/footer lines and lines inside a bill-to/ship-to block.
func (e *Extractor) excluded(text string, l topLine) bool {
	if rules.IsHeaderFooterLine(l.text) {
		return true
	}
	c := rules.Candidate{Value: l.text, Start: l.offset, End: l.offset + len(l.text), Text: text}
	return rules.InAddressBlock(c)
}

func cleanName(s string) string {
	s = strings.TrimSpace(s)
	if loc := reLeadingLabel.FindStringIndex(s); loc != nil && loc[1] < len(s) {
		s = s[loc[1]:]
	}
	return reNameTrail.ReplaceAllString(s, "")
}
