// Package rules holds the data-driven pattern cascade used for header fields
// and the named predicates that accept or reject candidate matches.
package rules

import (
	"regexp"
	"sort"
	"strings"
)

// Candidate is one regex match under consideration.
type Candidate struct {
	Value string // first non-empty capture group, trimmed
	Start int    // byte offset of Value in Text
	End   int
	Text  string // the full document text
}

// Line returns the full line of Text containing the candidate.
func (c Candidate) Line() string {
	start := strings.LastIndexByte(c.Text[:c.Start], '\n') + 1
	end := strings.IndexByte(c.Text[c.End:], '\n')
	if end < 0 {
		return c.Text[start:]
	}
	return c.Text[start : c.End+end]
}

// Predicate reports whether a candidate should be rejected.
type Predicate func(Candidate) bool

// Transform rewrites an accepted value; returning "" rejects the candidate.
type Transform func(string) string

// PatternRule is one entry of a field cascade.
type PatternRule struct {
	Priority int
	Pattern  *regexp.Regexp
	Reject   []Predicate
	// Transform runs before the reject predicates, e.g. date normalization.
	Transform Transform
	// Source names the rule in diagnostics.
	Source string
}

// Match is an accepted rule hit.
type Match struct {
	Value  string
	Rule   PatternRule
	Offset int
}

// Evaluate tries rules in priority order (stable for equal priorities) and
// returns the first match whose value survives Transform and every Reject predicate.
func Evaluate(ruleset []PatternRule, text string) (Match, bool) {
	ordered := make([]PatternRule, len(ruleset))
	copy(ordered, ruleset)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	for _, r := range ordered {
		if r.Pattern == nil {
			continue
		}
		for _, loc := range r.Pattern.FindAllStringSubmatchIndex(text, -1) {
			c, ok := candidateFrom(text, loc)
			if !ok {
				continue
			}
			if r.Transform != nil {
				c.Value = r.Transform(c.Value)
				if c.Value == "" {
					continue
				}
			}
			if rejected(r.Reject, c) {
				continue
			}
			return Match{Value: c.Value, Rule: r, Offset: c.Start}, true
		}
	}
	return Match{}, false
}

func candidateFrom(text string, loc []int) (Candidate, bool) {
	for g := 1; 2*g+1 < len(loc); g++ {
		s, e := loc[2*g], loc[2*g+1]
		if s < 0 || e <= s {
			continue
		}
		raw := text[s:e]
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		lead := strings.Index(raw, val)
		return Candidate{Value: val, Start: s + lead, End: s + lead + len(val), Text: text}, true
	}
	return Candidate{}, false
}

func rejected(preds []Predicate, c Candidate) bool {
	for _, p := range preds {
		if p(c) {
			return true
		}
	}
	return false
}
