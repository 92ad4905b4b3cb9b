package rules

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/invoice-extractor/internal/normalize"
)

// Identifier bounds for document ids.
const (
	MinIdentifierLength = 4
	MaxIdentifierLength = 30
)

// addressBlockWindow is how many lines above a candidate are searched for a block label.
const addressBlockWindow = 4

var (
	reBareYear     = regexp.MustCompile(`^(?:\d{2}|(?:19|20)\d{2})$`)
	reAddressLabel = regexp.MustCompile(`(?i)\b(?:bill(?:ed)?\s*to|ship(?:ped)?\s*to|sold\s*to|deliver(?:ed)?\s*to|invoice\s*to|customer|attn\b|attention)`)
	reEntitySuffix = regexp.MustCompile(`(?i)(?:\b(?:llc|l\.l\.c\.|inc|incorporated|corp|corporation|company|ltd|limited|llp|pllc|gmbh|plc)\b\.?|\bco\.)`)
	reHeaderFooter = regexp.MustCompile(`(?i)\b(?:invoice|bill\s*to|ship\s*to|sold\s*to|remit|sub-?total|total|balance|amount\s+due|page|thank\s*you|terms|tax|qty|quantity|unit\s+price|description|please|phone|fax|e-?mail|www\.|https?:|continued|carried\s+forward)\b`)
	reMoney        = regexp.MustCompile(`\$?\s?\d{1,3}(?:,\d{3})*\.\d{2}\b|\$?\s?\d+\.\d{2}\b`)
	reWord         = regexp.MustCompile(`[A-Za-z][A-Za-z&'.\-]*`)
	reOtherDate    = regexp.MustCompile(`(?i)\b(?:due|ship(?:ped)?|deliver(?:y|ed)?|expir\w*|print(?:ed)?|order)\b`)
	rePartialTotal = regexp.MustCompile(`(?i)sub[\s\-]*total|\btax\b|\bdiscount\b|\bfreight\b|\bshipping\b`)
)

// LooksLikeYear reports a bare 2-digit number or a 4-digit 19xx/20xx year.
func LooksLikeYear(s string) bool {
	return reBareYear.MatchString(strings.TrimSpace(s))
}

// LooksLikeDate reports a value that normalizes as a date. Pure digit runs
// are identifiers here, not spreadsheet serials.
func LooksLikeDate(s string) bool {
	s = strings.TrimSpace(s)
	if strings.Trim(s, "0123456789") == "" {
		return false
	}
	return normalize.NormalizeDate(s) != ""
}

// HasDigit reports whether s contains at least one decimal digit.
func HasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

// HasEntitySuffix reports a line carrying a company form such as LLC, Inc. or Corp.
func HasEntitySuffix(line string) bool {
	return reEntitySuffix.MatchString(line)
}

// HasMoney reports a 2-decimal currency amount somewhere in the line.
func HasMoney(line string) bool {
	return reMoney.MatchString(line)
}

// IsAddressLabel reports a bill-to/ship-to/customer block label.
func IsAddressLabel(line string) bool {
	return reAddressLabel.MatchString(line)
}

// IsHeaderFooterLine reports table headers, totals rows and page furniture.
func IsHeaderFooterLine(line string) bool {
	return reHeaderFooter.MatchString(line)
}

// LooksLikeHeading reports an all-caps line of two or more words with no digits.
func LooksLikeHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || len(line) > 60 || HasDigit(line) {
		return false
	}
	words := reWord.FindAllString(line, -1)
	if len(words) < 2 {
		return false
	}
	letters, other := 0, 0
	for _, r := range line {
		switch {
		case unicode.IsLetter(r):
			if unicode.IsLower(r) {
				return false
			}
			letters++
		case unicode.IsSpace(r):
		default:
			other++
		}
	}
	return letters >= 4 && letters*4 >= (letters+other)*3
}

// ProductMatcher builds a predicate reporting lines that name one of the
// domain nouns (singular or plural).
func ProductMatcher(nouns []string) func(line string) bool {
	alts := make([]string, 0, len(nouns))
	for _, n := range nouns {
		n = strings.TrimSpace(strings.ToLower(n))
		if n != "" {
			alts = append(alts, regexp.QuoteMeta(n))
		}
	}
	if len(alts) == 0 {
		return func(string) bool { return false }
	}
	re := regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)(?:s|es)?\b`)
	return re.MatchString
}

// InAddressBlock reports a candidate sitting on, or just under, a
// bill-to/ship-to/customer label. A blank line ends the block.
func InAddressBlock(c Candidate) bool {
	if IsAddressLabel(c.Line()) {
		return true
	}
	before := c.Text[:c.Start]
	idx := strings.LastIndexByte(before, '\n')
	if idx < 0 {
		return false
	}
	above := strings.Split(before[:idx], "\n")
	for i, n := len(above)-1, 0; i >= 0 && n < addressBlockWindow; i, n = i-1, n+1 {
		l := strings.TrimSpace(above[i])
		if l == "" {
			return false
		}
		if IsAddressLabel(l) {
			return true
		}
	}
	return false
}

// linePrefix is the text between the start of the candidate's line and the candidate.
func linePrefix(c Candidate) string {
	start := strings.LastIndexByte(c.Text[:c.Start], '\n') + 1
	return c.Text[start:c.Start]
}

// HasOtherDateLabel reports a date candidate labeled as due, ship, delivery or order date.
func HasOtherDateLabel(c Candidate) bool {
	return reOtherDate.MatchString(linePrefix(c))
}

// IsPartialTotal reports an amount on a subtotal, tax, discount or shipping line.
func IsPartialTotal(c Candidate) bool {
	return rePartialTotal.MatchString(c.Line())
}

// Candidate predicates used by pattern rules.
var (
	RejectBareYear Predicate = func(c Candidate) bool { return LooksLikeYear(c.Value) }
	RejectDateLike Predicate = func(c Candidate) bool { return LooksLikeDate(c.Value) }
	RejectNoDigit  Predicate = func(c Candidate) bool { return !HasDigit(c.Value) }
	RejectAddress  Predicate = InAddressBlock
	RejectZero     Predicate = func(c Candidate) bool { return normalize.ParseMoney(c.Value) == 0 }
	RejectHeader   Predicate = func(c Candidate) bool { return IsHeaderFooterLine(c.Value) }
)

// IdentifierLength rejects values shorter than min or longer than max runes.
func IdentifierLength(min, max int) Predicate {
	return func(c Candidate) bool {
		n := len([]rune(c.Value))
		return n < min || n > max
	}
}

// RejectIdentifierLength applies the standard 4..30 identifier bounds.
var RejectIdentifierLength = IdentifierLength(MinIdentifierLength, MaxIdentifierLength)

var namedPredicates = map[string]Predicate{
	"bare_year":     RejectBareYear,
	"date_like":     RejectDateLike,
	"no_digit":      RejectNoDigit,
	"address_block": RejectAddress,
	"id_length":     RejectIdentifierLength,
	"zero_amount":   RejectZero,
	"header_line":   RejectHeader,
	"other_date":    HasOtherDateLabel,
	"partial_total": IsPartialTotal,
}

// PredicateByName resolves a predicate referenced from template data.
func PredicateByName(name string) (Predicate, error) {
	p, ok := namedPredicates[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown reject predicate %q", name)
	}
	return p, nil
}
