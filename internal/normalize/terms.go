package normalize

import (
	"regexp"
	"strings"
)

var (
	reTermsNet     = regexp.MustCompile(`(?i)^net\s*(\d{1,3})(\s*days)?$`)
	reTermsCOD     = regexp.MustCompile(`(?i)^(?:c\.\s?o\.\s?d\.?|cod)$`)
	reTermsReceipt = regexp.MustCompile(`(?i)^due\s+(on|upon)\s+receipt$`)
)

// NormalizeTerms maps a payment-terms phrase onto its canonical spelling:
// "NET n", "NET n DAYS", "C.O.D.", "DUE ON RECEIPT" or "DUE UPON RECEIPT".
// Anything outside that vocabulary yields "".
func NormalizeTerms(raw string) string {
	s := strings.Join(strings.Fields(raw), " ")
	if m := reTermsNet.FindStringSubmatch(s); m != nil {
		out := "NET " + strings.TrimLeft(m[1], "0")
		if strings.TrimLeft(m[1], "0") == "" {
			out = "NET 0"
		}
		if m[2] != "" {
			out += " DAYS"
		}
		return out
	}
	if reTermsCOD.MatchString(s) {
		return "C.O.D."
	}
	if m := reTermsReceipt.FindStringSubmatch(s); m != nil {
		return "DUE " + strings.ToUpper(m[1]) + " RECEIPT"
	}
	return ""
}
