package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

var (
	reYMD       = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})$`)
	reMDY       = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.](\d{2}|\d{4})$`)
	reDayMonY   = regexp.MustCompile(`^(\d{1,2})[\s\-]?([A-Za-z]{3,9})\.?[\s\-,]*(\d{2}|\d{4})$`)
	reMonDayY   = regexp.MustCompile(`^([A-Za-z]{3,9})\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})$`)
	reSerial    = regexp.MustCompile(`^\d{5}(\.\d+)?$`)
	reDateTrail = regexp.MustCompile(`[\s,;:.]+$`)
)

var months = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// spreadsheet serial day 0; includes the 1900 leap-year quirk for serials after Feb 1900
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// NormalizeDate converts a raw date token to YYYY-MM-DD, or "" when the
// format is unrecognized or the calendar values are out of range.
func NormalizeDate(raw string) string {
	s := reDateTrail.ReplaceAllString(strings.TrimSpace(raw), "")
	if s == "" {
		return ""
	}
	if out := normalizeDateToken(s); out != "" {
		return out
	}
	// "01/02/2024 10:30" style values from spreadsheets
	if first, _, ok := strings.Cut(s, " "); ok {
		if reMDY.MatchString(first) || reYMD.MatchString(first) {
			return normalizeDateToken(first)
		}
	}
	return ""
}

func normalizeDateToken(s string) string {
	if m := reYMD.FindStringSubmatch(s); m != nil {
		return buildDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := reMDY.FindStringSubmatch(s); m != nil {
		return buildDate(expandYear(m[3]), atoi(m[1]), atoi(m[2]))
	}
	if m := reDayMonY.FindStringSubmatch(s); m != nil {
		month := monthNumber(m[2])
		if month == 0 {
			return ""
		}
		return buildDate(expandYear(m[3]), month, atoi(m[1]))
	}
	if m := reMonDayY.FindStringSubmatch(s); m != nil {
		month := monthNumber(m[1])
		if month == 0 {
			return ""
		}
		return buildDate(atoi(m[3]), month, atoi(m[2]))
	}
	if reSerial.MatchString(s) {
		return fromSerial(s)
	}
	return ""
}

// expandYear maps two-digit years: <=50 to 20xx, >50 to 19xx.
func expandYear(y string) int {
	n := atoi(y)
	if len(y) != 2 {
		return n
	}
	if n <= 50 {
		return 2000 + n
	}
	return 1900 + n
}

func monthNumber(tok string) int {
	tok = strings.ToLower(tok)
	if len(tok) < 3 {
		return 0
	}
	if tok == "sept" {
		return 9
	}
	for i, name := range months {
		if strings.HasPrefix(name, tok) {
			return i + 1
		}
	}
	return 0
}

func buildDate(year, month, day int) string {
	if year < 1900 || year > 2199 || month < 1 || month > 12 || day < 1 || day > 31 {
		return ""
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 -> Mar 2); reject those
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return ""
	}
	return t.Format(isoDate)
}

func fromSerial(s string) string {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return ""
	}
	t := serialEpoch.AddDate(0, 0, int(f))
	return buildDate(t.Year(), int(t.Month()), t.Day())
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
