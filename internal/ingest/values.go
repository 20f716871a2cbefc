package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/KaramelBytes/sheetchat/internal/frame"
)

var missingTokens = map[string]bool{
	"": true, "na": true, "n/a": true, "nan": true, "null": true, "none": true, "#n/a": true, "nil": true,
}

var (
	integerRe   = regexp.MustCompile(`^[+-]?\d+$`)
	thousandsRe = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+$`)
)

func isMissing(s string) bool { return missingTokens[strings.ToLower(strings.TrimSpace(s))] }

// inferColumn picks the narrowest kind that parses every non-missing cell:
// integer, float, boolean, datetime, else text.
func inferColumn(cells []string, opts Options) (frame.Kind, []any) {
	present := 0
	for _, c := range cells {
		if !isMissing(c) {
			present++
		}
	}
	if present == 0 {
		return frame.KindText, make([]any, len(cells))
	}
	try := []struct {
		kind  frame.Kind
		parse func(string) (any, bool)
	}{
		{frame.KindInteger, func(s string) (any, bool) { return parseInteger(s, opts) }},
		{frame.KindFloat, func(s string) (any, bool) {
			f, ok := parseNumeric(s, opts)
			return f, ok
		}},
		{frame.KindBoolean, parseBool},
		{frame.KindDatetime, func(s string) (any, bool) {
			t, ok := parseTimeMaybe(s)
			return t, ok
		}},
	}
	for _, cand := range try {
		if vals, ok := parseAll(cells, cand.parse); ok {
			return cand.kind, vals
		}
	}
	vals := make([]any, len(cells))
	for i, c := range cells {
		if !isMissing(c) {
			vals[i] = strings.TrimSpace(c)
		}
	}
	return frame.KindText, vals
}

func parseAll(cells []string, parse func(string) (any, bool)) ([]any, bool) {
	vals := make([]any, len(cells))
	for i, c := range cells {
		if isMissing(c) {
			continue
		}
		v, ok := parse(strings.TrimSpace(c))
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

func parseInteger(s string, opts Options) (any, bool) {
	raw := strings.TrimSpace(s)
	if thousandsRe.MatchString(raw) && opts.DecimalSeparator != ',' {
		raw = strings.ReplaceAll(raw, ",", "")
	}
	if !integerRe.MatchString(raw) {
		return nil, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	return n, true
}

func parseBool(s string) (any, bool) {
	switch strings.ToLower(s) {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	}
	return nil, false
}

func parseTimeMaybe(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumeric accepts locale-formatted numbers such as "1.234,5", "1,234.5",
// "12%" and scientific notation.
func parseNumeric(s string, opts Options) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00a0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsFunc(raw, func(r rune) bool {
		return unicode.IsLetter(r) && r != 'e' && r != 'E'
	}) {
		return 0, false
	}
	dec := opts.DecimalSeparator
	thou := opts.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0 && thousandsRe.MatchString(raw):
			dec, thou = '.', ','
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
		raw = strings.ReplaceAll(raw, " ", "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
