package normalization

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// Key is the canonical matching key for identifiers, company names and place names:
// case folded with every whitespace rune removed. "Drax Power Ltd" and "DRAXPOWER LTD"
// share a key, which is also why distinct names differing only in spacing collapse.
func Key(text string) string {
	if text == "" {
		return ""
	}
	folded := folder.String(text)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// KeyOf normalizes string-like values and maps everything else to "".
func KeyOf(v any) string {
	switch t := v.(type) {
	case string:
		return Key(t)
	case *string:
		if t == nil {
			return ""
		}
		return Key(*t)
	case []byte:
		return Key(string(t))
	default:
		return ""
	}
}

// Place is the lower-case display form of a place name with inner whitespace collapsed.
func Place(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Terms splits a query into lower-case search terms, dropping one-character fragments.
func Terms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// IsPlaceholder reports names that sources use for "unknown".
func IsPlaceholder(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "nan", "none", "null", "n/a", "-", "tbc":
		return true
	default:
		return false
	}
}
