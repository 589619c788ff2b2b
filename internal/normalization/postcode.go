package normalization

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	unitIDPattern      = regexp.MustCompile(`^[A-Za-z]{3}\d{3}$`)
	outwardCodePattern = regexp.MustCompile(`^[A-Za-z]{1,2}\d[A-Za-z\d]?$`)
	fullPostcode       = regexp.MustCompile(`(?i)\b([A-Z]{1,2}\d[A-Z\d]?)\s*\d[A-Z]{2}\b`)
)

// IsUnitID reports whether the trimmed query has the shape of a capacity market unit id (ABC123).
func IsUnitID(query string) bool {
	return unitIDPattern.MatchString(strings.TrimSpace(query))
}

// IsOutwardCode reports whether s looks like the outward half of a UK postcode (SW11, NG1, M1).
func IsOutwardCode(s string) bool {
	return outwardCodePattern.MatchString(strings.TrimSpace(s))
}

// OutwardCode extracts the outward code of the last postcode in a free-text location.
// A trailing outward-only token ("Battersea, London SW11") is accepted too.
func OutwardCode(location string) string {
	if strings.TrimSpace(location) == "" {
		return ""
	}
	if m := fullPostcode.FindAllStringSubmatch(location, -1); len(m) > 0 {
		return strings.ToUpper(m[len(m)-1][1])
	}
	tokens := strings.FieldsFunc(location, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';'
	})
	if len(tokens) < 2 {
		return ""
	}
	last := tokens[len(tokens)-1]
	if IsOutwardCode(last) && strings.IndexFunc(last, unicode.IsDigit) > 0 {
		return strings.ToUpper(last)
	}
	return ""
}

// PostalArea is the leading letter prefix of an outward code ("SW11" -> "SW").
func PostalArea(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	end := strings.IndexFunc(code, unicode.IsDigit)
	if end < 0 {
		return code
	}
	return code[:end]
}

// DistinctAreas counts distinct postal areas across codes.
func DistinctAreas(codes []string) int {
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if a := PostalArea(c); a != "" {
			seen[a] = struct{}{}
		}
	}
	return len(seen)
}
