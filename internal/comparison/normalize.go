package comparison

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"attestor/internal/document"
)

var (
	punctuation   = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	nonPhone      = regexp.MustCompile(`[^\d+]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	numberPattern = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)$`)
)

// normalize lower-cases, strips field-specific noise and collapses whitespace.
func normalize(field document.FieldName, s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch field {
	case document.Name, document.Address:
		s = punctuation.ReplaceAllString(s, "")
	case document.Phone:
		s = nonPhone.ReplaceAllString(s, "")
		leading := strings.HasPrefix(s, "+")
		s = strings.ReplaceAll(s, "+", "")
		if leading {
			s = "+" + s
		}
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// parseNumber accepts plain decimal numbers only, ignoring spaces and
// thousands separators. NaN and Inf spellings are rejected.
func parseNumber(s string) (float64, bool) {
	s = strings.NewReplacer(" ", "", ",", "").Replace(strings.TrimSpace(s))
	if !numberPattern.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
