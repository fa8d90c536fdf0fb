package document

import (
	"strings"
	"time"
)

// DateLayouts is the ordered list of formats tried when normalizing or
// comparing dates. The first layout that parses wins, so day-first beats
// month-first for ambiguous inputs.
var DateLayouts = []string{
	"2/1/2006",
	"1/2/2006",
	"2-1-2006",
	"2/1/06",
	"2006-01-02",
}

// CanonicalDateLayout is the normalized representation, YYYY-MM-DD.
const CanonicalDateLayout = "2006-01-02"

// ParseDate tries DateLayouts in order.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeDate renders s as YYYY-MM-DD, or returns s unchanged when no layout parses.
func NormalizeDate(s string) string {
	if t, ok := ParseDate(s); ok {
		return t.Format(CanonicalDateLayout)
	}
	return s
}
