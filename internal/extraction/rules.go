package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"attestor/internal/document"
)

// rule extracts one field. Matchers are tried in order and the first one
// whose capture passes accept wins; later matchers are fallbacks.
type rule struct {
	field     document.FieldName
	matchers  []*regexp.Regexp
	group     int
	accept    func(raw string) bool
	normalize func(raw string) string
}

func (r rule) apply(text string) (document.Field, bool) {
	for _, re := range r.matchers {
		m := re.FindStringSubmatch(text)
		if m == nil || len(m) <= r.group {
			continue
		}
		raw := strings.TrimSpace(m[r.group])
		if r.accept != nil && !r.accept(raw) {
			continue
		}
		normalized := raw
		if r.normalize != nil {
			normalized = r.normalize(raw)
		}
		return document.Field{Name: r.field, Raw: raw, Normalized: normalized}, true
	}
	return document.Field{}, false
}

var (
	labeledName = regexp.MustCompile(`(?:Applicant'?s?\s+)?(?:name|Name|NAME)[\s:]+([A-Z][A-Za-z]+(?:[ \t]+[A-Z][A-Za-z]+)+)`)
	studentName = regexp.MustCompile(`(?:Student|Candidate)[\s:]+([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)+)`)

	labeledDate = regexp.MustCompile(`(?i)(?:DOB|Date of Birth|Birth Date)[\s:]*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\b`)
	labeledISO  = regexp.MustCompile(`(?i)(?:DOB|Date of Birth|Birth Date)[\s:]*(\d{4}-\d{2}-\d{2})\b`)

	labeledAge = regexp.MustCompile(`(?i)\bAge[\s:]*(\d{1,3})\b`)

	emailPattern = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)

	labeledPhone = regexp.MustCompile(`(?i)(?:Mobile|Phone|Tel)[\s/]*(?:No\.?)?[\s:]*(\d{10})\b`)

	labeledGender = regexp.MustCompile(`(?i)(?:Gender|Sex)[\s:]*\b(male|female)\b`)

	labeledAddress = regexp.MustCompile(`(?is)Address[\s:]+(.+?)(?:\n[ \t]*(?:PIN|Pincode|Email|E-mail|Phone|Mobile|Tel|DOB|Date of Birth|Gender|Sex|Name)\b|\z)`)

	whitespaceRun = regexp.MustCompile(`\s+`)
)

// genericRules run on every document.
var genericRules = []rule{
	{
		field:    document.Name,
		matchers: []*regexp.Regexp{labeledName, studentName},
		group:    1,
		accept:   acceptName,
	},
	{
		field:     document.DateOfBirth,
		matchers:  []*regexp.Regexp{labeledDate, labeledISO},
		group:     1,
		normalize: document.NormalizeDate,
	},
	{
		field:    document.Age,
		matchers: []*regexp.Regexp{labeledAge},
		group:    1,
		accept:   acceptAge,
	},
	{
		field:    document.Email,
		matchers: []*regexp.Regexp{emailPattern},
		group:    0,
	},
	{
		field:    document.Phone,
		matchers: []*regexp.Regexp{labeledPhone},
		group:    1,
	},
	{
		field:     document.Gender,
		matchers:  []*regexp.Regexp{labeledGender},
		group:     1,
		normalize: titleCase,
	},
	{
		field:     document.Address,
		matchers:  []*regexp.Regexp{labeledAddress},
		group:     1,
		normalize: collapseWhitespace,
		accept:    acceptAddress,
	},
}

var (
	nationalIDPattern = regexp.MustCompile(`\b\d{4}[ ]?\d{4}[ ]?\d{4}\b`)
	taxIDPattern      = regexp.MustCompile(`\b[A-Z]{5}\d{4}[A-Z]\b`)
	postalCodePattern = regexp.MustCompile(`\b\d{6}\b`)
)

// documentRules identify document-specific identifiers.
var documentRules = []rule{
	{
		field:     document.NationalID,
		matchers:  []*regexp.Regexp{nationalIDPattern},
		group:     0,
		normalize: func(raw string) string { return strings.ReplaceAll(raw, " ", "") },
	},
	{
		field:    document.TaxID,
		matchers: []*regexp.Regexp{taxIDPattern},
		group:    0,
	},
}

func acceptName(raw string) bool {
	n := utf8.RuneCountInString(raw)
	return n >= 5 && n <= 50 && len(strings.Fields(raw)) >= 2
}

func acceptAge(raw string) bool {
	age, err := strconv.Atoi(raw)
	return err == nil && age > 0 && age <= 150
}

func acceptAddress(raw string) bool {
	n := utf8.RuneCountInString(collapseWhitespace(raw))
	return n >= 15 && n <= 300
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
