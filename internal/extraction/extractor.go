// Package extraction turns recognized document text into typed candidate fields.
package extraction

import (
	"log/slog"
	"regexp"
	"unicode/utf8"

	"attestor/internal/document"
)

// MinTextLength is the shortest text worth scanning.
const MinTextLength = 5

var labeledPostalCode = regexp.MustCompile(`(?i)\bPIN(?:\s*code)?[\s:]*(\d{6})\b`)

// Extractor applies the generic field rules and, optionally, the
// document-specific identifier rules. It holds no mutable state and is safe
// for concurrent use.
type Extractor struct {
	documentPass bool
	logger       *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithDocumentPass enables national id, tax id and postal code extraction.
func WithDocumentPass() Option {
	return func(e *Extractor) { e.documentPass = true }
}

// WithLogger reports rules that fail unexpectedly.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// New constructs an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract never fails: a rule that does not match leaves its field absent.
func (e *Extractor) Extract(text string) document.FieldSet {
	if utf8.RuneCountInString(text) < MinTextLength {
		return document.NewFieldSet()
	}

	generic := e.run(genericRules, text)
	if !e.documentPass {
		return generic
	}
	return generic.Merge(e.documentFields(text, generic))
}

func (e *Extractor) documentFields(text string, generic document.FieldSet) document.FieldSet {
	specific := e.run(documentRules, text)

	var postal []document.Field
	if addr, ok := generic.Get(document.Address); ok {
		if code := postalCodePattern.FindString(addr.Raw); code != "" {
			postal = append(postal, document.Field{Name: document.PostalCode, Raw: code, Normalized: code})
		}
	}
	if m := labeledPostalCode.FindStringSubmatch(text); m != nil {
		postal = append(postal, document.Field{Name: document.PostalCode, Raw: m[1], Normalized: m[1]})
	}
	return specific.Merge(document.NewFieldSet(postal...))
}

func (e *Extractor) run(rules []rule, text string) document.FieldSet {
	fields := make([]document.Field, 0, len(rules))
	for _, r := range rules {
		if f, ok := e.safeApply(r, text); ok {
			fields = append(fields, f)
		}
	}
	return document.NewFieldSet(fields...)
}

// safeApply isolates one rule so a failure only drops that field.
func (e *Extractor) safeApply(r rule, text string) (f document.Field, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			if e.logger != nil {
				e.logger.Error("field rule failed", "field", r.field.String(), "panic", rec)
			}
			f, ok = document.Field{}, false
		}
	}()
	return r.apply(text)
}
