// Package comparison reconciles extracted fields against submitted values with
// a per-field strategy: calendar equality for dates, tolerance for numbers and
// fuzzy similarity for free text.
package comparison

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"attestor/internal/document"
)

const (
	// DefaultFuzzyThreshold is the minimum 0..100 text ratio counted as a match.
	DefaultFuzzyThreshold = 85.0
	// NumericTolerance is the absolute difference under which numbers are equal.
	NumericTolerance = 0.01
)

// Comparator is stateless after construction and safe for concurrent use.
type Comparator struct {
	threshold     float64
	metric        strutil.StringMetric
	informational map[document.FieldName]bool
	logger        *slog.Logger
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithFuzzyThreshold overrides the text match threshold (0..100).
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Comparator) { c.threshold = threshold }
}

// WithMetric swaps the string similarity metric.
func WithMetric(metric strutil.StringMetric) Option {
	return func(c *Comparator) {
		if metric != nil {
			c.metric = metric
		}
	}
}

// WithInformational marks fields that are compared and reported but carry no
// weight in the aggregate score.
func WithInformational(fields ...document.FieldName) Option {
	return func(c *Comparator) {
		for _, f := range fields {
			c.informational[f] = true
		}
	}
}

// WithLogger reports strategies that fail unexpectedly.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Comparator) { c.logger = logger }
}

// New constructs a Comparator using Levenshtein similarity by default.
func New(opts ...Option) *Comparator {
	c := &Comparator{
		threshold:     DefaultFuzzyThreshold,
		metric:        metrics.NewLevenshtein(),
		informational: map[document.FieldName]bool{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MetricByName resolves a configured similarity metric.
func MetricByName(name string) (strutil.StringMetric, error) {
	switch name {
	case "", "levenshtein":
		return metrics.NewLevenshtein(), nil
	case "jaro-winkler":
		return metrics.NewJaroWinkler(), nil
	case "sorensen-dice":
		return metrics.NewSorensenDice(), nil
	default:
		return nil, fmt.Errorf("unknown similarity metric %q", name)
	}
}

// Compare produces one result per field present on either side, in
// vocabulary order.
func (c *Comparator) Compare(extracted document.FieldSet, submitted document.Values) []Result {
	union := map[document.FieldName]bool{}
	for _, name := range extracted.Names() {
		union[name] = true
	}
	for _, name := range submitted.Names() {
		union[name] = true
	}

	results := make([]Result, 0, len(union))
	for _, name := range document.AllFields() {
		if !union[name] {
			continue
		}
		var ext, sub *string
		if f, ok := extracted.Get(name); ok {
			v := f.Value()
			ext = &v
		}
		if v, ok := submitted.Get(name); ok {
			sub = &v
		}
		r := c.compareField(name, ext, sub)
		r.Inapplicable = c.informational[name]
		results = append(results, r)
	}
	return results
}

// compareField isolates one field so a failure degrades to a zero-confidence
// non-match instead of aborting the batch.
func (c *Comparator) compareField(name document.FieldName, ext, sub *string) (r Result) {
	r = Result{Field: name, Extracted: ext, Submitted: sub}
	defer func() {
		if rec := recover(); rec != nil {
			if c.logger != nil {
				c.logger.Error("field comparison failed", "field", name.String(), "panic", rec)
			}
			r = Result{
				Field:     name,
				Extracted: ext,
				Submitted: sub,
				Reason:    ReasonComparisonFailed,
				Strategy:  r.Strategy,
			}
		}
	}()

	switch {
	case ext == nil:
		r.Strategy = StrategyMissing
		r.Reason = ReasonMissingInSource
		return r
	case sub == nil:
		r.Strategy = StrategyMissing
		r.Reason = ReasonMissingInSubmission
		return r
	}

	if name.DateLike() {
		r.Strategy = StrategyDate
		return c.compareDates(r, *ext, *sub)
	}

	a, aok := parseNumber(*ext)
	b, bok := parseNumber(*sub)
	if name.Numeric() || aok || bok {
		r.Strategy = StrategyNumeric
		r.Matched = aok && bok && math.Abs(a-b) < NumericTolerance
		r.Confidence = binary(r.Matched)
		return r
	}

	r.Strategy = StrategyText
	return c.compareText(r, *ext, *sub)
}

func (c *Comparator) compareDates(r Result, ext, sub string) Result {
	a, aok := document.ParseDate(ext)
	b, bok := document.ParseDate(sub)
	if aok && bok {
		r.Matched = a.Equal(b)
		r.Confidence = binary(r.Matched)
		return r
	}

	na, nb := normalize(r.Field, ext), normalize(r.Field, sub)
	ratio := c.ratio(na, nb)
	r.Matched = na == nb
	r.Confidence = round3(ratio / 100)
	if r.Matched {
		r.Confidence = 1.0
	}
	r.Similarity = &ratio
	return r
}

func (c *Comparator) compareText(r Result, ext, sub string) Result {
	na, nb := normalize(r.Field, ext), normalize(r.Field, sub)
	if na == nb {
		r.Matched = true
		r.Confidence = 1.0
		return r
	}

	ratio := c.ratio(na, nb)
	r.Matched = ratio >= c.threshold
	r.Confidence = round3(ratio / 100)
	r.Similarity = &ratio
	return r
}

// ratio is the 0..100 similarity, taking the better of the plain and the
// token-sorted comparison so word order does not count against a match.
func (c *Comparator) ratio(a, b string) float64 {
	plain := strutil.Similarity(a, b, c.metric)
	sorted := strutil.Similarity(sortTokens(a), sortTokens(b), c.metric)
	return math.Round(math.Max(plain, sorted)*10000) / 100
}

func binary(matched bool) float64 {
	if matched {
		return 1.0
	}
	return 0.0
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
