// Package confidence reduces per-field comparison results to an overall
// score, acceptance decision and qualitative level.
package confidence

import (
	"math"

	"attestor/internal/comparison"
	"attestor/internal/document"
)

// DefaultAcceptanceThreshold is the minimum overall score for acceptance.
const DefaultAcceptanceThreshold = 0.85

// Outcome is the aggregate decision for one verification.
type Outcome struct {
	Results       []comparison.Result
	OverallScore  float64
	Accepted      bool
	Level         Level
	Mismatched    []document.FieldName
	FieldsChecked int
	FieldsMatched int
}

// Aggregator holds the acceptance threshold.
type Aggregator struct {
	threshold float64
}

// NewAggregator returns an Aggregator; a non-positive threshold selects the default.
func NewAggregator(threshold float64) *Aggregator {
	if threshold <= 0 {
		threshold = DefaultAcceptanceThreshold
	}
	return &Aggregator{threshold: threshold}
}

// Threshold returns the acceptance threshold in use.
func (a *Aggregator) Threshold() float64 {
	return a.threshold
}

// Aggregate averages the confidences of scored results. An empty set scores 0.
// Acceptance compares the unrounded mean; Rounded is for presentation.
func (a *Aggregator) Aggregate(results []comparison.Result) Outcome {
	out := Outcome{
		Results:    results,
		Mismatched: []document.FieldName{},
	}

	var sum float64
	var scored int
	for _, r := range results {
		out.FieldsChecked++
		if r.Matched {
			out.FieldsMatched++
		} else {
			out.Mismatched = append(out.Mismatched, r.Field)
		}
		if r.Inapplicable {
			continue
		}
		sum += r.Confidence
		scored++
	}

	if scored > 0 {
		out.OverallScore = sum / float64(scored)
	}
	out.Accepted = out.OverallScore >= a.threshold
	out.Level = Band(out.OverallScore)
	return out
}

// Rounded returns the overall score rounded to three decimals.
func (o Outcome) Rounded() float64 {
	return math.Round(o.OverallScore*1000) / 1000
}

// Agreed returns the submitted values of the fields that matched.
func (o Outcome) Agreed() document.Values {
	m := map[document.FieldName]string{}
	for _, r := range o.Results {
		if r.Matched && r.Submitted != nil {
			m[r.Field] = *r.Submitted
		}
	}
	return document.ValuesOf(m)
}
