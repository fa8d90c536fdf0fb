package comparison

import "attestor/internal/document"

// Reason explains a non-match that did not come from comparing two values.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonMissingInSource     Reason = "missing_in_source"
	ReasonMissingInSubmission Reason = "missing_in_submission"
	ReasonComparisonFailed    Reason = "comparison_failed"
)

// Strategy names the comparison path a field took.
type Strategy string

const (
	StrategyMissing Strategy = "missing"
	StrategyDate    Strategy = "date"
	StrategyNumeric Strategy = "numeric"
	StrategyText    Strategy = "text"
)

// Result is the verdict for one field present on either side.
type Result struct {
	Field      document.FieldName `json:"field"`
	Extracted  *string            `json:"extracted_value"`
	Submitted  *string            `json:"submitted_value"`
	Matched    bool               `json:"matched"`
	Confidence float64            `json:"confidence"`
	// Inapplicable results are reported but carry no confidence for scoring.
	Inapplicable bool     `json:"inapplicable,omitempty"`
	Reason       Reason   `json:"reason,omitempty"`
	Strategy     Strategy `json:"strategy"`
	// Similarity is the raw 0..100 ratio from the text path.
	Similarity *float64 `json:"similarity_score,omitempty"`
}
