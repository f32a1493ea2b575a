package notam

import "math"

// CategorizationResult is the classification signal produced by one
// categorizer. Merge never mutates either operand.
type CategorizationResult struct {
	PrimaryCategory string         `json:"primary_category,omitempty"` // "" when unset
	Categories      Set            `json:"categories"`
	Tags            Set            `json:"tags"`
	RelevanceHints  map[string]any `json:"relevance_hints,omitempty"`
	Confidence      float64        `json:"confidence"`
	Source          string         `json:"source,omitempty"`
}

// NewCategorizationResult returns the unconfigured value: confidence 1.0 and
// everything else empty. Pipelines seed their fold with it.
func NewCategorizationResult() CategorizationResult {
	return CategorizationResult{
		Categories:     Set{},
		Tags:           Set{},
		RelevanceHints: map[string]any{},
		Confidence:     1.0,
	}
}

// EmptyResult is the "no match" outcome of a categorizer
func EmptyResult(source string) CategorizationResult {
	return CategorizationResult{
		Categories:     Set{},
		Tags:           Set{},
		RelevanceHints: map[string]any{},
		Confidence:     0,
		Source:         source,
	}
}

// ValidConfidence reports whether the confidence lies in [0, 1]
func (r CategorizationResult) ValidConfidence() bool {
	return r.Confidence >= 0 && r.Confidence <= 1
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	return math.Max(0, math.Min(1, c))
}

// IsEmpty reports whether the result carries no classification signal
func (r CategorizationResult) IsEmpty() bool {
	return r.PrimaryCategory == "" && r.Categories.Len() == 0 && r.Tags.Len() == 0
}

// Merge combines two results. Categories and tags are unioned, relevance
// hints are shallow-merged with other winning on key collisions. The primary
// category comes from whichever side has one; when both do, other wins only
// with strictly higher confidence, so on a tie the receiver is kept.
// Confidences outside [0, 1] are clamped before comparing.
func (r CategorizationResult) Merge(other CategorizationResult) CategorizationResult {
	r.Confidence = clampConfidence(r.Confidence)
	other.Confidence = clampConfidence(other.Confidence)
	merged := CategorizationResult{
		Categories:     r.Categories.Union(other.Categories),
		Tags:           r.Tags.Union(other.Tags),
		RelevanceHints: make(map[string]any, len(r.RelevanceHints)+len(other.RelevanceHints)),
	}
	for k, v := range r.RelevanceHints {
		merged.RelevanceHints[k] = v
	}
	for k, v := range other.RelevanceHints {
		merged.RelevanceHints[k] = v
	}

	switch {
	case r.PrimaryCategory != "" && other.PrimaryCategory == "":
		merged.PrimaryCategory, merged.Confidence = r.PrimaryCategory, r.Confidence
	case r.PrimaryCategory == "" && other.PrimaryCategory != "":
		merged.PrimaryCategory, merged.Confidence = other.PrimaryCategory, other.Confidence
	case r.PrimaryCategory != "" && other.Confidence > r.Confidence:
		merged.PrimaryCategory, merged.Confidence = other.PrimaryCategory, other.Confidence
	default:
		merged.PrimaryCategory, merged.Confidence = r.PrimaryCategory, r.Confidence
	}

	switch {
	case r.Source != "" && other.Source != "":
		merged.Source = r.Source + "+" + other.Source
	case r.Source != "":
		merged.Source = r.Source
	default:
		merged.Source = other.Source
	}

	return merged
}
