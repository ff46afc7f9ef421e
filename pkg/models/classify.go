// Package models contains domain models for retrace.
package models

// ProviderAttempt records one consultation of a classification provider.
type ProviderAttempt struct {
	ProviderID string `json:"provider_id"`
	Available  bool   `json:"available"`
	LatencyMs  int64  `json:"latency_ms"`
	Error      string `json:"error,omitempty"`
}

// ClassificationResult is the structured label a provider assigns to a
// capture.
type ClassificationResult struct {
	Category   string  `json:"category"`
	Activity   string  `json:"activity,omitempty"`
	Summary    string  `json:"summary,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Empty reports whether the result carries no usable classification.
// A provider returning an empty result is treated as a miss and the router
// falls through to the next provider.
func (r *ClassificationResult) Empty() bool {
	return r == nil || (r.Category == "" && r.Activity == "" && r.Summary == "")
}

// ClassificationDecision is the router's outcome: the winning provider (if
// any) plus the full attempt trail for diagnostics.
type ClassificationDecision struct {
	OK         bool                  `json:"ok"`
	ProviderID string                `json:"provider_id,omitempty"`
	Result     *ClassificationResult `json:"result,omitempty"`
	Attempts   []ProviderAttempt     `json:"attempts"`
}
