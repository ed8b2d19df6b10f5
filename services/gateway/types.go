// Package gateway runs the request pipeline: every prediction passes the
// full screening chain in a fixed order before the model is invoked.
package gateway

// PredictRequest carries one prediction request through the pipeline.
type PredictRequest struct {
	Input   string
	Context map[string]string

	// Compliance inputs.
	UserConsent            map[string]bool
	Region                 string
	PrivacyLevel           string
	RetentionPolicy        string
	RetentionJustification string

	// Routing inputs.
	ModelOverride string

	// Transport-derived fields, filled by the handler.
	APIKey    string
	ClientIP  string
	RequestID string
}

// DebugInfo is the non-sensitive metadata returned alongside the output.
type DebugInfo struct {
	Model     string `json:"model"`
	Truncated bool   `json:"truncated"`
}

// PredictResponse is the pipeline result for an admitted request.
type PredictResponse struct {
	Output string    `json:"output"`
	Debug  DebugInfo `json:"debug"`
}
