package domain

import "fmt"

// Result is what a single generation call produces: text on success, a
// human-readable reason on failure. Never both.
type Result struct {
	Text    string
	Failure string
}

// Success wraps completion text.
func Success(text string) Result {
	return Result{Text: text}
}

// Failure builds a failed result from a format string.
func Failure(format string, args ...any) Result {
	msg := fmt.Sprintf(format, args...)
	if msg == "" {
		msg = "generation failed"
	}
	return Result{Failure: msg}
}

// Failed reports whether the call did not produce text.
func (r Result) Failed() bool {
	return r.Failure != ""
}

// Outcome is the per-placeholder result of a fan-out, keyed by placeholder id.
type Outcome struct {
	ID    string  `json:"id" yaml:"id"`
	Text  string  `json:"text" yaml:"text"`
	Error *string `json:"error" yaml:"error"`
}

// NewOutcome binds a result to the placeholder it was generated for.
// A failed result carries empty text.
func NewOutcome(id string, r Result) Outcome {
	if r.Failed() {
		return Outcome{ID: id, Error: ptr(r.Failure)}
	}
	return Outcome{ID: id, Text: r.Text}
}

// Failed reports whether the outcome carries an error.
func (o Outcome) Failed() bool {
	return o.Error != nil
}

// GenerateRequest is the body accepted by the generation surface.
// NSiblings is informational; the placeholder list decides the fan-out width.
type GenerateRequest struct {
	ParentNodeID   string         `json:"parent_node_id"`
	PlaceholderIDs []string       `json:"placeholder_ids"`
	NSiblings      int            `json:"n_siblings,omitempty"`
	Settings       map[string]any `json:"settings,omitempty"`
}

// GenerateResponse wraps the outcome list returned to callers.
type GenerateResponse struct {
	Nodes []Outcome `json:"nodes"`
}
