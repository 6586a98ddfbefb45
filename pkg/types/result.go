// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"time"
)

// ApprovalStatus tells callers how far to trust a PipelineResult.
type ApprovalStatus string

const (
	StatusApproved ApprovalStatus = "approved"
	StatusFlagged  ApprovalStatus = "flagged"
	StatusError    ApprovalStatus = "error"
)

// ErrorKind classifies the failure that shaped a result. Empty means none.
type ErrorKind string

const (
	ErrKindNone                    ErrorKind = ""
	ErrKindClassification          ErrorKind = "classification_error"
	ErrKindRetrievalPartialFailure ErrorKind = "retrieval_partial_failure"
	ErrKindGeneration              ErrorKind = "generation_error"
	ErrKindGenerationTimeout       ErrorKind = "generation_timeout"
	ErrKindReview                  ErrorKind = "review_error"
	ErrKindTimeout                 ErrorKind = "timeout"
	ErrKindUpstreamUnavailable     ErrorKind = "upstream_unavailable"
)

// PipelineResult is the only value that leaves the pipeline. Its JSON form
// is {answer, citations, confidence, approval_status,
// processing_time_seconds, categories}; the remaining fields are for Go
// callers and are not serialized.
type PipelineResult struct {
	Answer         string
	Citations      []string
	Confidence     float64
	ApprovalStatus ApprovalStatus
	ProcessingTime time.Duration
	Categories     []string

	QueryID string

	// ErrorKind is the most significant failure, if any. Recovered failures
	// (classification fallback, partial retrieval) are listed in Degraded.
	ErrorKind ErrorKind
	Degraded  []ErrorKind

	Classification ClassificationResult
	Verdict        *ReviewVerdict
	CorpusErrors   []string
}

// ResultWire is the external JSON form of a PipelineResult, shared by the
// CLI's JSON output and the MCP answer tool.
type ResultWire struct {
	Answer                string         `json:"answer"`
	Citations             []string       `json:"citations"`
	Confidence            float64        `json:"confidence"`
	ApprovalStatus        ApprovalStatus `json:"approval_status"`
	ProcessingTimeSeconds float64        `json:"processing_time_seconds"`
	Categories            []string       `json:"categories"`
}

// Wire returns the external form of r. Nil slices encode as empty arrays.
func (r PipelineResult) Wire() ResultWire {
	w := ResultWire{
		Answer:                r.Answer,
		Citations:             r.Citations,
		Confidence:            r.Confidence,
		ApprovalStatus:        r.ApprovalStatus,
		ProcessingTimeSeconds: r.ProcessingTime.Seconds(),
		Categories:            r.Categories,
	}
	if w.Citations == nil {
		w.Citations = []string{}
	}
	if w.Categories == nil {
		w.Categories = []string{}
	}
	return w
}

// MarshalJSON encodes the external wire form.
func (r PipelineResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Wire())
}

// UnmarshalJSON decodes the external wire form.
func (r *PipelineResult) UnmarshalJSON(data []byte) error {
	var w ResultWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Answer = w.Answer
	r.Citations = w.Citations
	r.Confidence = w.Confidence
	r.ApprovalStatus = w.ApprovalStatus
	r.ProcessingTime = time.Duration(w.ProcessingTimeSeconds * float64(time.Second))
	r.Categories = w.Categories
	return nil
}
