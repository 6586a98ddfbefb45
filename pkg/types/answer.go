// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Calculation is the step-by-step working the model showed for a
// calculation question.
type Calculation struct {
	Steps  []string `json:"steps" yaml:"steps"`
	Result string   `json:"result,omitempty" yaml:"result,omitempty"`
}

// DraftAnswer is the Primary Responder's output for one ContextSet. It is
// never mutated by later stages.
type DraftAnswer struct {
	// Text is the answer body shown to the user.
	Text string `json:"text" yaml:"text"`

	// Citations are source IDs, in first-mention order, that resolved to
	// candidates in the ContextSet.
	Citations []string `json:"citations" yaml:"citations"`

	// CitationTags are every source ID the model tagged in its answer or
	// citation list, resolved or not, in first-mention order.
	CitationTags []string `json:"citation_tags,omitempty" yaml:"citation_tags,omitempty"`

	// SelfConfidence is the responder's own confidence in [0,1].
	SelfConfidence float64 `json:"self_confidence" yaml:"self_confidence"`

	// Calculations is set when the model showed its working.
	Calculations *Calculation `json:"calculations,omitempty" yaml:"calculations,omitempty"`

	// Assumptions lists assumptions the model stated.
	Assumptions []string `json:"assumptions,omitempty" yaml:"assumptions,omitempty"`

	// Anomalies records soft problems such as citation tags that did not
	// resolve to any candidate.
	Anomalies []string `json:"anomalies,omitempty" yaml:"anomalies,omitempty"`

	// Insufficient is true when the context was empty and no model call
	// was made.
	Insufficient bool `json:"insufficient,omitempty" yaml:"insufficient,omitempty"`
}

// ReviewScores holds the four weighted review components, each in [0,1].
type ReviewScores struct {
	CitationValidity     float64 `json:"citation_validity" yaml:"citation_validity"`
	FactualOverlap       float64 `json:"factual_overlap" yaml:"factual_overlap"`
	Critique             float64 `json:"critique" yaml:"critique"`
	CategoryCompleteness float64 `json:"category_completeness" yaml:"category_completeness"`
}

// ReviewVerdict is the Reviewer's judgement of a DraftAnswer.
type ReviewVerdict struct {
	Approved           bool     `json:"approved" yaml:"approved"`
	AdjustedConfidence float64  `json:"adjusted_confidence" yaml:"adjusted_confidence"`
	CitationIssues     []string `json:"citation_issues" yaml:"citation_issues"`
	CompletenessIssues []string `json:"completeness_issues" yaml:"completeness_issues"`
	EnhancementNotes   []string `json:"enhancement_notes" yaml:"enhancement_notes"`

	// MissingCategories names categories the draft did not address.
	MissingCategories []Category `json:"missing_categories,omitempty" yaml:"missing_categories,omitempty"`

	Scores ReviewScores `json:"scores" yaml:"scores"`
}
