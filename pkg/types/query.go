// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"

	"github.com/google/uuid"
)

// Query is one incoming question. It is created per request and discarded
// once the pipeline returns.
type Query struct {
	// ID identifies this query in logs and the audit trail.
	ID string `json:"id" yaml:"id"`

	// Question is the raw natural-language question.
	Question string `json:"question" yaml:"question"`

	// SessionID optionally groups queries from the same caller.
	SessionID string `json:"session_id,omitempty" yaml:"session_id,omitempty"`
}

// NewQuery returns a Query with a fresh ID and the question trimmed.
func NewQuery(question, sessionID string) Query {
	return Query{
		ID:        uuid.NewString(),
		Question:  strings.TrimSpace(question),
		SessionID: sessionID,
	}
}

// IsEmpty reports whether the query has no question text.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Question) == ""
}

// ClassificationResult is the Classifier's verdict for one question.
// Build it with NewClassification so the category invariants hold:
// AllCategories is non-empty, unique, in detection order, and starts with
// PrimaryCategory; IsMultiCategory is true iff it has more than one entry.
type ClassificationResult struct {
	PrimaryCategory Category   `json:"primary_category" yaml:"primary_category"`
	AllCategories   []Category `json:"all_categories" yaml:"all_categories"`
	Intent          Intent     `json:"intent" yaml:"intent"`
	Confidence      float64    `json:"confidence" yaml:"confidence"`
	IsMultiCategory bool       `json:"is_multi_category" yaml:"is_multi_category"`

	// Entities holds amounts, rates and years spotted in the question
	// (e.g. "$1.2 million", "5.45%").
	Entities []string `json:"entities,omitempty" yaml:"entities,omitempty"`
}

// DefaultConfidence is used when the classification falls back to general.
const DefaultConfidence = 0.5

// NewClassification builds a ClassificationResult from categories in
// detection order. Invalid and duplicate categories are dropped. General is
// dropped when a specific category is present. An empty list yields a
// single general category.
func NewClassification(cats []Category, intent Intent, confidence float64, entities ...string) ClassificationResult {
	seen := make(map[Category]bool, len(cats))
	var ordered []Category
	hasSpecific := false
	for _, c := range cats {
		if !c.Valid() || seen[c] {
			continue
		}
		seen[c] = true
		ordered = append(ordered, c)
		if c != CategoryGeneral {
			hasSpecific = true
		}
	}
	if hasSpecific {
		filtered := ordered[:0]
		for _, c := range ordered {
			if c != CategoryGeneral {
				filtered = append(filtered, c)
			}
		}
		ordered = filtered
	}
	if len(ordered) == 0 {
		ordered = []Category{CategoryGeneral}
	}
	if !intents[intent] {
		intent = IntentGeneral
	}

	return ClassificationResult{
		PrimaryCategory: ordered[0],
		AllCategories:   ordered,
		Intent:          intent,
		Confidence:      clamp01(confidence),
		IsMultiCategory: len(ordered) > 1,
		Entities:        entities,
	}
}

// DefaultClassification is the general fallback used when the Classifier
// cannot produce anything better.
func DefaultClassification() ClassificationResult {
	return NewClassification(nil, IntentGeneral, DefaultConfidence)
}

// Has reports whether c is among the detected categories.
func (r ClassificationResult) Has(c Category) bool {
	for _, x := range r.AllCategories {
		if x == c {
			return true
		}
	}
	return false
}

// CategoryNames returns AllCategories as strings.
func (r ClassificationResult) CategoryNames() []string {
	names := make([]string, len(r.AllCategories))
	for i, c := range r.AllCategories {
		names[i] = string(c)
	}
	return names
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
