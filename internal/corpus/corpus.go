// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package corpus defines the search contract every backing corpus meets
// and provides the external live-source client and the in-memory bulk
// reference corpus. The SQLite legislation index lives in
// internal/legislation and satisfies the same interface.
package corpus

import (
	"context"

	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// Request is one similarity query against one corpus.
type Request struct {
	// Query is the free-text query.
	Query string

	// Category filters results when set to anything other than general.
	Category types.Category

	// TopK is the maximum number of candidates to return.
	TopK int
}

// Filtered reports whether the request restricts results to a category.
func (r Request) Filtered() bool {
	return r.Category != "" && r.Category != types.CategoryGeneral
}

// Corpus searches a single collection of passages. Each implementation
// fails independently; callers treat errors as partial failures.
type Corpus interface {
	ID() types.CorpusID
	Search(ctx context.Context, req Request) ([]types.Candidate, error)
}

// Pinger is implemented by corpora that can report their availability.
type Pinger interface {
	Ping(ctx context.Context) error
}
