// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "encoding/json"

// CorpusID names a backing corpus. The declaration order of the constants
// is the tie-break order used when merged scores are equal.
type CorpusID string

const (
	CorpusLocal    CorpusID = "local"
	CorpusExternal CorpusID = "external"
	CorpusBulk     CorpusID = "bulk"
)

// Candidate is one retrieved passage. Score is in [0,1] and only
// comparable within the retrieval call that produced it until the
// orchestrator normalizes it.
type Candidate struct {
	// SourceID uniquely identifies the passage across corpora
	// (e.g. "payroll-tax-act-2007/s11").
	SourceID string `json:"source_id" yaml:"source_id"`

	// Category is the taxation domain the passage belongs to.
	Category Category `json:"category" yaml:"category"`

	// Title is a short citation label such as "Payroll Tax Act 2007 s 11".
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Text is the passage span handed to the model.
	Text string `json:"text" yaml:"text"`

	// URL links to the authoritative source when known.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Score is the relevance score in [0,1].
	Score float64 `json:"score" yaml:"score"`

	// Corpus records which backing corpus returned the passage.
	Corpus CorpusID `json:"corpus" yaml:"corpus"`
}

// ContextSet is the ranked, deduplicated passage set handed to generation.
// The zero value is an empty set. Candidates are kept in rank order and no
// two share a SourceID.
type ContextSet struct {
	candidates []Candidate
	index      map[string]int
}

// NewContextSet builds a ContextSet from candidates already in rank order.
// Later duplicates of a SourceID are dropped and the result is capped at
// limit entries when limit > 0.
func NewContextSet(ranked []Candidate, limit int) ContextSet {
	cs := ContextSet{index: make(map[string]int, len(ranked))}
	for _, c := range ranked {
		if limit > 0 && len(cs.candidates) >= limit {
			break
		}
		if c.SourceID == "" {
			continue
		}
		if _, dup := cs.index[c.SourceID]; dup {
			continue
		}
		cs.index[c.SourceID] = len(cs.candidates)
		cs.candidates = append(cs.candidates, c)
	}
	return cs
}

// Len returns the number of candidates.
func (cs ContextSet) Len() int { return len(cs.candidates) }

// IsEmpty reports whether the set holds no candidates.
func (cs ContextSet) IsEmpty() bool { return len(cs.candidates) == 0 }

// Candidates returns a copy of the candidates in rank order.
func (cs ContextSet) Candidates() []Candidate {
	out := make([]Candidate, len(cs.candidates))
	copy(out, cs.candidates)
	return out
}

// Get returns the candidate with the given source ID.
func (cs ContextSet) Get(sourceID string) (Candidate, bool) {
	i, ok := cs.index[sourceID]
	if !ok {
		return Candidate{}, false
	}
	return cs.candidates[i], true
}

// Contains reports whether sourceID is in the set.
func (cs ContextSet) Contains(sourceID string) bool {
	_, ok := cs.index[sourceID]
	return ok
}

// SourceIDs returns the source IDs in rank order.
func (cs ContextSet) SourceIDs() []string {
	ids := make([]string, len(cs.candidates))
	for i, c := range cs.candidates {
		ids[i] = c.SourceID
	}
	return ids
}

// MarshalJSON encodes the set as its ordered candidate list.
func (cs ContextSet) MarshalJSON() ([]byte, error) {
	if cs.candidates == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(cs.candidates)
}
