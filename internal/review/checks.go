// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/revenue-assistant/internal/corpus"
	"github.com/pdiddy/revenue-assistant/internal/respond"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

const (
	// neutralCitation is the validity score of an answer with no tags.
	neutralCitation = 0.5

	// neutralOverlap is the overlap score when no sentence is checkable.
	neutralOverlap = 0.7

	// sentenceOverlap is the share of a sentence's content words that must
	// appear in the cited passages for it to count as supported.
	sentenceOverlap = 0.3

	minSentenceLen = 10
)

var sentenceSplit = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n+`)

// citationCheck scores the fraction of the draft's citation tags that
// resolve to cs. Tags come from the draft's citation list and its answer
// text. Every unresolved tag is an issue.
func citationCheck(draft types.DraftAnswer, cs types.ContextSet) (score float64, resolved []string, issues []string) {
	tags := draftTags(draft)
	if len(tags) == 0 {
		return neutralCitation, nil, []string{"answer cites no passages"}
	}
	resolved, unresolved := respond.Resolve(tags, cs)
	for _, id := range unresolved {
		issues = append(issues, fmt.Sprintf("citation %s does not match any retrieved passage", respond.Tag(id)))
	}
	return float64(len(resolved)) / float64(len(tags)), resolved, issues
}

// draftTags merges draft.CitationTags with the tags found in draft.Text,
// keeping first-mention order.
func draftTags(draft types.DraftAnswer) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, id := range append(respond.CitationTags(draft.Text), draft.CitationTags...) {
		if !seen[id] {
			seen[id] = true
			tags = append(tags, id)
		}
	}
	return tags
}

// overlapCheck returns the fraction of checkable sentences whose content
// words overlap the cited passages by at least sentenceOverlap. When no
// citation resolved, the whole context is used as the reference.
func overlapCheck(text string, cited []string, cs types.ContextSet) float64 {
	var reference strings.Builder
	if len(cited) > 0 {
		for _, id := range cited {
			if c, ok := cs.Get(id); ok {
				reference.WriteString(c.Title + " " + c.Text + "\n")
			}
		}
	} else {
		for _, c := range cs.Candidates() {
			reference.WriteString(c.Title + " " + c.Text + "\n")
		}
	}
	refTerms := corpus.TermSet(corpus.Tokenize(reference.String()))

	checkable, supported := 0, 0
	for _, sentence := range Sentences(text) {
		words := corpus.Tokenize(sentence)
		if len(words) == 0 {
			continue
		}
		checkable++
		if float64(corpus.SharedTerms(words, refTerms))/float64(len(words)) >= sentenceOverlap {
			supported++
		}
	}
	if checkable == 0 {
		return neutralOverlap
	}
	return float64(supported) / float64(checkable)
}

// Sentences splits text into sentences longer than ten characters with
// citation tags removed.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentenceSplit.Split(respond.StripTags(text), -1) {
		s = strings.TrimSpace(s)
		if len(s) > minSentenceLen {
			out = append(out, s)
		}
	}
	return out
}

// completenessCheck returns the fraction of categories the text addresses
// and the categories it misses.
func completenessCheck(text string, cats []types.Category) (float64, []types.Category) {
	text = respond.StripTags(text)
	var missing []types.Category
	for _, c := range cats {
		if !c.MentionedIn(text) {
			missing = append(missing, c)
		}
	}
	return respond.AddressedFraction(text, cats), missing
}
