// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// DetectCategories returns the categories whose keywords appear in text,
// ordered by where they are first mentioned.
func DetectCategories(text string) []types.Category {
	lower := strings.ToLower(text)

	type hit struct {
		cat types.Category
		pos int
	}
	var hits []hit
	for _, c := range types.AllCategories() {
		if c == types.CategoryGeneral {
			continue
		}
		if pos := c.FirstMention(lower); pos >= 0 {
			hits = append(hits, hit{c, pos})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	cats := make([]types.Category, len(hits))
	for i, h := range hits {
		cats[i] = h.cat
	}
	return cats
}

// intentOrder fixes the tie-break when several intents score equally.
var intentOrder = []types.Intent{
	types.IntentCalculation,
	types.IntentRateLookup,
	types.IntentExemption,
	types.IntentEligibility,
	types.IntentDeadline,
	types.IntentPenalty,
	types.IntentProcess,
	types.IntentDefinition,
	types.IntentCompliance,
}

var intentKeywords = map[types.Intent][]string{
	types.IntentCalculation: {"calculate", "calculation", "how much", "compute", "total", "owe", "cost", "payable"},
	types.IntentRateLookup:  {"rate", "rates", "percentage", "threshold", "thresholds"},
	types.IntentExemption:   {"exempt", "exemption", "exemptions", "concession", "relief"},
	types.IntentEligibility: {"eligible", "eligibility", "qualify", "entitled"},
	types.IntentDeadline:    {"deadline", "due date", "when is", "when must", "due"},
	types.IntentPenalty:     {"penalty", "penalties", "interest charge", "late payment"},
	types.IntentProcess:     {"how do i", "how to", "apply", "register", "lodge", "process"},
	types.IntentDefinition:  {"what is a", "define", "definition", "meaning", "what does"},
	types.IntentCompliance:  {"comply", "compliance", "obligation", "obligations", "requirements"},
}

// DetectIntent scores each intent by keyword hits and returns the best,
// or IntentGeneral when nothing matched.
func DetectIntent(text string) types.Intent {
	lower := strings.ToLower(text)
	best, bestScore := types.IntentGeneral, 0
	for _, intent := range intentOrder {
		score := 0
		for _, kw := range intentKeywords[intent] {
			if types.PhraseIndex(lower, kw) >= 0 {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = intent, score
		}
	}
	return best
}

var entityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$\s?[\d,]+(?:\.\d+)?(?:\s?(?:million|billion|thousand|m|k|b)\b)?`),
	regexp.MustCompile(`\d+(?:\.\d+)?\s?%`),
	regexp.MustCompile(`\b(?:19|20)\d{2}(?:[-/]\d{2,4})?\b`),
	regexp.MustCompile(`(?i)\b\d[\d,]*\s+(?:employees|staff|parking spaces|spaces|properties|vehicles|machines)\b`),
}

// ExtractEntities returns amounts, percentages, years and counts found in
// text, in pattern order and without duplicates.
func ExtractEntities(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, re := range entityPatterns {
		for _, m := range re.FindAllString(text, -1) {
			m = strings.TrimSpace(m)
			if m == "" || seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// KeywordClassification classifies text with keywords only. It is the
// deterministic fallback when the model is unavailable.
func KeywordClassification(text string) types.ClassificationResult {
	return types.NewClassification(DetectCategories(text), DetectIntent(text), types.DefaultConfidence, ExtractEntities(text)...)
}
