// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package respond generates a grounded draft answer from a ContextSet.
// Every passage is given to the model with a citation tag; citations in
// the reply are matched back to the ContextSet and anything that does not
// resolve is dropped and recorded as an anomaly.
package respond

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/revenue-assistant/internal/llm"
	"github.com/pdiddy/revenue-assistant/internal/logging"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// ErrGeneration is wrapped into every error Generate returns.
var ErrGeneration = errors.New("generation failed")

const (
	// DefaultMaxRetries is the retry budget for the model call.
	DefaultMaxRetries = 1

	// InsufficientConfidence is the self-confidence of the draft returned
	// when there is no context to answer from.
	InsufficientConfidence = 0.1

	// InsufficientText is the answer given when no passages were retrieved.
	InsufficientText = "I could not find enough information in the available legislation and guidance to answer this question reliably. " +
		"Please rephrase the question with more detail, or contact Revenue NSW for help."

	maxAnswerTokens = 1500

	// DefaultTemperature is used until WithTemperature says otherwise.
	DefaultTemperature = 0.1

	// untaggedFraction stands in for the resolved-tag fraction when the
	// answer carries no tags at all.
	untaggedFraction = 0.5
)

// Responder drafts answers with the model.
type Responder struct {
	backend     llm.Backend
	maxRetries  int
	temperature float64
	log         *slog.Logger
}

// New returns a Responder. maxRetries < 0 uses DefaultMaxRetries.
func New(backend llm.Backend, maxRetries int, log *slog.Logger) *Responder {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if log == nil {
		log = logging.New("respond")
	}
	return &Responder{backend: backend, maxRetries: maxRetries, temperature: DefaultTemperature, log: log}
}

// WithTemperature sets the sampling temperature for drafting.
func (r *Responder) WithTemperature(t float64) *Responder {
	r.temperature = t
	return r
}

// Insufficient returns the fixed draft used when the context is empty.
func Insufficient() types.DraftAnswer {
	return types.DraftAnswer{
		Text:           InsufficientText,
		SelfConfidence: InsufficientConfidence,
		Insufficient:   true,
	}
}

// Generate drafts an answer to question grounded in cs. An empty cs
// yields Insufficient without calling the model.
func (r *Responder) Generate(ctx context.Context, cs types.ContextSet, cls types.ClassificationResult, question string) (types.DraftAnswer, error) {
	if cs.IsEmpty() {
		r.log.Info("no context retrieved, returning insufficient-information draft")
		return Insufficient(), nil
	}
	if r.backend == nil {
		return types.DraftAnswer{}, fmt.Errorf("%w: %w", ErrGeneration, llm.ErrNoBackend)
	}

	prompt, err := renderPrompt(cs, cls, question)
	if err != nil {
		return types.DraftAnswer{}, fmt.Errorf("%w: rendering prompt: %w", ErrGeneration, err)
	}

	reply, err := llm.Complete(ctx, r.backend, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   maxAnswerTokens,
		Temperature: r.temperature,
	}, r.maxRetries)
	if err != nil {
		return types.DraftAnswer{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	draft, err := Parse(reply, cs, cls)
	if err != nil {
		return types.DraftAnswer{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	r.log.Debug("drafted answer",
		"citations", len(draft.Citations), "anomalies", len(draft.Anomalies),
		"self_confidence", draft.SelfConfidence)
	return draft, nil
}

// Parse turns a model reply into a DraftAnswer against cs. It fails only
// when the reply has no answer text.
func Parse(reply string, cs types.ContextSet, cls types.ClassificationResult) (types.DraftAnswer, error) {
	sections := parseSections(reply)
	text := sections[sectionAnswer]
	if strings.TrimSpace(text) == "" {
		return types.DraftAnswer{}, errors.New("model reply has no answer text")
	}

	tags := CitationTags(text + "\n" + sections[sectionCitations])
	resolved, unresolved := Resolve(tags, cs)

	draft := types.DraftAnswer{
		Text:         text,
		Citations:    resolved,
		CitationTags: tags,
		Calculations: parseCalculation(sections[sectionCalculations]),
		Assumptions:  listItems(sections[sectionAssumptions]),
	}
	for _, id := range unresolved {
		draft.Anomalies = append(draft.Anomalies, "unresolved citation "+Tag(id))
	}
	if cls.IsMultiCategory && !strings.Contains(strings.ToLower(text), "combined total") {
		draft.Anomalies = append(draft.Anomalies, "multi-category answer has no combined total")
	}

	if conf, ok := parseConfidence(sections[sectionConfidence]); ok {
		draft.SelfConfidence = conf
	} else {
		draft.SelfConfidence = DerivedConfidence(text, cls, len(resolved), len(tags))
	}
	return draft, nil
}

// DerivedConfidence is (fraction of categories addressed) × (fraction of
// citation tags that resolved). With no tags the second factor is 0.5.
func DerivedConfidence(text string, cls types.ClassificationResult, resolved, total int) float64 {
	addressed := AddressedFraction(text, cls.AllCategories)
	tagged := untaggedFraction
	if total > 0 {
		tagged = float64(resolved) / float64(total)
	}
	return addressed * tagged
}

// AddressedFraction returns the share of categories the text mentions
// outside citation tags. An empty list counts as fully addressed.
func AddressedFraction(text string, cats []types.Category) float64 {
	if len(cats) == 0 {
		return 1
	}
	text = StripTags(text)
	n := 0
	for _, c := range cats {
		if c.MentionedIn(text) {
			n++
		}
	}
	return float64(n) / float64(len(cats))
}
