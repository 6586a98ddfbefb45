// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package review scores a draft answer and decides whether it can be
// released. Four weighted checks feed the adjusted confidence: citation
// validity, factual overlap with the cited passages, an independent model
// critique and category completeness.
//
// Quality problems are reported in the verdict. Review returns an error
// only when the critique model cannot be reached.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pdiddy/revenue-assistant/internal/llm"
	"github.com/pdiddy/revenue-assistant/internal/logging"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// ErrReview is wrapped into every error Review returns.
var ErrReview = errors.New("review failed")

// Check weights. They sum to 1.
const (
	WeightCitation     = 0.3
	WeightOverlap      = 0.25
	WeightCritique     = 0.25
	WeightCompleteness = 0.2
)

const (
	// DefaultMaxRetries is the retry budget for the critique call.
	DefaultMaxRetries = 1

	// maxEnhancements caps the reviewer's suggestions.
	maxEnhancements = 3

	// neutralCritique is used when the reviewer gives no usable score.
	neutralCritique = 0.7
)

// Options tunes the approval rule.
type Options struct {
	MaxRetries        int
	MaxCitationIssues int
	MinOverlapRatio   float64

	// Temperature is sent with the critique call.
	Temperature float64
}

// DefaultOptions mirrors types.DefaultPipelineConfig.
func DefaultOptions() Options {
	return Options{MaxRetries: DefaultMaxRetries, MaxCitationIssues: 2, MinOverlapRatio: 0.5}
}

// Request is everything the reviewer looks at.
type Request struct {
	Draft          types.DraftAnswer
	Context        types.ContextSet
	Classification types.ClassificationResult
	Query          string

	// Threshold is the minimum adjusted confidence for approval.
	Threshold float64
}

// Reviewer validates drafts.
type Reviewer struct {
	backend llm.Backend
	opts    Options
	log     *slog.Logger
}

// New returns a Reviewer. Negative retries and citation limits and a
// non-positive overlap ratio take their defaults; zero citation issues is
// a valid limit.
func New(backend llm.Backend, opts Options, log *slog.Logger) *Reviewer {
	def := DefaultOptions()
	if opts.MaxRetries < 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.MaxCitationIssues < 0 {
		opts.MaxCitationIssues = def.MaxCitationIssues
	}
	if opts.MinOverlapRatio <= 0 {
		opts.MinOverlapRatio = def.MinOverlapRatio
	}
	if log == nil {
		log = logging.New("review")
	}
	return &Reviewer{backend: backend, opts: opts, log: log}
}

type critiqueReply struct {
	Score        json.RawMessage `json:"score"`
	FactCheck    string          `json:"fact_check"`
	Decision     string          `json:"decision"`
	Issues       []string        `json:"issues"`
	Enhancements []string        `json:"enhancements"`
}

// Review scores req.Draft and returns the verdict.
func (r *Reviewer) Review(ctx context.Context, req Request) (types.ReviewVerdict, error) {
	crit, err := r.critique(ctx, req)
	if err != nil {
		return types.ReviewVerdict{}, fmt.Errorf("%w: %w", ErrReview, err)
	}
	return r.Verdict(req, crit), nil
}

// Critique is the model's independent assessment.
type Critique struct {
	Score        float64
	Enhancements []string
}

func (r *Reviewer) critique(ctx context.Context, req Request) (Critique, error) {
	if r.backend == nil {
		return Critique{}, llm.ErrNoBackend
	}
	prompt, err := renderPrompt(req)
	if err != nil {
		return Critique{}, fmt.Errorf("rendering prompt: %w", err)
	}
	var reply critiqueReply
	if err := llm.CompleteJSON(ctx, r.backend, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   600,
		Temperature: r.opts.Temperature,
	}, r.opts.MaxRetries, &reply); err != nil {
		return Critique{}, err
	}
	return critiqueFromReply(reply), nil
}

func critiqueFromReply(reply critiqueReply) Critique {
	score, ok := parseScore(reply.Score)
	if !ok {
		switch strings.ToLower(strings.TrimSpace(reply.FactCheck)) {
		case "pass":
			score = 0.9
		case "partial":
			score = 0.6
		case "fail":
			score = 0.2
		default:
			score = neutralCritique
		}
	}
	if strings.EqualFold(strings.TrimSpace(reply.Decision), "reject") {
		score /= 2
	}

	var notes []string
	for _, e := range reply.Enhancements {
		if e = strings.TrimSpace(e); e != "" {
			notes = append(notes, e)
		}
		if len(notes) == maxEnhancements {
			break
		}
	}
	return Critique{Score: score, Enhancements: notes}
}

func parseScore(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, false
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return 0, false
		}
	}
	if f > 1 && f <= 10 {
		f /= 10
	}
	if f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}

// Verdict combines the deterministic checks with crit. It never fails.
func (r *Reviewer) Verdict(req Request, crit Critique) types.ReviewVerdict {
	text := req.Draft.Text

	citation, resolved, citationIssues := citationCheck(req.Draft, req.Context)
	overlap := overlapCheck(text, resolved, req.Context)
	completeness, missing := completenessCheck(text, req.Classification.AllCategories)

	v := types.ReviewVerdict{
		CitationIssues:   citationIssues,
		EnhancementNotes: crit.Enhancements,
		Scores: types.ReviewScores{
			CitationValidity:     citation,
			FactualOverlap:       overlap,
			Critique:             crit.Score,
			CategoryCompleteness: completeness,
		},
	}
	if overlap < r.opts.MinOverlapRatio {
		v.CompletenessIssues = append(v.CompletenessIssues,
			fmt.Sprintf("only %.0f%% of answer sentences are supported by the cited passages", overlap*100))
	}
	if req.Classification.IsMultiCategory {
		for _, c := range missing {
			v.MissingCategories = append(v.MissingCategories, c)
			v.CompletenessIssues = append(v.CompletenessIssues, "answer does not address "+c.Label())
		}
	}

	v.AdjustedConfidence = WeightCitation*citation +
		WeightOverlap*overlap +
		WeightCritique*crit.Score +
		WeightCompleteness*completeness
	v.AdjustedConfidence = min(max(v.AdjustedConfidence, 0), 1)

	v.Approved = v.AdjustedConfidence >= req.Threshold &&
		len(v.CitationIssues) <= r.opts.MaxCitationIssues &&
		len(v.MissingCategories) == 0

	r.log.Debug("reviewed draft",
		"approved", v.Approved, "adjusted_confidence", v.AdjustedConfidence,
		"citation", citation, "overlap", overlap, "critique", crit.Score,
		"completeness", completeness, "citation_issues", len(v.CitationIssues))
	return v
}
