// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline coordinates one question through classification,
// retrieval, generation and review, and assembles the PipelineResult.
//
// Every collaborator is injected through New. Each stage runs under its
// own timeout inside the overall query deadline. Stage failures degrade
// the result instead of aborting it wherever a usable answer remains:
// a failed classifier falls back to keyword detection, failed corpora
// shrink the context, and a failed review flags the answer. Only a failed
// generation or the overall deadline produce an error status.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pdiddy/revenue-assistant/internal/corpus"
	"github.com/pdiddy/revenue-assistant/internal/llm"
	"github.com/pdiddy/revenue-assistant/internal/logging"
	"github.com/pdiddy/revenue-assistant/internal/retrieve"
	"github.com/pdiddy/revenue-assistant/internal/review"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// Messages returned when no draft exists.
const (
	MessageEmptyQuestion = "Please enter a question about NSW taxes, duties, levies, grants or royalties."
	MessageUnavailable   = "We could not generate an answer right now. Please try again shortly or contact Revenue NSW."
	MessageTimeout       = "We could not finish answering your question in time. Please try again or simplify the question."
)

// Classifier labels a question with categories and intent. On error it
// may still return a usable fallback classification.
type Classifier interface {
	Classify(ctx context.Context, question string) (types.ClassificationResult, error)
}

// Retriever builds the ContextSet. It never fails.
type Retriever interface {
	Retrieve(ctx context.Context, cls types.ClassificationResult, query string, limit int) retrieve.Output
}

// Responder drafts an answer from the context.
type Responder interface {
	Generate(ctx context.Context, cs types.ContextSet, cls types.ClassificationResult, question string) (types.DraftAnswer, error)
}

// Reviewer judges a draft.
type Reviewer interface {
	Review(ctx context.Context, req review.Request) (types.ReviewVerdict, error)
}

// Recorder persists finished results.
type Recorder interface {
	Record(ctx context.Context, q types.Query, res types.PipelineResult) error
}

// Deps are the collaborators of a Coordinator. Reviewer and Recorder are
// optional. Corpora and Backend are only used by Health.
type Deps struct {
	Classifier Classifier
	Retriever  Retriever
	Responder  Responder
	Reviewer   Reviewer
	Recorder   Recorder

	Corpora []corpus.Corpus
	Backend llm.Backend
}

// Coordinator runs the pipeline. It holds no per-query state and is safe
// for concurrent use.
type Coordinator struct {
	deps Deps
	cfg  types.PipelineConfig
	log  *slog.Logger

	now          func() time.Time
	onTransition func(queryID string, from, to State)
}

// New returns a Coordinator with cfg as the default per-query
// configuration.
func New(deps Deps, cfg types.PipelineConfig, log *slog.Logger) *Coordinator {
	cfg.ApplyDefaults()
	if log == nil {
		log = logging.New("pipeline")
	}
	return &Coordinator{deps: deps, cfg: cfg, log: log, now: time.Now}
}

// Options adjust a single Answer call.
type Options struct {
	EnableReview   bool
	CategoryFilter types.Category
}

// DefaultOptions returns the options implied by the configuration.
func (c *Coordinator) DefaultOptions() Options {
	return Options{EnableReview: c.cfg.EnableReview, CategoryFilter: c.cfg.CategoryFilter}
}

// Config returns the default per-query configuration.
func (c *Coordinator) Config() types.PipelineConfig { return c.cfg }

// Answer creates a Query for question and processes it with opts applied
// over the configured defaults.
func (c *Coordinator) Answer(ctx context.Context, question string, opts Options) types.PipelineResult {
	cfg := c.cfg
	cfg.EnableReview = opts.EnableReview
	cfg.CategoryFilter = opts.CategoryFilter
	return c.Process(ctx, types.NewQuery(question, ""), cfg)
}

// execution carries one query through the stages.
type execution struct {
	q        types.Query
	cfg      types.PipelineConfig
	start    time.Time
	deadline time.Time
	m        *machine
	log      *slog.Logger

	cls      types.ClassificationResult
	out      retrieve.Output
	draft    *types.DraftAnswer
	verdict  *types.ReviewVerdict
	degraded []types.ErrorKind
}

// to advances the state machine. An illegal transition is a programming
// error and is logged rather than returned.
func (ex *execution) to(s State) {
	if err := ex.m.advance(s); err != nil {
		ex.log.Error("illegal pipeline transition", "error", err)
	}
}

// Process runs q through the pipeline under cfg and always returns a
// result. Callers branch on ApprovalStatus.
func (c *Coordinator) Process(ctx context.Context, q types.Query, cfg types.PipelineConfig) types.PipelineResult {
	cfg.ApplyDefaults()
	start := c.now()
	ctx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	log := c.log.With("query_id", q.ID)
	ex := &execution{
		q: q, cfg: cfg, start: start, deadline: deadline, log: log,
		m: newMachine(func(from, to State) {
			log.Debug("state transition", "from", from, "to", to)
			if c.onTransition != nil {
				c.onTransition(q.ID, from, to)
			}
		}),
	}

	res := c.run(ctx, ex)
	res.QueryID = q.ID
	res.ProcessingTime = c.now().Sub(start)

	log.Info("query processed",
		"status", res.ApprovalStatus, "confidence", res.Confidence,
		"categories", res.Categories, "citations", len(res.Citations),
		"error_kind", res.ErrorKind, "degraded", res.Degraded,
		"duration", res.ProcessingTime)

	if c.deps.Recorder != nil {
		rctx, rcancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		if err := c.deps.Recorder.Record(rctx, q, res); err != nil {
			log.Warn("recording result failed", "error", err)
		}
		rcancel()
	}
	return res
}

func (c *Coordinator) run(ctx context.Context, ex *execution) types.PipelineResult {
	if ex.q.IsEmpty() {
		ex.cls = types.DefaultClassification()
		return c.fail(ex, types.ErrKindClassification, MessageEmptyQuestion)
	}

	// Classify.
	ex.to(StateClassifying)
	cls, err := c.classify(ctx, ex)
	if err != nil {
		ex.log.Warn("classification degraded", "error", err)
		ex.degraded = append(ex.degraded, types.ErrKindClassification)
	}
	ex.cls = cls
	if ctx.Err() != nil {
		return c.timeout(ex)
	}

	// Retrieve.
	ex.to(StateRetrieving)
	retrievalCls := ex.cls
	if f := ex.cfg.CategoryFilter; f.Valid() && f != types.CategoryGeneral {
		retrievalCls = types.NewClassification([]types.Category{f}, cls.Intent, cls.Confidence, cls.Entities...)
		ex.cls = retrievalCls
	}
	rctx, rcancel := context.WithTimeout(ctx, ex.cfg.RetrieveTimeout)
	ex.out = c.deps.Retriever.Retrieve(rctx, retrievalCls, ex.q.Question, ex.cfg.ContextLimit)
	rcancel()
	if ex.out.PartialFailure() {
		ex.degraded = append(ex.degraded, types.ErrKindRetrievalPartialFailure)
	}
	if ctx.Err() != nil {
		return c.timeout(ex)
	}

	// Generate.
	ex.to(StateGenerating)
	gctx, gcancel := context.WithTimeout(ctx, ex.cfg.GenerateTimeout)
	draft, err := c.deps.Responder.Generate(gctx, ex.out.Context, ex.cls, ex.q.Question)
	gcancel()
	if err != nil {
		if ctx.Err() != nil {
			return c.timeout(ex)
		}
		ex.log.Error("generation failed", "error", err)
		return c.fail(ex, generationKind(err), MessageUnavailable)
	}
	ex.draft = &draft
	if ctx.Err() != nil {
		return c.timeout(ex)
	}

	// Review.
	if c.shouldReview(ex) {
		ex.to(StateReviewing)
		verdict, err := c.review(ctx, ex)
		if ctx.Err() != nil {
			return c.timeout(ex)
		}
		if err != nil {
			ex.log.Warn("review failed, flagging draft", "error", err)
			ex.degraded = append(ex.degraded, types.ErrKindReview)
		} else {
			ex.verdict = &verdict
		}
	}

	return c.assemble(ex)
}

func (c *Coordinator) classify(ctx context.Context, ex *execution) (types.ClassificationResult, error) {
	if c.deps.Classifier == nil {
		return types.DefaultClassification(), errors.New("no classifier configured")
	}
	cctx, cancel := context.WithTimeout(ctx, ex.cfg.ClassifyTimeout)
	defer cancel()
	cls, err := c.deps.Classifier.Classify(cctx, ex.q.Question)
	if err != nil && len(cls.AllCategories) == 0 {
		cls = types.DefaultClassification()
	}
	return cls, err
}

// shouldReview applies the review gate: enabled, a reviewer exists, the
// draft came from the model, and enough of the deadline remains.
func (c *Coordinator) shouldReview(ex *execution) bool {
	switch {
	case !ex.cfg.EnableReview:
		ex.log.Debug("review disabled")
		return false
	case c.deps.Reviewer == nil:
		ex.log.Debug("no reviewer configured")
		return false
	case ex.draft.Insufficient:
		return false
	}
	remaining := ex.deadline.Sub(c.now())
	if float64(remaining) < ex.cfg.ReviewSkipFraction*float64(ex.cfg.QueryTimeout) {
		ex.log.Warn("skipping review near deadline", "remaining", remaining)
		ex.degraded = append(ex.degraded, types.ErrKindTimeout)
		return false
	}
	return true
}

func (c *Coordinator) review(ctx context.Context, ex *execution) (types.ReviewVerdict, error) {
	vctx, cancel := context.WithTimeout(ctx, ex.cfg.ReviewTimeout)
	defer cancel()
	return c.deps.Reviewer.Review(vctx, review.Request{
		Draft:          *ex.draft,
		Context:        ex.out.Context,
		Classification: ex.cls,
		Query:          ex.q.Question,
		Threshold:      ex.cfg.ApprovalThreshold,
	})
}

func (c *Coordinator) assemble(ex *execution) types.PipelineResult {
	ex.to(StateAssembling)
	res := c.base(ex)
	res.Answer = ex.draft.Text
	res.Citations = ex.draft.Citations

	if ex.verdict != nil {
		res.Verdict = ex.verdict
		res.Confidence = ex.verdict.AdjustedConfidence
		res.ApprovalStatus = types.StatusFlagged
		if ex.verdict.Approved {
			res.ApprovalStatus = types.StatusApproved
		}
	} else {
		res.Confidence = ex.draft.SelfConfidence
		res.ApprovalStatus = types.StatusFlagged
	}
	ex.to(StateDone)
	return res
}

// fail ends the execution with an error status.
func (c *Coordinator) fail(ex *execution, kind types.ErrorKind, message string) types.PipelineResult {
	ex.to(StateErrored)
	res := c.base(ex)
	res.ApprovalStatus = types.StatusError
	res.ErrorKind = kind
	res.Answer = message
	return res
}

// timeout ends the execution after the overall deadline, keeping the draft
// text when one exists.
func (c *Coordinator) timeout(ex *execution) types.PipelineResult {
	ex.log.Warn("query deadline exceeded", "state", ex.m.current)
	res := c.fail(ex, types.ErrKindTimeout, MessageTimeout)
	if ex.draft != nil {
		res.Answer = ex.draft.Text
		res.Citations = ex.draft.Citations
		res.Confidence = ex.draft.SelfConfidence
	}
	return res
}

func (c *Coordinator) base(ex *execution) types.PipelineResult {
	return types.PipelineResult{
		Categories:     ex.cls.CategoryNames(),
		Classification: ex.cls,
		Degraded:       ex.degraded,
		CorpusErrors:   ex.out.CorpusErrors,
	}
}

// generationKind maps a Responder error to its ErrorKind.
func generationKind(err error) types.ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return types.ErrKindGenerationTimeout
	case errors.Is(err, llm.ErrUpstreamUnavailable), errors.Is(err, llm.ErrNoBackend):
		return types.ErrKindUpstreamUnavailable
	default:
		return types.ErrKindGeneration
	}
}
