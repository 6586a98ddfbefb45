// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve fans a classified query out to every configured corpus
// for every classified category, normalizes and merges the results, and
// returns a ranked, deduplicated ContextSet. Corpus failures are partial
// failures: they are logged and reported, never returned as errors.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/revenue-assistant/internal/corpus"
	"github.com/pdiddy/revenue-assistant/internal/logging"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// DefaultLimit is the ContextSet size used when the caller passes 0.
const DefaultLimit = 6

// Source is a corpus with its per-call timeout. The order of sources
// passed to New is the tie-break order for equal merged scores.
type Source struct {
	Corpus  corpus.Corpus
	Timeout time.Duration
}

// Orchestrator queries corpora concurrently.
type Orchestrator struct {
	sources     []Source
	topK        int
	maxParallel int
	log         *slog.Logger
}

// New creates an Orchestrator. topK bounds each corpus call and
// maxParallel bounds concurrent calls; zero values use 8 and 6.
func New(sources []Source, topK, maxParallel int, log *slog.Logger) *Orchestrator {
	if topK <= 0 {
		topK = 8
	}
	if maxParallel <= 0 {
		maxParallel = 6
	}
	if log == nil {
		log = logging.New("retrieve")
	}
	return &Orchestrator{sources: sources, topK: topK, maxParallel: maxParallel, log: log}
}

// Output is the result of one retrieval.
type Output struct {
	Context types.ContextSet

	// CorpusErrors describes each failed corpus call as
	// "<corpus>/<category>: <error>".
	CorpusErrors []string

	// Calls is the number of corpus calls made.
	Calls int
}

// PartialFailure reports whether any corpus call failed.
func (o Output) PartialFailure() bool { return len(o.CorpusErrors) > 0 }

type call struct {
	src      int
	category types.Category
}

type callResult struct {
	candidates []types.Candidate
	err        error
}

// Retrieve searches every source for every category in cls and returns at
// most limit merged candidates. It never fails: with every corpus down the
// context is empty and CorpusErrors lists each failure.
func (o *Orchestrator) Retrieve(ctx context.Context, cls types.ClassificationResult, query string, limit int) Output {
	if limit <= 0 {
		limit = DefaultLimit
	}
	categories := cls.AllCategories
	if len(categories) == 0 {
		categories = []types.Category{types.CategoryGeneral}
	}

	var calls []call
	for _, cat := range categories {
		for i := range o.sources {
			calls = append(calls, call{src: i, category: cat})
		}
	}
	results := make([]callResult, len(calls))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxParallel)
	for i, c := range calls {
		g.Go(func() error {
			results[i] = o.search(gCtx, c, query)
			return nil
		})
	}
	_ = g.Wait()

	out := Output{Calls: len(calls)}
	var batches [][]types.Candidate
	var batchSrc []int
	for i, r := range results {
		c := calls[i]
		id := o.sources[c.src].Corpus.ID()
		if r.err != nil {
			o.log.Warn("corpus search failed", "corpus", id, "category", c.category, "error", r.err)
			out.CorpusErrors = append(out.CorpusErrors, fmt.Sprintf("%s/%s: %v", id, c.category, r.err))
			continue
		}
		batches = append(batches, Normalize(r.candidates))
		batchSrc = append(batchSrc, c.src)
	}

	out.Context = types.NewContextSet(Merge(batches, batchSrc), limit)
	o.log.Debug("retrieval complete",
		"calls", len(calls), "failed", len(out.CorpusErrors), "context", out.Context.Len())
	return out
}

func (o *Orchestrator) search(ctx context.Context, c call, query string) callResult {
	src := o.sources[c.src]
	if src.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, src.Timeout)
		defer cancel()
	}
	cands, err := src.Corpus.Search(ctx, corpus.Request{Query: query, Category: c.category, TopK: o.topK})
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return callResult{candidates: cands, err: err}
}

// Normalize min-max scales scores within one call into [0,1]. When every
// score is equal the raw scores are kept, clamped to [0,1].
func Normalize(cands []types.Candidate) []types.Candidate {
	out := make([]types.Candidate, len(cands))
	copy(out, cands)
	if len(out) == 0 {
		return out
	}
	lo, hi := out[0].Score, out[0].Score
	for _, c := range out[1:] {
		lo = min(lo, c.Score)
		hi = max(hi, c.Score)
	}
	for i := range out {
		if hi > lo {
			out[i].Score = (out[i].Score - lo) / (hi - lo)
		} else {
			out[i].Score = min(max(out[i].Score, 0), 1)
		}
	}
	return out
}

// Merge combines normalized batches. Candidates sharing a SourceID keep
// the highest score; on equal scores the batch from the earlier source
// wins. The result is sorted by descending score, then source order, then
// SourceID. src[i] is the source position of batches[i].
func Merge(batches [][]types.Candidate, src []int) []types.Candidate {
	type entry struct {
		cand types.Candidate
		src  int
	}
	best := make(map[string]entry)
	for b, batch := range batches {
		for _, c := range batch {
			if c.SourceID == "" {
				continue
			}
			e, ok := best[c.SourceID]
			if !ok || c.Score > e.cand.Score || (c.Score == e.cand.Score && src[b] < e.src) {
				best[c.SourceID] = entry{cand: c, src: src[b]}
			}
		}
	}

	entries := make([]entry, 0, len(best))
	for _, e := range best {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.cand.Score != b.cand.Score {
			return a.cand.Score > b.cand.Score
		}
		if a.src != b.src {
			return a.src < b.src
		}
		return a.cand.SourceID < b.cand.SourceID
	})

	out := make([]types.Candidate, len(entries))
	for i, e := range entries {
		out[i] = e.cand
	}
	return out
}
