// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"time"

	"github.com/pdiddy/revenue-assistant/internal/corpus"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// CorpusHealth is the availability of one corpus.
type CorpusHealth struct {
	ID    types.CorpusID `json:"id" yaml:"id"`
	OK    bool           `json:"ok" yaml:"ok"`
	Error string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// HealthReport summarises whether the pipeline can answer questions.
type HealthReport struct {
	Backend   string         `json:"backend" yaml:"backend"`
	BackendOK bool           `json:"backend_ok" yaml:"backend_ok"`
	Corpora   []CorpusHealth `json:"corpora" yaml:"corpora"`
	ReviewOn  bool           `json:"review_enabled" yaml:"review_enabled"`
	CheckedAt time.Time      `json:"checked_at" yaml:"checked_at"`
}

// Healthy reports whether a model backend is configured and at least one
// corpus answered.
func (h HealthReport) Healthy() bool {
	if !h.BackendOK {
		return false
	}
	for _, c := range h.Corpora {
		if c.OK {
			return true
		}
	}
	return false
}

// Health pings every corpus that supports it. Corpora without a Ping are
// reported available. The model backend is not called; it is reported
// available when configured.
func (c *Coordinator) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		ReviewOn:  c.cfg.EnableReview && c.deps.Reviewer != nil,
		CheckedAt: c.now().UTC(),
		Backend:   "none",
	}
	if c.deps.Backend != nil {
		report.Backend = c.deps.Backend.Name()
		report.BackendOK = true
	}

	for _, cp := range c.deps.Corpora {
		h := CorpusHealth{ID: cp.ID(), OK: true}
		if p, ok := cp.(corpus.Pinger); ok {
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := p.Ping(pctx); err != nil {
				h.OK = false
				h.Error = err.Error()
			}
			cancel()
		}
		report.Corpora = append(report.Corpora, h)
	}
	return report
}
