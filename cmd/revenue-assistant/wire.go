// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pdiddy/revenue-assistant/internal/audit"
	"github.com/pdiddy/revenue-assistant/internal/classify"
	"github.com/pdiddy/revenue-assistant/internal/corpus"
	"github.com/pdiddy/revenue-assistant/internal/legislation"
	"github.com/pdiddy/revenue-assistant/internal/llm"
	"github.com/pdiddy/revenue-assistant/internal/logging"
	"github.com/pdiddy/revenue-assistant/internal/pipeline"
	"github.com/pdiddy/revenue-assistant/internal/respond"
	"github.com/pdiddy/revenue-assistant/internal/retrieve"
	"github.com/pdiddy/revenue-assistant/internal/review"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// app holds the wired pipeline and the resources that must be closed.
type app struct {
	cfg     types.Config
	coord   *pipeline.Coordinator
	local   *legislation.Store
	audit   *audit.Log
	corpora []corpus.Corpus
}

// newApp builds every stage from cfg. A missing API key is not fatal: the
// classifier falls back to keywords and generation reports
// upstream_unavailable.
func newApp(cfg types.Config) (*app, error) {
	log := logging.New("cli")
	a := &app{cfg: cfg}

	backend, err := llm.New(cfg.AI)
	switch {
	case errors.Is(err, llm.ErrNoBackend):
		log.Warn("no API key configured; answers are unavailable", slog.String("provider", string(cfg.AI.Provider)))
		backend = nil
	case err != nil:
		return nil, err
	}

	var sources []retrieve.Source
	if cfg.Corpora.Local.Enabled {
		store, err := legislation.Open(cfg.Corpora.Local.DBPath)
		if err != nil {
			return nil, err
		}
		a.local = store
		sources = append(sources, retrieve.Source{Corpus: store, Timeout: cfg.Corpora.Local.Timeout})
	}
	if cfg.Corpora.External.Enabled {
		live := corpus.NewLiveSource(cfg.Corpora.External)
		sources = append(sources, retrieve.Source{Corpus: live, Timeout: cfg.Corpora.External.Timeout})
	}
	if cfg.Corpora.Bulk.Enabled {
		bulk, err := corpus.LoadBulk(cfg.Corpora.Bulk.Path)
		if err != nil {
			a.close()
			return nil, err
		}
		log.Debug("bulk corpus loaded", slog.Int("records", bulk.Len()))
		sources = append(sources, retrieve.Source{Corpus: bulk, Timeout: cfg.Corpora.Bulk.Timeout})
	}
	for _, s := range sources {
		a.corpora = append(a.corpora, s.Corpus)
	}

	deps := pipeline.Deps{
		Classifier: classify.New(backend, cfg.AI.MaxRetries, nil).WithTemperature(cfg.AI.Temperature),
		Retriever:  retrieve.New(sources, cfg.Corpora.TopK, cfg.Corpora.MaxParallel, nil),
		Responder:  respond.New(backend, cfg.AI.MaxRetries, nil).WithTemperature(cfg.AI.Temperature),
		Reviewer: review.New(backend, review.Options{
			MaxRetries:        cfg.AI.MaxRetries,
			MaxCitationIssues: cfg.Pipeline.MaxCitationIssues,
			MinOverlapRatio:   cfg.Pipeline.MinOverlapRatio,
			Temperature:       cfg.AI.Temperature,
		}, nil),
		Corpora: a.corpora,
		Backend: backend,
	}

	if cfg.Audit.Enabled {
		l, err := audit.Open(cfg.Audit.DBPath)
		if err != nil {
			a.close()
			return nil, err
		}
		a.audit = l
		deps.Recorder = l
	}

	a.coord = pipeline.New(deps, cfg.Pipeline, nil)
	return a, nil
}

// close releases the SQLite handles.
func (a *app) close() {
	if a.local != nil {
		a.local.Close()
	}
	if a.audit != nil {
		a.audit.Close()
	}
}

// openLocal opens the legislation index for the corpus commands.
func openLocal(cfg types.Config) (*legislation.Store, error) {
	if cfg.Corpora.Local.DBPath == "" {
		return nil, fmt.Errorf("corpora.local.db_path is not set")
	}
	return legislation.Open(cfg.Corpora.Local.DBPath)
}
