// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mcp exposes the answering pipeline and the legislation search as
// MCP tools. Run the server with s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{}).
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pdiddy/revenue-assistant/internal/corpus"
	"github.com/pdiddy/revenue-assistant/internal/logging"
	"github.com/pdiddy/revenue-assistant/internal/pipeline"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

const maxSearchLimit = 20

// Pipeline is the part of the Coordinator the server needs.
type Pipeline interface {
	Answer(ctx context.Context, question string, opts pipeline.Options) types.PipelineResult
	DefaultOptions() pipeline.Options
	Health(ctx context.Context) pipeline.HealthReport
}

// Server wraps the MCP SDK server.
type Server struct {
	MCPServer *sdkmcp.Server

	pipeline Pipeline
	search   corpus.Corpus
	log      *slog.Logger
}

// NewServer registers the tools. search may be nil, in which case the
// search_legislation tool is not offered.
func NewServer(p Pipeline, search corpus.Corpus, version string, log *slog.Logger) *Server {
	if log == nil {
		log = logging.New("mcp")
	}
	s := &Server{
		MCPServer: sdkmcp.NewServer(&sdkmcp.Implementation{Name: "revenue-assistant", Version: version}, nil),
		pipeline:  p,
		search:    search,
		log:       log,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "answer",
		Description: "Answer a question about NSW state taxes, duties, levies, grants or royalties. Returns the answer with cited source IDs, a confidence and an approval status (approved, flagged or error).",
	}, s.handleAnswer)

	if s.search != nil {
		sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
			Name:        "search_legislation",
			Description: "Search the indexed NSW revenue legislation and return matching passages with source IDs.",
		}, s.handleSearch)
	}

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "health",
		Description: "Report whether the model backend and each corpus are available.",
	}, s.handleHealth)
}

// --- Tool input/output types ---

type answerInput struct {
	Question string `json:"question" jsonschema:"the tax question in plain English"`
	Category string `json:"category,omitempty" jsonschema:"restrict retrieval to one category, e.g. payroll_tax"`
	NoReview bool   `json:"no_review,omitempty" jsonschema:"skip the review stage; results are flagged"`
}

type answerOutput = types.ResultWire

type searchInput struct {
	Query    string `json:"query" jsonschema:"free-text search query"`
	Category string `json:"category,omitempty" jsonschema:"restrict results to one category"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum passages to return (default 5, max 20)"`
}

type passage struct {
	SourceID string  `json:"source_id"`
	Title    string  `json:"title,omitempty"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	URL      string  `json:"url,omitempty"`
	Text     string  `json:"text"`
}

type searchOutput struct {
	Passages []passage `json:"passages"`
}

type healthInput struct{}

type corpusStatus struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type healthOutput struct {
	Healthy       bool           `json:"healthy"`
	Backend       string         `json:"backend"`
	BackendOK     bool           `json:"backend_ok"`
	ReviewEnabled bool           `json:"review_enabled"`
	Corpora       []corpusStatus `json:"corpora"`
}

// --- Tool handlers ---

func (s *Server) handleAnswer(ctx context.Context, _ *sdkmcp.CallToolRequest, input answerInput) (*sdkmcp.CallToolResult, answerOutput, error) {
	opts := s.pipeline.DefaultOptions()
	if input.NoReview {
		opts.EnableReview = false
	}
	if input.Category != "" {
		cat, ok := types.ParseCategory(input.Category)
		if !ok {
			return nil, answerOutput{}, fmt.Errorf("unknown category %q", input.Category)
		}
		opts.CategoryFilter = cat
	}

	res := s.pipeline.Answer(ctx, input.Question, opts)
	s.log.Info("answered", slog.String("query_id", res.QueryID), slog.String("status", string(res.ApprovalStatus)))

	return nil, res.Wire(), nil
}

func (s *Server) handleSearch(ctx context.Context, _ *sdkmcp.CallToolRequest, input searchInput) (*sdkmcp.CallToolResult, searchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, searchOutput{}, fmt.Errorf("query is required")
	}
	req := corpus.Request{Query: input.Query, TopK: input.Limit}
	if req.TopK <= 0 {
		req.TopK = 5
	}
	req.TopK = min(req.TopK, maxSearchLimit)
	if input.Category != "" {
		cat, ok := types.ParseCategory(input.Category)
		if !ok {
			return nil, searchOutput{}, fmt.Errorf("unknown category %q", input.Category)
		}
		req.Category = cat
	}

	cands, err := s.search.Search(ctx, req)
	if err != nil {
		return nil, searchOutput{}, fmt.Errorf("searching %s: %w", s.search.ID(), err)
	}
	out := searchOutput{Passages: make([]passage, 0, len(cands))}
	for _, c := range cands {
		out.Passages = append(out.Passages, passage{
			SourceID: c.SourceID,
			Title:    c.Title,
			Category: string(c.Category),
			Score:    c.Score,
			URL:      c.URL,
			Text:     c.Text,
		})
	}
	return nil, out, nil
}

func (s *Server) handleHealth(ctx context.Context, _ *sdkmcp.CallToolRequest, _ healthInput) (*sdkmcp.CallToolResult, healthOutput, error) {
	r := s.pipeline.Health(ctx)
	out := healthOutput{
		Healthy:       r.Healthy(),
		Backend:       r.Backend,
		BackendOK:     r.BackendOK,
		ReviewEnabled: r.ReviewOn,
		Corpora:       make([]corpusStatus, 0, len(r.Corpora)),
	}
	for _, c := range r.Corpora {
		out.Corpora = append(out.Corpora, corpusStatus{ID: string(c.ID), OK: c.OK, Error: c.Error})
	}
	return nil, out, nil
}
