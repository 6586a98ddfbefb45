// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify determines which tax categories a question is about,
// what the asker wants to know, and how sure the model is.
//
// The model's answer is authoritative. Keyword detection backs it up in
// two places: it widens a multi-category answer with categories the model
// missed, and it replaces the model entirely when the call fails.
package classify

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

// ErrClassification is wrapped into every error Classify returns.
var ErrClassification = errors.New("classification failed")

// DefaultMaxRetries is the retry budget for the model call.
const DefaultMaxRetries = 1

// Classifier calls the model to classify questions.
type Classifier struct {
	backend     llm.Backend
	maxRetries  int
	temperature float64
	log         *slog.Logger
}

// New returns a Classifier. A nil logger uses the "classify" component
// logger. maxRetries < 0 uses DefaultMaxRetries.
func New(backend llm.Backend, maxRetries int, log *slog.Logger) *Classifier {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if log == nil {
		log = logging.New("classify")
	}
	return &Classifier{backend: backend, maxRetries: maxRetries, log: log}
}

// WithTemperature sets the sampling temperature for the model call.
func (c *Classifier) WithTemperature(t float64) *Classifier {
	c.temperature = t
	return c
}

// modelReply is the JSON shape requested from the model.
type modelReply struct {
	Categories      []string        `json:"categories"`
	Intent          string          `json:"intent"`
	IsMultiCategory bool            `json:"is_multi_category"`
	Confidence      json.RawMessage `json:"confidence"`
	Amounts         []string        `json:"amounts"`
}

// Classify returns the classification for question. On failure it returns
// the keyword-only classification together with an error wrapping
// ErrClassification, so callers may use either.
func (c *Classifier) Classify(ctx context.Context, question string) (types.ClassificationResult, error) {
	fallback := KeywordClassification(question)
	if c.backend == nil {
		return fallback, fmt.Errorf("%w: %w", ErrClassification, llm.ErrNoBackend)
	}

	prompt, err := renderPrompt(question)
	if err != nil {
		return fallback, fmt.Errorf("%w: rendering prompt: %w", ErrClassification, err)
	}

	var reply modelReply
	err = llm.CompleteJSON(ctx, c.backend, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   300,
		Temperature: c.temperature,
	}, c.maxRetries, &reply)
	if err != nil {
		return fallback, fmt.Errorf("%w: %w", ErrClassification, err)
	}

	return c.fromReply(reply, question, fallback), nil
}

// fromReply validates the model reply against the taxonomy and applies the
// keyword precedence rule.
func (c *Classifier) fromReply(reply modelReply, question string, keywords types.ClassificationResult) types.ClassificationResult {
	var cats []types.Category
	for _, raw := range reply.Categories {
		cat, ok := types.ParseCategory(raw)
		if !ok {
			c.log.Warn("dropping unknown category", "category", raw)
			continue
		}
		cats = append(cats, cat)
	}

	if len(cats) == 0 {
		return types.NewClassification(nil, types.ParseIntent(reply.Intent), types.DefaultConfidence, mergeEntities(keywords.Entities, reply.Amounts)...)
	}

	if reply.IsMultiCategory || len(cats) > 1 {
		for _, kc := range keywords.AllCategories {
			if kc != types.CategoryGeneral {
				cats = append(cats, kc)
			}
		}
	}

	intent := types.ParseIntent(reply.Intent)
	if intent == types.IntentGeneral {
		intent = keywords.Intent
	}

	result := types.NewClassification(cats, intent, parseConfidence(reply.Confidence), mergeEntities(keywords.Entities, reply.Amounts)...)
	c.log.Debug("classified",
		"categories", result.CategoryNames(), "intent", result.Intent,
		"confidence", result.Confidence, "question_len", len(question))
	return result
}

// parseConfidence accepts a number or one of high, medium, low. Anything
// else is DefaultConfidence.
func parseConfidence(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return types.DefaultConfidence
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return types.DefaultConfidence
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return 0.9
	case "medium":
		return 0.6
	case "low":
		return 0.3
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return types.DefaultConfidence
}

func mergeEntities(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, e := range list {
			e = strings.TrimSpace(e)
			if e == "" || seen[e] {
				continue
			}
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}
