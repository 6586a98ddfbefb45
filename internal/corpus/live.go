// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/revenue-assistant/internal/httputil"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// ErrNotConfigured is returned by a corpus that lacks required settings.
var ErrNotConfigured = errors.New("corpus not configured")

// LiveSource queries an external HTTP search API for current guidance,
// rulings and rates. The API answers GET {BaseURL}/search?q=&category=&limit=
// with {"results":[{id,title,text,url,category,score}]}.
type LiveSource struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	MaxRetries int
	Client     *http.Client
}

// NewLiveSource builds a LiveSource from configuration.
func NewLiveSource(cfg types.ExternalCorpusConfig) *LiveSource {
	return &LiveSource{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:     cfg.APIKey,
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		Client:     &http.Client{Timeout: cfg.Timeout},
	}
}

// ID identifies this corpus to the orchestrator.
func (l *LiveSource) ID() types.CorpusID { return types.CorpusExternal }

type liveResponse struct {
	Results []liveResult `json:"results"`
}

type liveResult struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	URL      string   `json:"url"`
	Category string   `json:"category"`
	Score    *float64 `json:"score"`
}

// Search queries the live source. Results without a score get a
// position-based score; results outside the requested category are
// dropped.
func (l *LiveSource) Search(ctx context.Context, req Request) ([]types.Candidate, error) {
	if l.BaseURL == "" {
		return nil, fmt.Errorf("live source: %w: missing base_url", ErrNotConfigured)
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, nil
	}

	topK := req.TopK
	if topK <= 0 {
		topK = 8
	}
	params := url.Values{
		"q":     {req.Query},
		"limit": {strconv.Itoa(topK)},
	}
	if req.Filtered() {
		params.Set("category", string(req.Category))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, l.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	l.setHeaders(httpReq)

	resp, err := httputil.DoWithRetry(ctx, l.Client, httpReq, l.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("live source request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("live source returned HTTP %d", resp.StatusCode)
	}

	var lr liveResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("parsing live source response: %w", err)
	}

	total := len(lr.Results)
	var out []types.Candidate
	for i, r := range lr.Results {
		if r.ID == "" || strings.TrimSpace(r.Text) == "" {
			continue
		}
		cat, ok := types.ParseCategory(r.Category)
		if !ok {
			cat = types.CategoryGeneral
		}
		if req.Filtered() && cat != req.Category && cat != types.CategoryGeneral {
			continue
		}

		c := types.Candidate{
			SourceID: r.ID,
			Category: cat,
			Title:    r.Title,
			Text:     r.Text,
			URL:      r.URL,
			Corpus:   types.CorpusExternal,
		}
		if r.Score != nil {
			c.Score = clamp01(*r.Score)
		} else if total > 1 {
			c.Score = 1.0 - float64(i)/float64(total-1)*0.9
		} else {
			c.Score = 1.0
		}
		out = append(out, c)
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

// Ping checks {BaseURL}/health answers 200.
func (l *LiveSource) Ping(ctx context.Context) error {
	if l.BaseURL == "" {
		return fmt.Errorf("live source: %w: missing base_url", ErrNotConfigured)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	l.setHeaders(req)

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("live source health: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("live source health returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (l *LiveSource) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if l.UserAgent != "" {
		req.Header.Set("User-Agent", l.UserAgent)
	}
	if l.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.APIKey)
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
