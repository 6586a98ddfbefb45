// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the boundary to the hosted language model. Stages build a
// Request, call Complete or CompleteJSON, and never see provider wire
// formats.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// ErrUpstreamUnavailable is wrapped into every error returned after the
// retry budget is exhausted.
var ErrUpstreamUnavailable = errors.New("language model unavailable")

// ErrNoBackend is returned by New when no API key is configured.
var ErrNoBackend = errors.New("no language model backend configured")

// Backend performs one inference call. Implementations must honour ctx.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is one prompt/response round trip.
type Request struct {
	// System is the system instruction. Optional.
	System string

	// Prompt is the user message.
	Prompt string

	// MaxTokens caps the completion. Zero uses the backend default.
	MaxTokens int

	Temperature float64

	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// StatusError is a non-200 reply from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.Code, e.Body)
}

// permanent reports whether retrying err cannot help: client errors other
// than rate limiting.
func permanent(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
	}
	return false
}

// BackoffBase is the base delay between retries. Tests override it.
var BackoffBase = 250 * time.Millisecond

// Complete calls b with exponential backoff, making at most maxRetries
// retries after the first attempt. Context cancellation is returned as-is.
func Complete(ctx context.Context, b Backend, req Request, maxRetries int) (string, error) {
	return withRetry(ctx, maxRetries, func() (string, error) {
		return b.Complete(ctx, req)
	})
}

// CompleteJSON is Complete followed by decoding the first JSON object in
// the reply into v. An unparsable reply counts as a failed attempt.
func CompleteJSON(ctx context.Context, b Backend, req Request, maxRetries int, v any) error {
	req.JSON = true
	_, err := withRetry(ctx, maxRetries, func() (string, error) {
		text, err := b.Complete(ctx, req)
		if err != nil {
			return "", err
		}
		if err := DecodeJSON(text, v); err != nil {
			return "", err
		}
		return text, nil
	})
	return err
}

func withRetry(ctx context.Context, maxRetries int, call func() (string, error)) (string, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * BackoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := call()
		if err == nil {
			return text, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		lastErr = err
		if permanent(err) {
			break
		}
	}
	return "", fmt.Errorf("%w after %d retries: %w", ErrUpstreamUnavailable, maxRetries, lastErr)
}

// DecodeJSON extracts the first JSON object from text, tolerating markdown
// code fences and surrounding prose, and unmarshals it into v.
func DecodeJSON(text string, v any) error {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in model reply")
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("parsing model JSON: %w", err)
	}
	return nil
}

// New builds the backend selected by cfg.Provider. It returns ErrNoBackend
// when cfg.APIKey is empty.
func New(cfg types.AIConfig) (Backend, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoBackend
	}
	client := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Provider {
	case types.ProviderAnthropic, "":
		return &ClaudeBackend{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			BaseURL:   cfg.BaseURL,
			Client:    client,
		}, nil
	case types.ProviderOpenAI:
		return &OpenAIBackend{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			BaseURL:   cfg.BaseURL,
			Client:    client,
		}, nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
