// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the model backends and
// the external corpus client.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/pdiddy/revenue-assistant/internal/logging"
)

// RetryBaseDelay is the first backoff delay. It doubles on each attempt up
// to RetryMaxDelay. Tests override both to avoid real sleeps.
var (
	RetryBaseDelay = 500 * time.Millisecond
	RetryMaxDelay  = 4 * time.Second
)

const defaultMaxRetries = 3

// Retryable reports whether a response status is worth retrying: rate
// limiting and temporary unavailability.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// DoWithRetry executes req and retries on retryable statuses with
// exponential backoff. A Retry-After header in seconds overrides the
// computed delay when it is shorter than RetryMaxDelay.
//
// When maxRetries is 0 the default (3) is used. Request bodies are
// replayed through req.GetBody, so requests built with
// http.NewRequestWithContext over a bytes.Reader can be retried. If ctx is
// cancelled during a backoff wait DoWithRetry returns ctx.Err(). After the
// last retry the final response is returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if client == nil {
		client = http.DefaultClient
	}
	log := logging.New("httputil")

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}

		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		backoff := backoffFor(attempt, resp.Header.Get("Retry-After"))

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		log.Debug("retrying request",
			"url", req.URL.Redacted(), "status", resp.StatusCode,
			"attempt", attempt+1, "max_retries", maxRetries, "backoff", backoff)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func backoffFor(attempt int, retryAfter string) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		if d := time.Duration(secs) * time.Second; d < RetryMaxDelay {
			backoff = d
		}
	}
	if backoff > RetryMaxDelay {
		backoff = RetryMaxDelay
	}
	return backoff
}
