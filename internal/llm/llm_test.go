// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/revenue-assistant/internal/httputil"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

func init() {
	BackoffBase = time.Millisecond
	httputil.RetryBaseDelay = time.Millisecond
}

// --- mock backend ---

type mockBackend struct {
	replies []string
	errs    []error
	calls   int
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Complete(_ context.Context, _ Request) (string, error) {
	i := m.calls
	m.calls++
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	return m.replies[len(m.replies)-1], nil
}

// --- retry ---

func TestCompleteRetriesThenSucceeds(t *testing.T) {
	m := &mockBackend{
		errs:    []error{errors.New("connection reset"), nil},
		replies: []string{"", "ok"},
	}
	got, err := Complete(context.Background(), m, Request{Prompt: "hi"}, 1)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, m.calls)
}

func TestCompleteExhaustedWrapsUpstreamUnavailable(t *testing.T) {
	cause := errors.New("quota exceeded")
	m := &mockBackend{errs: []error{cause, cause, cause}}
	_, err := Complete(context.Background(), m, Request{}, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, m.calls)
}

func TestCompleteStopsOnPermanentError(t *testing.T) {
	m := &mockBackend{errs: []error{&StatusError{Provider: "Claude", Code: 401, Body: "bad key"}}}
	_, err := Complete(context.Background(), m, Request{}, 3)
	require.Error(t, err)
	assert.Equal(t, 1, m.calls)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestCompleteReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &mockBackend{errs: []error{errors.New("boom")}}
	_, err := Complete(ctx, m, Request{}, 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompleteJSONRetriesUnparsable(t *testing.T) {
	m := &mockBackend{replies: []string{"sorry, I cannot", `{"intent":"calculation"}`}}
	var out struct {
		Intent string `json:"intent"`
	}
	require.NoError(t, CompleteJSON(context.Background(), m, Request{}, 1, &out))
	assert.Equal(t, "calculation", out.Intent)
	assert.Equal(t, 2, m.calls)
}

// --- DecodeJSON ---

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", `{"a":"x"}`, "x", false},
		{"fenced", "```json\n{\"a\":\"y\"}\n```", "y", false},
		{"prose around", `Here you go: {"a":"z"} hope that helps`, "z", false},
		{"no object", "no json here", "", true},
		{"broken", `{"a":`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v struct {
				A string `json:"a"`
			}
			err := DecodeJSON(tt.in, &v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.A)
		})
	}
}

// --- providers ---

func TestClaudeBackendComplete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req claudeRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "be precise", req.System)
		assert.Equal(t, 512, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "what is payroll tax?", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"ANSWER: "},{"type":"text","text":"5.45%"}]}`))
	}))
	defer ts.Close()

	old := claudeAPIURL
	claudeAPIURL = ts.URL
	defer func() { claudeAPIURL = old }()

	b := &ClaudeBackend{APIKey: "test-key", Model: "m", MaxTokens: 512, Client: ts.Client()}
	got, err := b.Complete(context.Background(), Request{System: "be precise", Prompt: "what is payroll tax?"})
	require.NoError(t, err)
	assert.Equal(t, "ANSWER: 5.45%", got)
}

func TestClaudeBackendStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid x-api-key"}`))
	}))
	defer ts.Close()

	b := &ClaudeBackend{APIKey: "bad", Model: "m", BaseURL: ts.URL, Client: ts.Client()}
	_, err := b.Complete(context.Background(), Request{Prompt: "x"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}

func TestOpenAIBackendComplete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer ts.Close()

	old := openAIAPIURL
	openAIAPIURL = ts.URL
	defer func() { openAIAPIURL = old }()

	b := &OpenAIBackend{APIKey: "sk-test", Model: "gpt", Client: ts.Client()}
	got, err := b.Complete(context.Background(), Request{System: "s", Prompt: "p", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, got)
}

func TestNew(t *testing.T) {
	_, err := New(types.AIConfig{Provider: types.ProviderAnthropic})
	assert.ErrorIs(t, err, ErrNoBackend)

	b, err := New(types.AIConfig{Provider: types.ProviderOpenAI, APIKey: "k", Model: "gpt"})
	require.NoError(t, err)
	assert.Equal(t, "openai", b.Name())

	b, err = New(types.AIConfig{APIKey: "k", Model: "claude"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", b.Name())

	_, err = New(types.AIConfig{Provider: "bard", APIKey: "k"})
	assert.Error(t, err)
}
