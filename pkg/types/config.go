// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
	"time"
)

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP client timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "revenue-assistant/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// AIProvider selects the language model API.
type AIProvider string

const (
	ProviderAnthropic AIProvider = "anthropic"
	ProviderOpenAI    AIProvider = "openai"
)

// AIConfig holds settings for the language model backend shared by the
// classifier, responder and reviewer.
type AIConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Provider is "anthropic" (default) or "openai".
	Provider AIProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey authenticates with the provider. Usually loaded from .secrets/.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint, e.g. for a proxy.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxRetries is the number of retries after a failed call (default 1).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// MaxTokens caps each completion (default 2048).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Temperature is the sampling temperature sent with every stage's
	// completion (default 0.1). Zero leaves it to the provider.
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
}

// PipelineConfig controls one pipeline execution.
type PipelineConfig struct {
	// EnableReview runs the Reviewer stage. When false results are flagged
	// with the draft's self-confidence.
	EnableReview bool `json:"enable_review" yaml:"enable_review" mapstructure:"enable_review"`

	// CategoryFilter, when set, restricts retrieval to this category.
	CategoryFilter Category `json:"category_filter,omitempty" yaml:"category_filter,omitempty" mapstructure:"category_filter"`

	// ContextLimit caps the ContextSet size (default 6).
	ContextLimit int `json:"context_limit" yaml:"context_limit" mapstructure:"context_limit"`

	// ApprovalThreshold is the minimum adjusted confidence for approval (default 0.65).
	ApprovalThreshold float64 `json:"approval_threshold" yaml:"approval_threshold" mapstructure:"approval_threshold"`

	// MaxCitationIssues is the most citation issues an approved answer may have (default 2).
	MaxCitationIssues int `json:"max_citation_issues" yaml:"max_citation_issues" mapstructure:"max_citation_issues"`

	// MinOverlapRatio is the factual overlap below which a completeness
	// issue is raised (default 0.5).
	MinOverlapRatio float64 `json:"min_overlap_ratio" yaml:"min_overlap_ratio" mapstructure:"min_overlap_ratio"`

	// QueryTimeout is the overall per-query deadline (default 10s).
	QueryTimeout time.Duration `json:"query_timeout" yaml:"query_timeout" mapstructure:"query_timeout"`

	// Per-stage timeouts, each bounded by QueryTimeout.
	ClassifyTimeout time.Duration `json:"classify_timeout" yaml:"classify_timeout" mapstructure:"classify_timeout"`
	RetrieveTimeout time.Duration `json:"retrieve_timeout" yaml:"retrieve_timeout" mapstructure:"retrieve_timeout"`
	GenerateTimeout time.Duration `json:"generate_timeout" yaml:"generate_timeout" mapstructure:"generate_timeout"`
	ReviewTimeout   time.Duration `json:"review_timeout" yaml:"review_timeout" mapstructure:"review_timeout"`

	// ReviewSkipFraction skips review when less than this fraction of
	// QueryTimeout remains after generation (default 0.2).
	ReviewSkipFraction float64 `json:"review_skip_fraction" yaml:"review_skip_fraction" mapstructure:"review_skip_fraction"`
}

// LocalCorpusConfig configures the SQLite legislation index.
type LocalCorpusConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// SourceDir holds the legislation YAML files ingested by "corpus load".
	SourceDir string `json:"source_dir" yaml:"source_dir" mapstructure:"source_dir"`

	// DBPath is the SQLite index file.
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// ExternalCorpusConfig configures the live search API.
type ExternalCorpusConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// BaseURL is the search API root; requests go to BaseURL + "/search".
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// APIKey is sent as a bearer token when set.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries bounds retries on HTTP 429/503.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// BulkCorpusConfig configures the in-memory reference dataset.
type BulkCorpusConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Path is a .jsonl, .json or .yaml dataset file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// CorporaConfig groups the retrieval corpora. Corpora are queried in the
// order local, external, bulk.
type CorporaConfig struct {
	// TopK is the number of candidates requested from each corpus per category (default 8).
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`

	// MaxParallel bounds concurrent corpus calls (default 6).
	MaxParallel int `json:"max_parallel" yaml:"max_parallel" mapstructure:"max_parallel"`

	Local    LocalCorpusConfig    `json:"local" yaml:"local" mapstructure:"local"`
	External ExternalCorpusConfig `json:"external" yaml:"external" mapstructure:"external"`
	Bulk     BulkCorpusConfig     `json:"bulk" yaml:"bulk" mapstructure:"bulk"`
}

// AuditConfig configures the query log.
type AuditConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	DBPath  string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`
}

// LogConfig configures slog output.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is text or json.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config is the full application configuration.
type Config struct {
	AI       AIConfig       `json:"ai" yaml:"ai" mapstructure:"ai"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Corpora  CorporaConfig  `json:"corpora" yaml:"corpora" mapstructure:"corpora"`
	Audit    AuditConfig    `json:"audit" yaml:"audit" mapstructure:"audit"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultPipelineConfig returns the pipeline defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		EnableReview:       true,
		ContextLimit:       6,
		ApprovalThreshold:  0.65,
		MaxCitationIssues:  2,
		MinOverlapRatio:    0.5,
		QueryTimeout:       10 * time.Second,
		ClassifyTimeout:    2 * time.Second,
		RetrieveTimeout:    3 * time.Second,
		GenerateTimeout:    6 * time.Second,
		ReviewTimeout:      4 * time.Second,
		ReviewSkipFraction: 0.2,
	}
}

// DefaultConfig returns a configuration that works with a local index only.
func DefaultConfig() Config {
	return Config{
		AI: AIConfig{
			HTTPConfig:  HTTPConfig{Timeout: 30 * time.Second, UserAgent: "revenue-assistant/0.1"},
			Provider:    ProviderAnthropic,
			Model:       "claude-sonnet-4-5-20250929",
			MaxRetries:  1,
			MaxTokens:   2048,
			Temperature: 0.1,
		},
		Pipeline: DefaultPipelineConfig(),
		Corpora: CorporaConfig{
			TopK:        8,
			MaxParallel: 6,
			Local: LocalCorpusConfig{
				Enabled:   true,
				SourceDir: "legislation",
				DBPath:    "index/legislation.db",
				Timeout:   1500 * time.Millisecond,
			},
			External: ExternalCorpusConfig{
				HTTPConfig: HTTPConfig{Timeout: 2 * time.Second, UserAgent: "revenue-assistant/0.1"},
				MaxRetries: 2,
			},
			Bulk: BulkCorpusConfig{
				Path:    "data/reference.jsonl",
				Timeout: 2500 * time.Millisecond,
			},
		},
		Audit: AuditConfig{DBPath: "index/audit.db"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// ApplyDefaults fills zero-valued pipeline limits and timeouts.
func (c *PipelineConfig) ApplyDefaults() {
	d := DefaultPipelineConfig()
	if c.ContextLimit <= 0 {
		c.ContextLimit = d.ContextLimit
	}
	if c.ApprovalThreshold <= 0 {
		c.ApprovalThreshold = d.ApprovalThreshold
	}
	if c.MaxCitationIssues < 0 {
		c.MaxCitationIssues = d.MaxCitationIssues
	}
	if c.MinOverlapRatio <= 0 {
		c.MinOverlapRatio = d.MinOverlapRatio
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = d.QueryTimeout
	}
	if c.ClassifyTimeout <= 0 {
		c.ClassifyTimeout = d.ClassifyTimeout
	}
	if c.RetrieveTimeout <= 0 {
		c.RetrieveTimeout = d.RetrieveTimeout
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = d.GenerateTimeout
	}
	if c.ReviewTimeout <= 0 {
		c.ReviewTimeout = d.ReviewTimeout
	}
	if c.ReviewSkipFraction <= 0 {
		c.ReviewSkipFraction = d.ReviewSkipFraction
	}
}

// Validate reports every problem in the configuration at once.
func (c Config) Validate() error {
	var problems []string

	switch c.AI.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		problems = append(problems, fmt.Sprintf("ai.provider %q: want anthropic or openai", c.AI.Provider))
	}
	if c.AI.Model == "" {
		problems = append(problems, "ai.model is required")
	}
	if c.AI.MaxRetries < 0 {
		problems = append(problems, "ai.max_retries must not be negative")
	}

	p := c.Pipeline
	if p.ApprovalThreshold < 0 || p.ApprovalThreshold > 1 {
		problems = append(problems, "pipeline.approval_threshold must be in [0,1]")
	}
	if p.MinOverlapRatio < 0 || p.MinOverlapRatio > 1 {
		problems = append(problems, "pipeline.min_overlap_ratio must be in [0,1]")
	}
	if p.ContextLimit < 0 {
		problems = append(problems, "pipeline.context_limit must not be negative")
	}
	if p.CategoryFilter != "" && !p.CategoryFilter.Valid() {
		problems = append(problems, fmt.Sprintf("pipeline.category_filter %q is not a known category", p.CategoryFilter))
	}

	if !c.Corpora.Local.Enabled && !c.Corpora.External.Enabled && !c.Corpora.Bulk.Enabled {
		problems = append(problems, "at least one corpus must be enabled")
	}
	if c.Corpora.Local.Enabled && c.Corpora.Local.DBPath == "" {
		problems = append(problems, "corpora.local.db_path is required when the local corpus is enabled")
	}
	if c.Corpora.External.Enabled && c.Corpora.External.BaseURL == "" {
		problems = append(problems, "corpora.external.base_url is required when the external corpus is enabled")
	}
	if c.Corpora.Bulk.Enabled && c.Corpora.Bulk.Path == "" {
		problems = append(problems, "corpora.bulk.path is required when the bulk corpus is enabled")
	}
	if c.Audit.Enabled && c.Audit.DBPath == "" {
		problems = append(problems, "audit.db_path is required when audit is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
