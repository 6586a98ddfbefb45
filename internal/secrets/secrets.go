// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files. The
// file name is the key and the trimmed contents are the value. Keys that
// have no file fall back to an environment variable.
//
// Known keys: anthropic-api-key, openai-api-key, live-source-api-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/revenue-assistant/internal/logging"
)

const (
	AnthropicAPIKey  = "anthropic-api-key"
	OpenAIAPIKey     = "openai-api-key"
	LiveSourceAPIKey = "live-source-api-key"
)

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads all regular, non-hidden files in dir. A missing directory is
// not an error and yields an empty set. Unreadable files are logged and
// skipped.
func Load(dir string) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	log := logging.New("secrets")
	s := make(Secrets)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("could not read secret", slog.String("key", name), slog.Any("error", err))
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	return s, nil
}

// Lookup returns the value for key from the loaded files, then from the
// environment variable named after the key (anthropic-api-key →
// ANTHROPIC_API_KEY).
func (s Secrets) Lookup(key string) (string, bool) {
	if v, ok := s[key]; ok {
		return v, true
	}
	if v := strings.TrimSpace(os.Getenv(EnvName(key))); v != "" {
		return v, true
	}
	return "", false
}

// Get is Lookup without the presence flag.
func (s Secrets) Get(key string) string {
	v, _ := s.Lookup(key)
	return v
}

// Keys returns the loaded key names in sorted order. Values are never
// listed.
func (s Secrets) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnvName converts a key file name to its environment variable name.
func EnvName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}
