// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package respond

import (
	"regexp"
	"strings"

	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// tagPattern matches citation tags: [doc:ID] or [doc:ID1; doc:ID2].
var tagPattern = regexp.MustCompile(`(?i)\[doc:\s*([^\[\]]+)\]`)

// Tag formats the citation tag for a source ID.
func Tag(sourceID string) string {
	return "[doc:" + sourceID + "]"
}

// CitationTags returns every source ID cited in text, in first-mention
// order without repeats. Multi-citations may separate IDs with ";" or ",".
func CitationTags(text string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.FieldsFunc(m[1], func(r rune) bool { return r == ';' || r == ',' }) {
			id := strings.TrimSpace(part)
			if len(id) > 4 && strings.EqualFold(id[:4], "doc:") {
				id = strings.TrimSpace(id[4:])
			}
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// Resolve splits ids into those present in cs and those that are not,
// preserving order.
func Resolve(ids []string, cs types.ContextSet) (resolved, unresolved []string) {
	for _, id := range ids {
		if cs.Contains(id) {
			resolved = append(resolved, id)
		} else {
			unresolved = append(unresolved, id)
		}
	}
	return resolved, unresolved
}

// StripTags removes citation tags from text.
func StripTags(text string) string {
	return tagPattern.ReplaceAllString(text, "")
}
