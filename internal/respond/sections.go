// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package respond

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/revenue-assistant/pkg/types"
)

const (
	sectionAnswer       = "ANSWER"
	sectionCitations    = "CITATIONS"
	sectionCalculations = "CALCULATIONS"
	sectionAssumptions  = "ASSUMPTIONS"
	sectionConfidence   = "CONFIDENCE"
)

// headerPattern matches a section header line, tolerating markdown
// emphasis or heading markers around the name.
var headerPattern = regexp.MustCompile(`(?i)^[#*\s]*(ANSWER|CITATIONS|CALCULATIONS|ASSUMPTIONS|CONFIDENCE)[*\s]*:[*\s]*(.*)$`)

// listMarker matches leading bullets and step numbers.
var listMarker = regexp.MustCompile(`^\s*(?:[-*•]\s*|\d+[.)]\s+|(?i:step)\s+\d+[:.)]?\s*)`)

// parseSections splits a reply into its named sections. Text before the
// first header belongs to ANSWER. A reply with no headers is all ANSWER.
func parseSections(reply string) map[string]string {
	sections := make(map[string][]string)
	current := sectionAnswer
	for _, line := range strings.Split(reply, "\n") {
		if m := headerPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			current = strings.ToUpper(m[1])
			if rest := strings.TrimSpace(m[2]); rest != "" {
				sections[current] = append(sections[current], rest)
			}
			continue
		}
		sections[current] = append(sections[current], line)
	}

	out := make(map[string]string, len(sections))
	for name, lines := range sections {
		out[name] = strings.TrimSpace(strings.Join(lines, "\n"))
	}
	return out
}

// isNone reports whether a section body says there is nothing to report.
func isNone(s string) bool {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(s), ".")) {
	case "", "none", "n/a", "na", "not applicable", "nil":
		return true
	}
	return false
}

// listItems returns the non-empty lines of a section with list markers
// removed.
func listItems(body string) []string {
	if isNone(body) {
		return nil
	}
	var items []string
	for _, line := range strings.Split(body, "\n") {
		item := strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if item != "" && !isNone(item) {
			items = append(items, item)
		}
	}
	return items
}

// parseCalculation reads numbered steps and a RESULT or total line.
func parseCalculation(body string) *types.Calculation {
	items := listItems(body)
	if len(items) == 0 {
		return nil
	}
	calc := &types.Calculation{}
	for _, item := range items {
		lower := strings.ToLower(item)
		switch {
		case strings.HasPrefix(lower, "result:"):
			calc.Result = strings.TrimSpace(item[len("result:"):])
		case strings.HasPrefix(lower, "total:"):
			calc.Result = strings.TrimSpace(item[len("total:"):])
		default:
			calc.Steps = append(calc.Steps, item)
		}
	}
	return calc
}

// parseConfidence maps high/medium/low or a number in [0,1] (or a
// percentage) to a confidence. ok is false when nothing usable was given.
func parseConfidence(body string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(body))
	if s == "" {
		return 0, false
	}
	word := strings.Fields(s)[0]
	word = strings.Trim(word, ".,;")
	switch word {
	case "high":
		return 0.9, true
	case "medium", "moderate":
		return 0.6, true
	case "low":
		return 0.3, true
	}
	pct := strings.HasSuffix(word, "%")
	f, err := strconv.ParseFloat(strings.TrimSuffix(word, "%"), 64)
	if err != nil {
		return 0, false
	}
	if pct || f > 1 {
		f /= 100
	}
	if f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}
