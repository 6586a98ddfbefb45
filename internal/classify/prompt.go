// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/revenue-assistant/pkg/types"
)

const systemPrompt = `You classify questions about NSW state taxes, duties, levies, grants and royalties. You reply with a single JSON object and nothing else.`

// classifyPromptTmpl lists the closed taxonomy and asks for a structured
// classification.
var classifyPromptTmpl = template.Must(template.New("classify").Parse(`Classify the question below.

Categories (use these identifiers exactly):
{{- range .Categories}}
- {{.ID}}: {{.Label}}
{{- end}}

Intents: {{range $i, $v := .Intents}}{{if $i}}, {{end}}{{$v}}{{end}}

Rules:
- List every category the question asks about, in the order they are mentioned.
- Set is_multi_category to true when the question combines two or more categories.
- Use "general" only when no other category applies.
- confidence is a number between 0 and 1.
- amounts lists dollar amounts, rates and counts copied from the question.

Respond with JSON only:
{"categories": ["payroll_tax"], "intent": "rate_lookup", "is_multi_category": false, "confidence": 0.9, "amounts": ["$1.2 million"]}

Question:
{{.Question}}
`))

type promptCategory struct {
	ID    types.Category
	Label string
}

func renderPrompt(question string) (string, error) {
	var cats []promptCategory
	for _, c := range types.AllCategories() {
		cats = append(cats, promptCategory{ID: c, Label: c.Label()})
	}
	data := struct {
		Categories []promptCategory
		Intents    []types.Intent
		Question   string
	}{
		Categories: cats,
		Intents:    append(append([]types.Intent(nil), intentOrder...), types.IntentGeneral),
		Question:   question,
	}

	var buf bytes.Buffer
	if err := classifyPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
