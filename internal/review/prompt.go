// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/revenue-assistant/internal/respond"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

const systemPrompt = `You are a senior Revenue NSW technical reviewer. You check draft answers against the source passages they cite. You reply with a single JSON object and nothing else.`

var critiquePromptTmpl = template.Must(template.New("critique").Funcs(template.FuncMap{
	"tag": respond.Tag,
}).Parse(`Review the draft answer to the customer question below.

Question:
{{.Question}}

Categories the question covers: {{range $i, $c := .Categories}}{{if $i}}, {{end}}{{$c.Label}}{{end}}

Source passages:
{{range .Passages}}
{{tag .SourceID}} {{.Title}}
{{.Text}}
{{end}}
Draft answer:
{{.Draft}}

Check that every figure, rate and threshold in the draft appears in the cited passages, that each category is answered, and that any calculation is arithmetically right.

Respond with JSON only:
{"score": 0.0-1.0, "fact_check": "pass|partial|fail", "decision": "approve|reject", "issues": ["..."], "enhancements": ["up to three short suggestions"]}
`))

func renderPrompt(req Request) (string, error) {
	data := struct {
		Question   string
		Categories []types.Category
		Passages   []types.Candidate
		Draft      string
	}{
		Question:   req.Query,
		Categories: req.Classification.AllCategories,
		Passages:   req.Context.Candidates(),
		Draft:      req.Draft.Text,
	}
	var buf bytes.Buffer
	if err := critiquePromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
