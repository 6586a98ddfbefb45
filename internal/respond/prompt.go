// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package respond

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pdiddy/revenue-assistant/pkg/types"
)

const systemPrompt = `You answer questions about NSW state taxes, duties, levies, grants and royalties for Revenue NSW customers.
Use only the numbered passages you are given. Cite every statement with the tag of the passage it comes from.
If the passages do not contain the answer, say so plainly instead of guessing.`

var answerPromptTmpl = template.Must(template.New("answer").Funcs(template.FuncMap{
	"tag": Tag,
}).Parse(`Question:
{{.Question}}

Categories: {{.Categories}}
Intent: {{.Intent}}
{{- if .Entities}}
Amounts mentioned: {{.Entities}}
{{- end}}

Passages:
{{range .Passages}}
{{tag .SourceID}} {{if .Title}}{{.Title}} {{end}}({{.Category}})
{{.Text}}
{{end}}
Instructions:
- Cite each statement with the tag of its passage, for example {{tag "payroll-tax-act-2007/s11"}}. Use only the tags listed above.
- Quote rates, thresholds and dates exactly as they appear in the passages.
{{- if .Multi}}
- The question covers several categories. Write one section per category, each starting with its name on its own line:
{{- range .Labels}}
  {{.}}
{{- end}}
- After the sections add a single line starting with "Combined total:" that states the combined liability or, if it cannot be worked out, why not.
{{- end}}
{{- if .Calculation}}
- Show the calculation step by step under CALCULATIONS and give the final figure on a line starting with "RESULT:".
{{- end}}

Reply in exactly this format:
ANSWER:
<the answer with citation tags>
CITATIONS:
<one tag per line>
CALCULATIONS:
<numbered steps, or "none">
ASSUMPTIONS:
<one per line, or "none">
CONFIDENCE: <high, medium or low>
`))

type promptData struct {
	Question    string
	Categories  string
	Labels      []string
	Intent      types.Intent
	Entities    string
	Passages    []types.Candidate
	Multi       bool
	Calculation bool
}

func renderPrompt(cs types.ContextSet, cls types.ClassificationResult, question string) (string, error) {
	var labels []string
	for _, c := range cls.AllCategories {
		labels = append(labels, c.Label())
	}
	data := promptData{
		Question:    question,
		Categories:  strings.Join(labels, ", "),
		Labels:      labels,
		Intent:      cls.Intent,
		Entities:    strings.Join(cls.Entities, ", "),
		Passages:    cs.Candidates(),
		Multi:       cls.IsMultiCategory,
		Calculation: cls.Intent == types.IntentCalculation,
	}

	var buf bytes.Buffer
	if err := answerPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
