// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/revenue-assistant/internal/llm"
	"github.com/pdiddy/revenue-assistant/internal/logging"
	"github.com/pdiddy/revenue-assistant/internal/respond"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

func init() {
	llm.BackoffBase = time.Millisecond
}

type mockBackend struct {
	reply   string
	err     error
	calls   int
	prompts []string
	temps   []float64
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Complete(_ context.Context, req llm.Request) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, req.Prompt)
	m.temps = append(m.temps, req.Temperature)
	return m.reply, m.err
}

const approveReply = `{"score": 0.9, "fact_check": "pass", "decision": "approve", "issues": [], "enhancements": ["Mention monthly lodgement", "Link the threshold page", "Note grouping", "Fourth note"]}`

func payrollContext() types.ContextSet {
	return types.NewContextSet([]types.Candidate{
		{SourceID: "payroll-tax-act-2007/s11", Category: types.CategoryPayrollTax, Title: "Payroll Tax Act 2007 s 11",
			Text: "The rate of payroll tax is 5.45 per cent of taxable wages."},
		{SourceID: "payroll-tax-act-2007/s6", Category: types.CategoryPayrollTax, Title: "Payroll Tax Act 2007 s 6",
			Text: "The tax-free threshold is $1,200,000."},
	}, 6)
}

func request(text string, cats ...types.Category) Request {
	if len(cats) == 0 {
		cats = []types.Category{types.CategoryPayrollTax}
	}
	return Request{
		Draft:          types.DraftAnswer{Text: text, SelfConfidence: 0.8},
		Context:        payrollContext(),
		Classification: types.NewClassification(cats, types.IntentRateLookup, 0.9),
		Query:          "What is the payroll tax rate?",
		Threshold:      0.65,
	}
}

const goodDraft = "The payroll tax rate is 5.45 per cent of taxable wages [doc:payroll-tax-act-2007/s11]. " +
	"The tax-free threshold is $1,200,000 [doc:payroll-tax-act-2007/s6]."

func TestReview_Approves(t *testing.T) {
	m := &mockBackend{reply: approveReply}
	r := New(m, DefaultOptions(), logging.Discard())

	v, err := r.Review(context.Background(), request(goodDraft))
	require.NoError(t, err)

	want := types.ReviewScores{CitationValidity: 1, FactualOverlap: 1, Critique: 0.9, CategoryCompleteness: 1}
	if diff := cmp.Diff(want, v.Scores); diff != "" {
		t.Errorf("scores mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, v.Approved)
	assert.InDelta(t, 0.975, v.AdjustedConfidence, 1e-9)
	assert.Empty(t, v.CitationIssues)
	assert.Empty(t, v.CompletenessIssues)
	assert.Len(t, v.EnhancementNotes, 3)
	assert.Contains(t, m.prompts[0], "[doc:payroll-tax-act-2007/s6] Payroll Tax Act 2007 s 6")
}

func TestReview_SendsTemperature(t *testing.T) {
	m := &mockBackend{reply: approveReply}
	opts := DefaultOptions()
	opts.Temperature = 0.25
	_, err := New(m, opts, logging.Discard()).Review(context.Background(), request(goodDraft))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25}, m.temps)
}

func TestReview_ScenarioC_UnknownCitation(t *testing.T) {
	r := New(&mockBackend{reply: approveReply}, DefaultOptions(), logging.Discard())
	draft := "The payroll tax rate is 5.45 per cent of taxable wages [doc:payroll-tax-act-2007/s11]. " +
		"Duty is payable on transfers [doc:duties-act-1997/s32]."

	v, err := r.Review(context.Background(), request(draft))
	require.NoError(t, err)

	require.Len(t, v.CitationIssues, 1)
	assert.Contains(t, v.CitationIssues[0], "[doc:duties-act-1997/s32]")
	assert.Equal(t, 0.5, v.Scores.CitationValidity)
	assert.Equal(t, 0.5, v.Scores.FactualOverlap)
	assert.Empty(t, v.CompletenessIssues)
	assert.InDelta(t, 0.3*0.5+0.25*0.5+0.25*0.9+0.2*1, v.AdjustedConfidence, 1e-9)
}

func TestReview_TooManyCitationIssues(t *testing.T) {
	r := New(&mockBackend{reply: approveReply}, DefaultOptions(), logging.Discard())
	draft := goodDraft + " See also [doc:a/s1] [doc:b/s2] [doc:c/s3]."

	v, err := r.Review(context.Background(), request(draft))
	require.NoError(t, err)
	assert.Len(t, v.CitationIssues, 3)
	assert.False(t, v.Approved)
}

func TestReview_MissingCategoryBlocksApproval(t *testing.T) {
	r := New(&mockBackend{reply: approveReply}, DefaultOptions(), logging.Discard())
	req := request(goodDraft, types.CategoryPayrollTax, types.CategoryLandTax)

	v, err := r.Review(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []types.Category{types.CategoryLandTax}, v.MissingCategories)
	assert.Contains(t, v.CompletenessIssues, "answer does not address Land Tax")
	assert.Equal(t, 0.5, v.Scores.CategoryCompleteness)
	assert.False(t, v.Approved)
	assert.Greater(t, v.AdjustedConfidence, 0.65, "blocked despite a passing score")
}

func TestReview_LowOverlapIsCompletenessIssue(t *testing.T) {
	r := New(&mockBackend{reply: approveReply}, DefaultOptions(), logging.Discard())
	draft := "Payroll tax applies to employers [doc:payroll-tax-act-2007/s11]. Lodgement happens every month online. Penalties apply when lodging late."

	v, err := r.Review(context.Background(), request(draft))
	require.NoError(t, err)
	assert.Less(t, v.Scores.FactualOverlap, 0.5)
	require.NotEmpty(t, v.CompletenessIssues)
	assert.Contains(t, v.CompletenessIssues[0], "supported by the cited passages")
}

func TestReview_NoCitations(t *testing.T) {
	r := New(&mockBackend{reply: approveReply}, DefaultOptions(), logging.Discard())
	v, err := r.Review(context.Background(), request("Payroll tax is 5.45 per cent of taxable wages."))
	require.NoError(t, err)
	assert.Equal(t, neutralCitation, v.Scores.CitationValidity)
	assert.Equal(t, []string{"answer cites no passages"}, v.CitationIssues)
	assert.Equal(t, 1.0, v.Scores.FactualOverlap, "falls back to the whole context")
}

func TestReview_ModelFailure(t *testing.T) {
	m := &mockBackend{err: errors.New("503")}
	_, err := New(m, DefaultOptions(), logging.Discard()).Review(context.Background(), request(goodDraft))
	assert.ErrorIs(t, err, ErrReview)
	assert.ErrorIs(t, err, llm.ErrUpstreamUnavailable)
	assert.Equal(t, 2, m.calls)
}

func TestReview_NoBackend(t *testing.T) {
	_, err := New(nil, DefaultOptions(), logging.Discard()).Review(context.Background(), request(goodDraft))
	assert.ErrorIs(t, err, ErrReview)
	assert.ErrorIs(t, err, llm.ErrNoBackend)
}

func TestCritiqueFromReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  float64
	}{
		{"numeric", `{"score": 0.8}`, 0.8},
		{"string score", `{"score": "0.6"}`, 0.6},
		{"out of ten", `{"score": 8}`, 0.8},
		{"fact check fallback", `{"fact_check": "fail"}`, 0.2},
		{"partial", `{"score": null, "fact_check": "partial"}`, 0.6},
		{"reject halves", `{"score": 0.8, "decision": "reject"}`, 0.4},
		{"nothing usable", `{"score": "great"}`, neutralCritique},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reply critiqueReply
			require.NoError(t, json.Unmarshal([]byte(tt.reply), &reply))
			assert.InDelta(t, tt.want, critiqueFromReply(reply).Score, 1e-9)
		})
	}
}

func TestSentences(t *testing.T) {
	got := Sentences("Rate is 5.45% [doc:x]. Short. The threshold is $1.2 million!\nNext line here")
	want := []string{"Rate is 5.45%", "The threshold is $1.2 million", "Next line here"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Sentences mismatch (-want +got):\n%s", diff)
	}
}

func TestWeightsSumToOne(t *testing.T) {
	assert.InDelta(t, 1.0, WeightCitation+WeightOverlap+WeightCritique+WeightCompleteness, 1e-9)
}

func TestVerdict_TagsInCitationsSectionOnly(t *testing.T) {
	reply := "ANSWER:\nThe payroll tax rate is 5.45 per cent of taxable wages.\n" +
		"CITATIONS:\n[doc:payroll-tax-act-2007/s11]\n[doc:duties-act-1997/s32]\n" +
		"CONFIDENCE: high\n"
	req := request("")
	draft, err := respond.Parse(reply, req.Context, req.Classification)
	require.NoError(t, err)
	require.Equal(t, []string{"payroll-tax-act-2007/s11"}, draft.Citations)
	req.Draft = draft

	v := New(nil, DefaultOptions(), logging.Discard()).Verdict(req, Critique{Score: 0.9})

	assert.Equal(t, []string{"citation [doc:duties-act-1997/s32] does not match any retrieved passage"}, v.CitationIssues)
	assert.InDelta(t, 0.5, v.Scores.CitationValidity, 1e-9)
}

func TestVerdict_ValidTagInCitationsSectionOnly(t *testing.T) {
	reply := "ANSWER:\nThe payroll tax rate is 5.45 per cent of taxable wages.\n" +
		"CITATIONS:\n- [doc:payroll-tax-act-2007/s11]\n"
	req := request("")
	draft, err := respond.Parse(reply, req.Context, req.Classification)
	require.NoError(t, err)
	req.Draft = draft

	v := New(nil, DefaultOptions(), logging.Discard()).Verdict(req, Critique{Score: 0.9})

	assert.Empty(t, v.CitationIssues)
	assert.InDelta(t, 1.0, v.Scores.CitationValidity, 1e-9)
}

func TestNew_CitationIssueLimit(t *testing.T) {
	req := request(goodDraft + " Grouping rules also apply [doc:grouping/s1].")
	req.Threshold = 0.1

	strict := New(nil, Options{MaxCitationIssues: 0, MinOverlapRatio: 0.5}, logging.Discard())
	v := strict.Verdict(req, Critique{Score: 0.9})
	require.Len(t, v.CitationIssues, 1)
	assert.False(t, v.Approved, "zero citation issues allowed must reject one issue")

	lenient := New(nil, Options{MaxCitationIssues: -1, MinOverlapRatio: 0.5}, logging.Discard())
	assert.True(t, lenient.Verdict(req, Critique{Score: 0.9}).Approved, "negative limit takes the default of 2")
}
