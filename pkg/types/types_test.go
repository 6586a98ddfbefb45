package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in     string
		want   Category
		wantOK bool
	}{
		{"payroll_tax", CategoryPayrollTax, true},
		{" Payroll Tax ", CategoryPayrollTax, true},
		{"land-tax", CategoryLandTax, true},
		{"stamp_duty", CategoryTransferDuty, true},
		{"unknown", CategoryGeneral, true},
		{"income_tax", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCategory(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseCategory(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestAllCategories_GeneralLast(t *testing.T) {
	all := AllCategories()
	if all[len(all)-1] != CategoryGeneral {
		t.Errorf("last category = %q, want general", all[len(all)-1])
	}
	all[0] = "mutated"
	if AllCategories()[0] != CategoryPayrollTax {
		t.Error("AllCategories returned shared storage")
	}
}

func TestPhraseIndex_WordBoundaries(t *testing.T) {
	if PhraseIndex("how do you define wages", "fine") != -1 {
		t.Error("fine matched inside define")
	}
	if got := PhraseIndex("a parking fine notice", "fine"); got != 10 {
		t.Errorf("PhraseIndex = %d, want 10", got)
	}
	if !CategoryLandTax.MentionedIn("Your Land Tax bill") {
		t.Error("label match failed")
	}
	if !CategoryGeneral.MentionedIn("anything") {
		t.Error("general should be addressed by any text")
	}
}

func TestParseIntent(t *testing.T) {
	if got := ParseIntent("Rate"); got != IntentRateLookup {
		t.Errorf("ParseIntent(Rate) = %q", got)
	}
	if got := ParseIntent("calculation"); got != IntentCalculation {
		t.Errorf("ParseIntent(calculation) = %q", got)
	}
	if got := ParseIntent("haiku"); got != IntentGeneral {
		t.Errorf("ParseIntent(haiku) = %q", got)
	}
}

func TestNewClassification_Invariants(t *testing.T) {
	tests := []struct {
		name  string
		cats  []Category
		want  []Category
		multi bool
	}{
		{"empty falls back to general", nil, []Category{CategoryGeneral}, false},
		{"invalid dropped", []Category{"income_tax"}, []Category{CategoryGeneral}, false},
		{"duplicates dropped", []Category{CategoryLandTax, CategoryLandTax}, []Category{CategoryLandTax}, false},
		{"general dropped beside specific", []Category{CategoryGeneral, CategoryPayrollTax}, []Category{CategoryPayrollTax}, false},
		{"order kept", []Category{CategoryLandTax, CategoryPayrollTax}, []Category{CategoryLandTax, CategoryPayrollTax}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewClassification(tt.cats, IntentGeneral, 0.7)
			if diff := cmp.Diff(tt.want, got.AllCategories); diff != "" {
				t.Errorf("AllCategories mismatch (-want +got):\n%s", diff)
			}
			if got.PrimaryCategory != got.AllCategories[0] {
				t.Errorf("primary %q is not first category", got.PrimaryCategory)
			}
			if got.IsMultiCategory != tt.multi {
				t.Errorf("IsMultiCategory = %v, want %v", got.IsMultiCategory, tt.multi)
			}
		})
	}

	c := NewClassification(nil, "nonsense", 1.7)
	if c.Intent != IntentGeneral || c.Confidence != 1 {
		t.Errorf("got intent %q confidence %v", c.Intent, c.Confidence)
	}
}

func TestNewContextSet(t *testing.T) {
	cs := NewContextSet([]Candidate{
		{SourceID: "a", Score: 0.9},
		{SourceID: "b", Score: 0.8},
		{SourceID: "a", Score: 0.7},
		{SourceID: "", Score: 0.6},
		{SourceID: "c", Score: 0.5},
		{SourceID: "d", Score: 0.4},
	}, 3)

	if diff := cmp.Diff([]string{"a", "b", "c"}, cs.SourceIDs()); diff != "" {
		t.Errorf("SourceIDs mismatch (-want +got):\n%s", diff)
	}
	if c, ok := cs.Get("a"); !ok || c.Score != 0.9 {
		t.Errorf("Get(a) = %+v, %v", c, ok)
	}
	if cs.Contains("d") {
		t.Error("limit not applied")
	}

	var empty ContextSet
	if !empty.IsEmpty() || empty.Len() != 0 {
		t.Error("zero ContextSet should be empty")
	}
	data, _ := json.Marshal(empty)
	if string(data) != "[]" {
		t.Errorf("empty set JSON = %s", data)
	}
}

func TestPipelineResultJSON(t *testing.T) {
	r := PipelineResult{
		Answer:         "ok",
		Confidence:     0.5,
		ApprovalStatus: StatusFlagged,
		ProcessingTime: 2500 * time.Millisecond,
		QueryID:        "q-1",
		ErrorKind:      ErrKindReview,
	}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"citations":[]`, `"categories":[]`, `"processing_time_seconds":2.5`, `"approval_status":"flagged"`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}
	if strings.Contains(s, "q-1") || strings.Contains(s, "review_error") {
		t.Errorf("internal fields leaked: %s", s)
	}

	var back PipelineResult
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.ProcessingTime != r.ProcessingTime || back.ApprovalStatus != r.ApprovalStatus {
		t.Errorf("decoded %+v", back)
	}
}

func TestPipelineResultWire(t *testing.T) {
	r := PipelineResult{
		Answer:         "ok",
		Citations:      []string{"payroll-tax-act-2007/s11"},
		Confidence:     0.8,
		ApprovalStatus: StatusApproved,
		ProcessingTime: 1500 * time.Millisecond,
		QueryID:        "q-2",
	}
	want := ResultWire{
		Answer:                "ok",
		Citations:             []string{"payroll-tax-act-2007/s11"},
		Confidence:            0.8,
		ApprovalStatus:        StatusApproved,
		ProcessingTimeSeconds: 1.5,
		Categories:            []string{},
	}
	if diff := cmp.Diff(want, r.Wire()); diff != "" {
		t.Errorf("wire mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	if got := DefaultConfig().AI.Temperature; got != 0.1 {
		t.Errorf("default temperature = %v, want 0.1", got)
	}

	cfg := DefaultConfig()
	cfg.AI.Provider = "gemini"
	cfg.Pipeline.ApprovalThreshold = 1.5
	cfg.Corpora.Local.Enabled = false
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"ai.provider", "approval_threshold", "at least one corpus"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestPipelineConfigApplyDefaults(t *testing.T) {
	var p PipelineConfig
	p.ApplyDefaults()
	d := DefaultPipelineConfig()
	d.EnableReview = false
	d.MaxCitationIssues = 0 // zero is a valid limit
	if diff := cmp.Diff(d, p); diff != "" {
		t.Errorf("ApplyDefaults mismatch (-want +got):\n%s", diff)
	}
}

func TestNewQuery(t *testing.T) {
	q := NewQuery("  What is land tax?  ", "s")
	if q.ID == "" || q.Question != "What is land tax?" || q.SessionID != "s" {
		t.Errorf("NewQuery = %+v", q)
	}
	if !NewQuery("   ", "").IsEmpty() {
		t.Error("blank question should be empty")
	}
}
