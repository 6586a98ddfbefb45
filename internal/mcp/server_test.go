package mcp_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pdiddy/revenue-assistant/internal/corpus"
	"github.com/pdiddy/revenue-assistant/internal/logging"
	"github.com/pdiddy/revenue-assistant/internal/mcp"
	"github.com/pdiddy/revenue-assistant/internal/pipeline"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

type stubPipeline struct {
	gotQuestion string
	gotOpts     pipeline.Options
	result      types.PipelineResult
}

func (p *stubPipeline) Answer(_ context.Context, question string, opts pipeline.Options) types.PipelineResult {
	p.gotQuestion = question
	p.gotOpts = opts
	return p.result
}

func (p *stubPipeline) DefaultOptions() pipeline.Options {
	return pipeline.Options{EnableReview: true}
}

func (p *stubPipeline) Health(context.Context) pipeline.HealthReport {
	return pipeline.HealthReport{
		Backend:   "claude",
		BackendOK: true,
		ReviewOn:  true,
		Corpora: []pipeline.CorpusHealth{
			{ID: types.CorpusLocal, OK: true},
			{ID: types.CorpusExternal, OK: false, Error: "connection refused"},
		},
	}
}

func testCorpus() corpus.Corpus {
	return corpus.NewBulk([]corpus.Record{
		{ID: "payroll-tax-act-2007/s11", Title: "Payroll Tax Act 2007 s 11", Category: types.CategoryPayrollTax,
			Text: "The rate of payroll tax is 5.45 per cent of taxable wages."},
		{ID: "land-tax-act-1956/s9", Title: "Land Tax Act 1956 s 9", Category: types.CategoryLandTax,
			Text: "Land tax is charged on the taxable value of land owned at midnight on 31 December."},
	})
}

func connectInMemory(t *testing.T, ctx context.Context, srv *mcp.Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	if _, err := srv.MCPServer.Connect(ctx, t1, nil); err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any, out any) {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if res.IsError {
		t.Fatalf("CallTool(%s) returned error: %s", name, toolText(res))
	}
	if err := json.Unmarshal([]byte(toolText(res)), out); err != nil {
		t.Fatalf("unmarshal tool result: %v", err)
	}
}

func callToolExpectError(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return err.Error()
	}
	if !res.IsError {
		t.Fatalf("CallTool(%s): expected error, got success", name)
	}
	return toolText(res)
}

func toolText(res *sdkmcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestServer_ToolDiscovery(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, mcp.NewServer(&stubPipeline{}, testCorpus(), "test", logging.Discard()))

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"answer", "search_legislation", "health"} {
		if !names[want] {
			t.Errorf("tool %q not registered", want)
		}
	}
}

func TestServer_NoSearchCorpus(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, mcp.NewServer(&stubPipeline{}, nil, "test", logging.Discard()))

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	for _, tool := range tools.Tools {
		if tool.Name == "search_legislation" {
			t.Error("search_legislation registered without a corpus")
		}
	}
}

func TestServer_Answer(t *testing.T) {
	ctx := context.Background()
	p := &stubPipeline{result: types.PipelineResult{
		Answer:         "Payroll tax is 5.45% [doc:payroll-tax-act-2007/s11].",
		Citations:      []string{"payroll-tax-act-2007/s11"},
		Confidence:     0.8,
		ApprovalStatus: types.StatusApproved,
		ProcessingTime: 1500 * time.Millisecond,
		Categories:     []string{"payroll_tax"},
	}}
	session := connectInMemory(t, ctx, mcp.NewServer(p, nil, "test", logging.Discard()))

	var out types.ResultWire
	callTool(t, ctx, session, "answer", map[string]any{
		"question":  "What is the payroll tax rate?",
		"category":  "payroll",
		"no_review": true,
	}, &out)

	if p.gotQuestion != "What is the payroll tax rate?" {
		t.Errorf("question = %q", p.gotQuestion)
	}
	if p.gotOpts.EnableReview {
		t.Error("no_review did not disable review")
	}
	if p.gotOpts.CategoryFilter != types.CategoryPayrollTax {
		t.Errorf("category filter = %q, want payroll_tax", p.gotOpts.CategoryFilter)
	}
	if out.ApprovalStatus != "approved" || out.Confidence != 0.8 || out.ProcessingTimeSeconds != 1.5 {
		t.Errorf("unexpected output %+v", out)
	}
	if len(out.Citations) != 1 || out.Citations[0] != "payroll-tax-act-2007/s11" {
		t.Errorf("citations = %v", out.Citations)
	}
}

func TestServer_AnswerMatchesCLIJSON(t *testing.T) {
	ctx := context.Background()
	res := types.PipelineResult{
		Answer:         "I could not find enough information.",
		Confidence:     0.1,
		ApprovalStatus: types.StatusFlagged,
		ProcessingTime: 250 * time.Millisecond,
	}
	session := connectInMemory(t, ctx, mcp.NewServer(&stubPipeline{result: res}, nil, "test", logging.Discard()))

	var got map[string]any
	callTool(t, ctx, session, "answer", map[string]any{"question": "q"}, &got)

	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var want map[string]any
	if err := json.Unmarshal(raw, &want); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tool output differs from CLI JSON (-want +got):\n%s", diff)
	}
}

func TestServer_AnswerUnknownCategory(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, mcp.NewServer(&stubPipeline{}, nil, "test", logging.Discard()))

	msg := callToolExpectError(t, ctx, session, "answer", map[string]any{"question": "q", "category": "income_tax"})
	if !strings.Contains(msg, "unknown category") {
		t.Errorf("error = %q", msg)
	}
}

func TestServer_SearchLegislation(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, mcp.NewServer(&stubPipeline{}, testCorpus(), "test", logging.Discard()))

	var out struct {
		Passages []struct {
			SourceID string  `json:"source_id"`
			Category string  `json:"category"`
			Score    float64 `json:"score"`
		} `json:"passages"`
	}
	callTool(t, ctx, session, "search_legislation", map[string]any{"query": "payroll tax rate wages"}, &out)

	if len(out.Passages) == 0 {
		t.Fatal("no passages returned")
	}
	if out.Passages[0].SourceID != "payroll-tax-act-2007/s11" {
		t.Errorf("top passage = %s", out.Passages[0].SourceID)
	}
	if out.Passages[0].Score <= 0 || out.Passages[0].Score > 1 {
		t.Errorf("score %v out of range", out.Passages[0].Score)
	}

	msg := callToolExpectError(t, ctx, session, "search_legislation", map[string]any{"query": "  "})
	if !strings.Contains(msg, "query is required") {
		t.Errorf("error = %q", msg)
	}
}

func TestServer_Health(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, mcp.NewServer(&stubPipeline{}, nil, "test", logging.Discard()))

	var out struct {
		Healthy bool `json:"healthy"`
		Corpora []struct {
			ID    string `json:"id"`
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		} `json:"corpora"`
	}
	callTool(t, ctx, session, "health", map[string]any{}, &out)

	if !out.Healthy {
		t.Error("expected healthy with one corpus up")
	}
	if len(out.Corpora) != 2 || out.Corpora[1].Error != "connection refused" {
		t.Errorf("corpora = %+v", out.Corpora)
	}
}
