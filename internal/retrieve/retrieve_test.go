// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/revenue-assistant/internal/corpus"
	"github.com/pdiddy/revenue-assistant/internal/logging"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// mockCorpus returns fixed candidates per category.
type mockCorpus struct {
	id      types.CorpusID
	byCat   map[types.Category][]types.Candidate
	err     error
	delay   time.Duration
	mu      sync.Mutex
	queries []corpus.Request
}

func (m *mockCorpus) ID() types.CorpusID { return m.id }

func (m *mockCorpus) Search(ctx context.Context, req corpus.Request) ([]types.Candidate, error) {
	m.mu.Lock()
	m.queries = append(m.queries, req)
	m.mu.Unlock()
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.byCat[req.Category], nil
}

func cand(id string, cat types.Category, corpusID types.CorpusID, score float64) types.Candidate {
	return types.Candidate{SourceID: id, Category: cat, Text: id + " text", Score: score, Corpus: corpusID}
}

func classification(cats ...types.Category) types.ClassificationResult {
	return types.NewClassification(cats, types.IntentGeneral, 0.9)
}

func ids(cs types.ContextSet) []string { return cs.SourceIDs() }

func TestNormalize(t *testing.T) {
	got := Normalize([]types.Candidate{
		{SourceID: "a", Score: 12}, {SourceID: "b", Score: 7}, {SourceID: "c", Score: 2},
	})
	scores := []float64{got[0].Score, got[1].Score, got[2].Score}
	if diff := cmp.Diff([]float64{1, 0.5, 0}, scores); diff != "" {
		t.Errorf("scores mismatch (-want +got):\n%s", diff)
	}

	flat := Normalize([]types.Candidate{{SourceID: "a", Score: 0.4}, {SourceID: "b", Score: 0.4}})
	assert.Equal(t, 0.4, flat[0].Score)
	assert.Equal(t, 0.4, flat[1].Score)

	assert.Equal(t, 1.0, Normalize([]types.Candidate{{SourceID: "a", Score: 3}})[0].Score)
	assert.Empty(t, Normalize(nil))
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := []types.Candidate{{SourceID: "a", Score: 5}, {SourceID: "b", Score: 1}}
	Normalize(in)
	assert.Equal(t, 5.0, in[0].Score)
}

func TestMerge_MaxWinsAndTieBreak(t *testing.T) {
	local := []types.Candidate{cand("x", types.CategoryLandTax, types.CorpusLocal, 0.5), cand("b", types.CategoryLandTax, types.CorpusLocal, 0.7)}
	external := []types.Candidate{cand("x", types.CategoryLandTax, types.CorpusExternal, 0.9), cand("a", types.CategoryLandTax, types.CorpusExternal, 0.7)}
	bulk := []types.Candidate{cand("c", types.CategoryLandTax, types.CorpusBulk, 0.7)}

	got := Merge([][]types.Candidate{local, external, bulk}, []int{0, 1, 2})
	var order []string
	for _, c := range got {
		order = append(order, c.SourceID)
	}
	if diff := cmp.Diff([]string{"x", "b", "a", "c"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, types.CorpusExternal, got[0].Corpus, "max score copy should win")
	assert.Equal(t, 0.9, got[0].Score)
}

func TestMerge_EqualScoreKeepsEarlierSource(t *testing.T) {
	got := Merge([][]types.Candidate{
		{cand("x", types.CategoryGeneral, types.CorpusBulk, 0.6)},
		{cand("x", types.CategoryGeneral, types.CorpusLocal, 0.6)},
	}, []int{2, 0})
	require.Len(t, got, 1)
	assert.Equal(t, types.CorpusLocal, got[0].Corpus)
}

func TestRetrieve_MultiCategoryFanOut(t *testing.T) {
	local := &mockCorpus{id: types.CorpusLocal, byCat: map[types.Category][]types.Candidate{
		types.CategoryPayrollTax: {cand("pt/s11", types.CategoryPayrollTax, types.CorpusLocal, -1), cand("pt/s6", types.CategoryPayrollTax, types.CorpusLocal, -3)},
		types.CategoryLandTax:    {cand("lt/s9", types.CategoryLandTax, types.CorpusLocal, 8), cand("lt/s3", types.CategoryLandTax, types.CorpusLocal, 4)},
	}}
	bulk := &mockCorpus{id: types.CorpusBulk, byCat: map[types.Category][]types.Candidate{
		types.CategoryParkingSpaceLevy: {cand("psl-rates", types.CategoryParkingSpaceLevy, types.CorpusBulk, 0.3)},
	}}

	o := New([]Source{{Corpus: local}, {Corpus: bulk}}, 5, 2, logging.Discard())
	cls := classification(types.CategoryPayrollTax, types.CategoryLandTax, types.CategoryParkingSpaceLevy)
	out := o.Retrieve(context.Background(), cls, "wages land parking", 10)

	assert.Equal(t, 6, out.Calls)
	assert.False(t, out.PartialFailure())
	assert.Equal(t, 5, out.Context.Len())
	assert.ElementsMatch(t, []string{"pt/s11", "pt/s6", "lt/s9", "lt/s3", "psl-rates"}, ids(out.Context))

	// Normalized tops tie at 1.0 and break by SourceID; the single bulk hit keeps its raw score.
	if diff := cmp.Diff([]string{"lt/s9", "pt/s11", "psl-rates"}, ids(out.Context)[:3]); diff != "" {
		t.Errorf("top order mismatch (-want +got):\n%s", diff)
	}

	for _, q := range local.queries {
		assert.Equal(t, 5, q.TopK)
		assert.Equal(t, "wages land parking", q.Query)
	}
}

func TestRetrieve_TruncatesToLimit(t *testing.T) {
	var many []types.Candidate
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		many = append(many, cand(id, types.CategoryGeneral, types.CorpusLocal, float64(len(many))))
	}
	local := &mockCorpus{id: types.CorpusLocal, byCat: map[types.Category][]types.Candidate{types.CategoryGeneral: many}}
	o := New([]Source{{Corpus: local}}, 0, 0, logging.Discard())

	out := o.Retrieve(context.Background(), classification(), "q", 0)
	assert.Equal(t, DefaultLimit, out.Context.Len())
	assert.Equal(t, "h", ids(out.Context)[0])
}

func TestRetrieve_PartialFailure(t *testing.T) {
	local := &mockCorpus{id: types.CorpusLocal, byCat: map[types.Category][]types.Candidate{
		types.CategoryLandTax: {cand("lt/s9", types.CategoryLandTax, types.CorpusLocal, 0.8)},
	}}
	external := &mockCorpus{id: types.CorpusExternal, err: errors.New("connection refused")}

	o := New([]Source{{Corpus: local}, {Corpus: external}}, 5, 4, logging.Discard())
	out := o.Retrieve(context.Background(), classification(types.CategoryLandTax), "land tax", 6)

	assert.True(t, out.PartialFailure())
	require.Len(t, out.CorpusErrors, 1)
	assert.Contains(t, out.CorpusErrors[0], "external/land_tax")
	assert.Equal(t, []string{"lt/s9"}, ids(out.Context))
}

func TestRetrieve_AllCorporaFail(t *testing.T) {
	fail := errors.New("down")
	o := New([]Source{
		{Corpus: &mockCorpus{id: types.CorpusLocal, err: fail}},
		{Corpus: &mockCorpus{id: types.CorpusExternal, err: fail}},
		{Corpus: &mockCorpus{id: types.CorpusBulk, err: fail}},
	}, 5, 4, logging.Discard())

	out := o.Retrieve(context.Background(), classification(types.CategoryPayrollTax), "payroll", 6)
	assert.True(t, out.Context.IsEmpty())
	assert.Len(t, out.CorpusErrors, 3)
}

func TestRetrieve_PerCorpusTimeout(t *testing.T) {
	slow := &mockCorpus{id: types.CorpusExternal, delay: time.Second, byCat: map[types.Category][]types.Candidate{
		types.CategoryGeneral: {cand("slow", types.CategoryGeneral, types.CorpusExternal, 1)},
	}}
	fast := &mockCorpus{id: types.CorpusLocal, byCat: map[types.Category][]types.Candidate{
		types.CategoryGeneral: {cand("fast", types.CategoryGeneral, types.CorpusLocal, 1)},
	}}
	o := New([]Source{{Corpus: fast}, {Corpus: slow, Timeout: 10 * time.Millisecond}}, 5, 4, logging.Discard())

	start := time.Now()
	out := o.Retrieve(context.Background(), classification(), "anything", 6)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, []string{"fast"}, ids(out.Context))
	require.Len(t, out.CorpusErrors, 1)
	assert.Contains(t, out.CorpusErrors[0], "deadline exceeded")
}

func TestRetrieve_Deterministic(t *testing.T) {
	local := &mockCorpus{id: types.CorpusLocal, byCat: map[types.Category][]types.Candidate{
		types.CategoryGeneral: {cand("b", types.CategoryGeneral, types.CorpusLocal, 0.5), cand("a", types.CategoryGeneral, types.CorpusLocal, 0.5)},
	}}
	bulk := &mockCorpus{id: types.CorpusBulk, byCat: map[types.Category][]types.Candidate{
		types.CategoryGeneral: {cand("a", types.CategoryGeneral, types.CorpusBulk, 0.5), cand("c", types.CategoryGeneral, types.CorpusBulk, 0.5)},
	}}
	o := New([]Source{{Corpus: local}, {Corpus: bulk}}, 5, 4, logging.Discard())

	first := o.Retrieve(context.Background(), classification(), "q", 6)
	for range 10 {
		again := o.Retrieve(context.Background(), classification(), "q", 6)
		assert.Equal(t, ids(first.Context), ids(again.Context))
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids(first.Context))
	c, _ := first.Context.Get("a")
	assert.Equal(t, types.CorpusLocal, c.Corpus)
}
