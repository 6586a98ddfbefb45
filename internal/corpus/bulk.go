// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// Record is one entry of the bulk reference dataset: rulings, rate tables
// and worked examples.
type Record struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Text     string `json:"text" yaml:"text"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	Category string `json:"category" yaml:"category"`
}

// Bulk is an in-memory TF-IDF index over the reference dataset. It is
// built once and safe for concurrent searches.
type Bulk struct {
	docs  []bulkDoc
	idf   map[string]float64
	byCat map[types.Category][]int
}

type bulkDoc struct {
	cand    types.Candidate
	weights map[string]float64
	norm    float64
}

// LoadBulk reads a dataset from path. The format follows the extension:
// .jsonl (one record per line), .json (an array) or .yaml/.yml (a list).
func LoadBulk(path string) (*Bulk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bulk dataset: %w", err)
	}

	var records []Record
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jsonl", ".ndjson":
		records, err = parseJSONL(data)
	case ".json":
		err = json.Unmarshal(data, &records)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &records)
	default:
		return nil, fmt.Errorf("unsupported bulk dataset format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return NewBulk(records), nil
}

func parseJSONL(data []byte) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(text, &r); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, r)
	}
	return records, sc.Err()
}

// NewBulk indexes records. Records without an ID or text are skipped;
// later duplicates of an ID are ignored.
func NewBulk(records []Record) *Bulk {
	b := &Bulk{
		idf:   make(map[string]float64),
		byCat: make(map[types.Category][]int),
	}

	seen := make(map[string]bool)
	var termCounts []map[string]int
	df := make(map[string]int)
	for _, r := range records {
		if r.ID == "" || strings.TrimSpace(r.Text) == "" || seen[r.ID] {
			continue
		}
		seen[r.ID] = true

		cat, ok := types.ParseCategory(r.Category)
		if !ok {
			cat = types.CategoryGeneral
		}
		counts := make(map[string]int)
		for _, t := range Terms(r.Title + " " + r.Text) {
			counts[t]++
		}
		for t := range counts {
			df[t]++
		}
		termCounts = append(termCounts, counts)

		b.byCat[cat] = append(b.byCat[cat], len(b.docs))
		b.docs = append(b.docs, bulkDoc{cand: types.Candidate{
			SourceID: r.ID,
			Category: cat,
			Title:    r.Title,
			Text:     r.Text,
			URL:      r.URL,
			Corpus:   types.CorpusBulk,
		}})
	}

	n := float64(len(b.docs))
	for t, d := range df {
		b.idf[t] = math.Log(1+n/float64(d))
	}
	for i, counts := range termCounts {
		w := make(map[string]float64, len(counts))
		var norm float64
		for t, c := range counts {
			v := (1 + math.Log(float64(c))) * b.idf[t]
			w[t] = v
			norm += v * v
		}
		b.docs[i].weights = w
		b.docs[i].norm = math.Sqrt(norm)
	}
	return b
}

// ID identifies this corpus to the orchestrator.
func (b *Bulk) ID() types.CorpusID { return types.CorpusBulk }

// Len returns the number of indexed records.
func (b *Bulk) Len() int { return len(b.docs) }

// Search ranks records by cosine similarity between TF-IDF vectors.
// Records with no shared terms are not returned.
func (b *Bulk) Search(ctx context.Context, req Request) ([]types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qCounts := make(map[string]int)
	for _, t := range Terms(req.Query) {
		if _, known := b.idf[t]; known {
			qCounts[t]++
		}
	}
	if len(qCounts) == 0 {
		return nil, nil
	}
	qWeights := make(map[string]float64, len(qCounts))
	var qNorm float64
	for t, c := range qCounts {
		v := (1 + math.Log(float64(c))) * b.idf[t]
		qWeights[t] = v
		qNorm += v * v
	}
	qNorm = math.Sqrt(qNorm)

	pool := b.pool(req)
	var hits []types.Candidate
	for _, i := range pool {
		d := b.docs[i]
		if d.norm == 0 {
			continue
		}
		var dot float64
		for t, qv := range qWeights {
			dot += qv * d.weights[t]
		}
		if dot <= 0 {
			continue
		}
		c := d.cand
		c.Score = clamp01(dot / (qNorm * d.norm))
		hits = append(hits, c)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].SourceID < hits[j].SourceID
	})

	topK := req.TopK
	if topK <= 0 {
		topK = 8
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// pool returns the document indexes a request may match. A category
// filter keeps general records as well.
func (b *Bulk) pool(req Request) []int {
	if !req.Filtered() {
		all := make([]int, len(b.docs))
		for i := range all {
			all[i] = i
		}
		return all
	}
	out := append([]int(nil), b.byCat[req.Category]...)
	return append(out, b.byCat[types.CategoryGeneral]...)
}
