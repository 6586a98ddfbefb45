// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package legislation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/revenue-assistant/internal/corpus"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// ErrNotFound is returned by Passage for an unknown source ID.
var ErrNotFound = errors.New("passage not found")

const defaultTopK = 8

// Search ranks passages against req.Query with FTS5 bm25. Category
// filtering applies unless the request is for general. Scores are mapped
// into [0,1] by s/(1+s) where s is the negated bm25 rank.
func (s *Store) Search(ctx context.Context, req corpus.Request) ([]types.Candidate, error) {
	match := matchExpression(req.Query)
	if match == "" {
		return nil, nil
	}

	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	var (
		qb   strings.Builder
		args = []any{match}
	)
	qb.WriteString(
		`SELECT p.id, p.title, p.category, p.content, p.url, bm25(passages_fts) AS rank
		FROM passages_fts
		JOIN passages p ON p.rowid = passages_fts.rowid
		WHERE passages_fts MATCH ?`)
	if req.Filtered() {
		qb.WriteString(` AND p.category = ?`)
		args = append(args, string(req.Category))
	}
	qb.WriteString(` ORDER BY rank, p.id LIMIT ?`)
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying legislation index: %w", err)
	}
	defer rows.Close()

	var out []types.Candidate
	for rows.Next() {
		var (
			c        types.Candidate
			title    sql.NullString
			category string
			url      sql.NullString
			rank     float64
		)
		if err := rows.Scan(&c.SourceID, &title, &category, &c.Text, &url, &rank); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		c.Title = title.String
		c.URL = url.String
		c.Category = types.Category(category)
		c.Score = rankScore(rank)
		c.Corpus = types.CorpusLocal
		out = append(out, c)
	}
	return out, rows.Err()
}

// Passage returns the indexed passage with the given source ID.
func (s *Store) Passage(ctx context.Context, id string) (types.Candidate, error) {
	var (
		c        types.Candidate
		title    sql.NullString
		category string
		url      sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, category, content, url FROM passages WHERE id = ?`, id,
	).Scan(&c.SourceID, &title, &category, &c.Text, &url)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Candidate{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return types.Candidate{}, fmt.Errorf("looking up passage: %w", err)
	}
	c.Title = title.String
	c.URL = url.String
	c.Category = types.Category(category)
	c.Corpus = types.CorpusLocal
	return c, nil
}

// matchExpression turns free text into an FTS5 query: each term is quoted
// and the terms are OR-ed so partial matches still rank.
func matchExpression(text string) string {
	terms := corpus.Tokenize(text)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// rankScore maps a bm25 rank (lower is better, usually negative) into [0,1].
func rankScore(rank float64) float64 {
	s := -rank
	if s <= 0 {
		return 0
	}
	return s / (1 + s)
}
