// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit keeps a query log of every PipelineResult in SQLite so
// answers can be traced after the fact. The log stores the question,
// the outcome and the cited source IDs; it never stores passage text.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// Entry is one logged query.
type Entry struct {
	ID             string               `json:"id" yaml:"id"`
	QueryID        string               `json:"query_id" yaml:"query_id"`
	SessionID      string               `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Question       string               `json:"question" yaml:"question"`
	Categories     []string             `json:"categories" yaml:"categories"`
	ApprovalStatus types.ApprovalStatus `json:"approval_status" yaml:"approval_status"`
	Confidence     float64              `json:"confidence" yaml:"confidence"`
	Citations      []string             `json:"citations" yaml:"citations"`
	ErrorKind      types.ErrorKind      `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Degraded       []types.ErrorKind    `json:"degraded,omitempty" yaml:"degraded,omitempty"`
	ProcessingTime time.Duration        `json:"processing_time" yaml:"processing_time"`
	CreatedAt      time.Time            `json:"created_at" yaml:"created_at"`
}

// Log is the SQLite query log.
type Log struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the log at path. ":memory:" is accepted for tests.
func Open(path string) (*Log, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS query_log (
		id              TEXT PRIMARY KEY,
		query_id        TEXT NOT NULL,
		session_id      TEXT,
		question        TEXT NOT NULL,
		categories      TEXT NOT NULL,
		approval_status TEXT NOT NULL,
		confidence      REAL NOT NULL,
		citations       TEXT NOT NULL,
		error_kind      TEXT,
		degraded        TEXT,
		processing_ms   INTEGER NOT NULL,
		created_at      TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating query_log: %w", err)
	}
	return &Log{db: db, now: time.Now}, nil
}

// Close releases the database.
func (l *Log) Close() error { return l.db.Close() }

// Record appends one result to the log.
func (l *Log) Record(ctx context.Context, q types.Query, res types.PipelineResult) error {
	cats, err := json.Marshal(nonNil(res.Categories))
	if err != nil {
		return fmt.Errorf("encoding categories: %w", err)
	}
	cites, err := json.Marshal(nonNil(res.Citations))
	if err != nil {
		return fmt.Errorf("encoding citations: %w", err)
	}
	var degraded any
	if len(res.Degraded) > 0 {
		b, err := json.Marshal(res.Degraded)
		if err != nil {
			return fmt.Errorf("encoding degraded: %w", err)
		}
		degraded = string(b)
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO query_log (id, query_id, session_id, question, categories, approval_status,
			confidence, citations, error_kind, degraded, processing_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		q.ID,
		nullIfEmpty(q.SessionID),
		q.Question,
		string(cats),
		string(res.ApprovalStatus),
		res.Confidence,
		string(cites),
		nullIfEmpty(string(res.ErrorKind)),
		degraded,
		res.ProcessingTime.Milliseconds(),
		l.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording query: %w", err)
	}
	return nil
}

// Recent returns the latest n entries, newest first.
func (l *Log) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, query_id, session_id, question, categories, approval_status, confidence,
			citations, error_kind, degraded, processing_ms, created_at
		 FROM query_log ORDER BY created_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                            Entry
			session, errKind, degraded   sql.NullString
			cats, cites, status, created string
			ms                           int64
		)
		if err := rows.Scan(&e.ID, &e.QueryID, &session, &e.Question, &cats, &status, &e.Confidence,
			&cites, &errKind, &degraded, &ms, &created); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		e.SessionID = session.String
		e.ApprovalStatus = types.ApprovalStatus(status)
		e.ErrorKind = types.ErrorKind(errKind.String)
		e.ProcessingTime = time.Duration(ms) * time.Millisecond
		json.Unmarshal([]byte(cats), &e.Categories)
		json.Unmarshal([]byte(cites), &e.Citations)
		if degraded.Valid {
			json.Unmarshal([]byte(degraded.String), &e.Degraded)
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Counts returns the number of logged queries per approval status.
func (l *Log) Counts(ctx context.Context) (map[types.ApprovalStatus]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT approval_status, count(*) FROM query_log GROUP BY approval_status`)
	if err != nil {
		return nil, fmt.Errorf("counting audit log: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.ApprovalStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		counts[types.ApprovalStatus(status)] = n
	}
	return counts, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
