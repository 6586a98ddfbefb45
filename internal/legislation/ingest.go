// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package legislation

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/revenue-assistant/pkg/types"
)

// Act is one legislation source file: an act (or guideline) and its
// sections.
type Act struct {
	// ID is the stable slug used to build passage IDs (e.g. "payroll-tax-act-2007").
	ID string `yaml:"id"`

	// Name is the act's title (e.g. "Payroll Tax Act 2007").
	Name string `yaml:"act"`

	Category types.Category `yaml:"category"`
	URL      string         `yaml:"url,omitempty"`
	Sections []Section      `yaml:"sections"`
}

// Section is one passage of an act.
type Section struct {
	Number string `yaml:"number"`
	Title  string `yaml:"title,omitempty"`
	Text   string `yaml:"text"`
	URL    string `yaml:"url,omitempty"`
}

// PassageID returns the source ID for a section, e.g.
// "payroll-tax-act-2007/s11".
func PassageID(actID, number string) string {
	return actID + "/s" + strings.TrimPrefix(strings.ToLower(number), "s")
}

// validate returns every problem with the act.
func (a Act) validate() []string {
	var problems []string
	if a.ID == "" {
		problems = append(problems, "missing id")
	}
	if a.Name == "" {
		problems = append(problems, "missing act name")
	}
	if !a.Category.Valid() {
		problems = append(problems, fmt.Sprintf("unknown category %q", a.Category))
	}
	seen := make(map[string]bool)
	for i, sec := range a.Sections {
		if sec.Number == "" {
			problems = append(problems, fmt.Sprintf("section %d: missing number", i))
			continue
		}
		if strings.TrimSpace(sec.Text) == "" {
			problems = append(problems, fmt.Sprintf("section %s: empty text", sec.Number))
		}
		if seen[sec.Number] {
			problems = append(problems, fmt.Sprintf("section %s: duplicate number", sec.Number))
		}
		seen[sec.Number] = true
	}
	return problems
}

// IngestSummary holds counts from an indexing run.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of files processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Ingest reads *.yaml and *.yml act files from dir and indexes their
// sections. Files unchanged since the last run are skipped; changed files
// replace their previous passages. Progress is written to w.
func (s *Store) Ingest(ctx context.Context, dir string, w io.Writer) (IngestSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("reading legislation directory %s: %w", dir, err)
	}

	var summary IngestSummary
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		name := entry.Name()
		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var stored string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM indexing_status WHERE source_file = ?`, name,
		).Scan(&stored)
		if err == nil && stored == modTime {
			fmt.Fprintf(w, "skipped %s\n", name)
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		act, err := readAct(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		if err := s.ingestAct(ctx, name, act, modTime); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d sections)\n", name, len(act.Sections))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexed %s (%d sections)\n", name, len(act.Sections))
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)
	return summary, nil
}

func readAct(path string) (Act, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Act{}, err
	}
	var act Act
	if err := yaml.Unmarshal(data, &act); err != nil {
		return Act{}, fmt.Errorf("parse error: %w", err)
	}
	if problems := act.validate(); len(problems) > 0 {
		return Act{}, fmt.Errorf("invalid act: %s", strings.Join(problems, "; "))
	}
	return act, nil
}

func (s *Store) ingestAct(ctx context.Context, sourceFile string, act Act, modTime string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE source_file = ?`, sourceFile); err != nil {
		return fmt.Errorf("deleting old passages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO passages (id, act, section, title, category, content, url, source_file)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, sec := range act.Sections {
		url := sec.URL
		if url == "" {
			url = act.URL
		}
		title := fmt.Sprintf("%s s %s", act.Name, sec.Number)
		if sec.Title != "" {
			title += " " + sec.Title
		}
		_, err := stmt.ExecContext(ctx,
			PassageID(act.ID, sec.Number), act.Name, sec.Number, title,
			string(act.Category), strings.TrimSpace(sec.Text), url, sourceFile,
		)
		if err != nil {
			return fmt.Errorf("inserting section %s: %w", sec.Number, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO indexing_status (source_file, file_mod_time) VALUES (?, ?)
		 ON CONFLICT(source_file) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
		sourceFile, modTime,
	)
	if err != nil {
		return fmt.Errorf("updating indexing status: %w", err)
	}
	return tx.Commit()
}
