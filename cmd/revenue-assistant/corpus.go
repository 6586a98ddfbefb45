// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/revenue-assistant/internal/corpus"
	"github.com/pdiddy/revenue-assistant/pkg/types"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the local legislation index (load, search)",
	Long: `Corpus manages the SQLite legislation index used as the local corpus.
Use subcommands to ingest legislation YAML files or search the index.`,
}

// --- load subcommand ---

var corpusLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Index legislation YAML files into the local corpus",
	Long: `Load reads act files from the legislation directory and indexes every
section with FTS5. Unchanged files are skipped on subsequent runs.`,
	RunE: runCorpusLoad,
}

func runCorpusLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.Corpora.Local.SourceDir
	}

	store, err := openLocal(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Ingest(cmd.Context(), dir, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d file(s) failed indexing", summary.Failed)
	}
	return nil
}

// --- search subcommand ---

var corpusSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the local legislation index",
	Long: `Search runs a full-text query against the local legislation index and
lists the matching sections with their scores.

Use --trace with a source ID to print the full section text.`,
	RunE: runCorpusSearch,
}

func runCorpusSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openLocal(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if traceID, _ := cmd.Flags().GetString("trace"); traceID != "" {
		c, err := store.Passage(cmd.Context(), traceID)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n%s\n\n%s\n", c.Title, c.URL, c.Text)
		return nil
	}

	query := strings.Join(args, " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query required: provide search terms or --trace")
	}
	req := corpus.Request{Query: query}
	req.TopK, _ = cmd.Flags().GetInt("limit")
	if c, _ := cmd.Flags().GetString("category"); c != "" {
		cat, ok := types.ParseCategory(c)
		if !ok {
			return fmt.Errorf("unknown category %q", c)
		}
		req.Category = cat
	}

	results, err := store.Search(cmd.Context(), req)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return formatCandidates(results)
}

func formatCandidates(results []types.Candidate) error {
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-5s  %-36s  %-20s  %s\n", "Rank", "Score", "Source", "Category", "Title")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for i, r := range results {
		id := r.SourceID
		if len(id) > 36 {
			id = id[:33] + "..."
		}
		title := r.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %.2f   %-36s  %-20s  %s\n", i+1, r.Score, id, r.Category, title)
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- stats subcommand ---

var corpusStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number of indexed sections",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openLocal(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%d sections indexed in %s\n", n, cfg.Corpora.Local.DBPath)
		return nil
	},
}

func init() {
	corpusLoadCmd.Flags().String("dir", "", "legislation directory (default: corpora.local.source_dir)")

	corpusSearchCmd.Flags().String("category", "", "filter by category")
	corpusSearchCmd.Flags().Int("limit", 10, "maximum results")
	corpusSearchCmd.Flags().String("trace", "", "print the full text of a source ID")
	corpusSearchCmd.Flags().Bool("json", false, "output results as JSON")

	corpusCmd.AddCommand(corpusLoadCmd)
	corpusCmd.AddCommand(corpusSearchCmd)
	corpusCmd.AddCommand(corpusStatsCmd)

	rootCmd.AddCommand(corpusCmd)
}
