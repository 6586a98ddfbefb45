// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/revenue-assistant/pkg/types"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a tax question",
	Long: `Ask runs the question through classification, retrieval, generation and
review, then prints the answer with its citations, confidence and approval
status. Flagged answers should be checked before use; errored results carry
a user-facing message.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	opts := a.coord.DefaultOptions()
	if noReview, _ := cmd.Flags().GetBool("no-review"); noReview {
		opts.EnableReview = false
	}
	if c, _ := cmd.Flags().GetString("category"); c != "" {
		cat, ok := types.ParseCategory(c)
		if !ok {
			return fmt.Errorf("unknown category %q", c)
		}
		opts.CategoryFilter = cat
	}

	res := a.coord.Answer(cmd.Context(), strings.Join(args, " "), opts)

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatResult(os.Stdout, res, jsonOutput)
}

func formatResult(w io.Writer, res types.PipelineResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintln(w, res.Answer)
	fmt.Fprintln(w)
	if len(res.Citations) > 0 {
		fmt.Fprintln(w, "Sources:")
		for _, c := range res.Citations {
			fmt.Fprintf(w, "  - %s\n", c)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Status:     %s\n", res.ApprovalStatus)
	fmt.Fprintf(w, "Confidence: %.2f\n", res.Confidence)
	fmt.Fprintf(w, "Categories: %s\n", strings.Join(res.Categories, ", "))
	if res.ErrorKind != types.ErrKindNone {
		fmt.Fprintf(w, "Error:      %s\n", res.ErrorKind)
	}
	if res.Verdict != nil {
		for _, issue := range append(res.Verdict.CitationIssues, res.Verdict.CompletenessIssues...) {
			fmt.Fprintf(w, "Issue:      %s\n", issue)
		}
	}
	fmt.Fprintf(w, "Time:       %.2fs\n", res.ProcessingTime.Seconds())
	return nil
}

func init() {
	askCmd.Flags().Bool("no-review", false, "skip the review stage (results are flagged)")
	askCmd.Flags().String("category", "", "restrict retrieval to one category, e.g. payroll_tax")
	askCmd.Flags().Bool("json", false, "output the result as JSON")

	rootCmd.AddCommand(askCmd)
}
