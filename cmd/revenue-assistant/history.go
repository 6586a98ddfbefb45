// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/revenue-assistant/internal/audit"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent queries from the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Audit.Enabled {
			return fmt.Errorf("audit log is disabled: set audit.enabled")
		}
		l, err := audit.Open(cfg.Audit.DBPath)
		if err != nil {
			return err
		}
		defer l.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := l.Recent(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No queries logged.")
			return nil
		}
		for _, e := range entries {
			q := e.Question
			if len(q) > 60 {
				q = q[:57] + "..."
			}
			fmt.Printf("%s  %-8s  %.2f  %-30s  %s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.ApprovalStatus, e.Confidence,
				strings.Join(e.Categories, ","), q)
		}

		counts, err := l.Counts(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("\napproved %d, flagged %d, error %d\n", counts["approved"], counts["flagged"], counts["error"])
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of entries to show")
	historyCmd.Flags().Bool("json", false, "output entries as JSON")
	rootCmd.AddCommand(historyCmd)
}
