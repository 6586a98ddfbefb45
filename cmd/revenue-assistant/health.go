// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the model backend and every configured corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		report := a.coord.Health(cmd.Context())

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			fmt.Printf("backend  %-10s %s\n", report.Backend, okString(report.BackendOK, ""))
			for _, c := range report.Corpora {
				fmt.Printf("corpus   %-10s %s\n", c.ID, okString(c.OK, c.Error))
			}
			fmt.Printf("review   %v\n", report.ReviewOn)
		}

		if !report.Healthy() {
			return fmt.Errorf("unhealthy")
		}
		return nil
	},
}

func okString(ok bool, detail string) string {
	switch {
	case ok:
		return "ok"
	case detail != "":
		return "FAIL: " + detail
	default:
		return "FAIL"
	}
}

func init() {
	healthCmd.Flags().Bool("json", false, "output the report as JSON")
	rootCmd.AddCommand(healthCmd)
}
