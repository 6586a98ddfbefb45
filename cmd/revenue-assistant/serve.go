// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pdiddy/revenue-assistant/internal/corpus"
	"github.com/pdiddy/revenue-assistant/internal/logging"
	mcpserver "github.com/pdiddy/revenue-assistant/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Serve starts an MCP server over stdin/stdout exposing the answer,
search_legislation and health tools. Logs go to stderr.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	var search corpus.Corpus
	if a.local != nil {
		search = a.local
	}
	srv := mcpserver.NewServer(a.coord, search, version, nil)

	logging.New("mcp").Info("starting revenue-assistant MCP server over stdio")
	return srv.MCPServer.Run(cmd.Context(), &sdkmcp.StdioTransport{})
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
