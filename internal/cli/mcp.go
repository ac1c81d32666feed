package cli

import (
	"github.com/spf13/cobra"

	"docrag/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server over stdio.

The server exposes the tools ask, search and list_documents. Logs go to
stderr so stdout carries only JSON-RPC.

Client configuration:
  {
    "mcpServers": {
      "docrag": {
        "command": "/path/to/ragctl",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	server, err := mcpserver.NewServer(&mcpserver.Ports{
		Answers:   s.Answers,
		Search:    s.Search,
		Documents: s.Documents,
	})
	if err != nil {
		return err
	}
	return server.Run(cmd.Context())
}
