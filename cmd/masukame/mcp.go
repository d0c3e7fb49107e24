package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

// newMCPCmd serves the registry tools over stdio. Logs go to stderr so
// stdout stays a clean JSON-RPC stream.
func newMCPCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the registry as MCP tools on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := registryClient(g)
			if err != nil {
				return err
			}
			defer c.Destroy()
			srv := mcp.NewServer(&mcp.Implementation{Name: "masukame-registry", Version: "1.0.0"}, nil)
			c.RegisterMCP(srv)
			return srv.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
