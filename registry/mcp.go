// CLAUDE:SUMMARY Registers registry MCP tools: search, statistics, transfers, verify.
package registry

import (
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/masukame/kit"
)

// RegisterMCP registers the registry tools on an MCP server.
func (c *Client) RegisterMCP(srv *mcp.Server) {
	eps := c.Endpoints()
	for _, t := range mcpTools() {
		ep := kit.Chain(kit.Logging(c.logger.With(slog.String("component", "registry")), t.Name))(eps[t.Name])
		name := t.Name
		kit.RegisterMCPTool(srv, t, ep, func() any { return newRequest(name) })
	}
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func mcpTools() []*mcp.Tool {
	return []*mcp.Tool{
		{
			Name:        "registry_search",
			Description: "Find a sculpture by serial number (e.g. 1 or 001) or token id. Returns {sculpture: null} when nothing matches.",
			InputSchema: inputSchema(map[string]any{
				"query": map[string]any{"type": "string", "description": "Serial number or token id"},
			}, []string{"query"}),
		},
		{
			Name:        "registry_statistics",
			Description: "Registry aggregates: minted, transfers, separated ownership, distinct locations.",
			InputSchema: inputSchema(map[string]any{}, nil),
		},
		{
			Name:        "registry_transfers",
			Description: "Ownership transfer history of a token, oldest first.",
			InputSchema: inputSchema(map[string]any{
				"tokenId": map[string]any{"type": "string", "description": "Token id"},
			}, []string{"tokenId"}),
		},
		{
			Name:        "registry_verify",
			Description: "Check that a wallet address owns a token.",
			InputSchema: inputSchema(map[string]any{
				"tokenId":       map[string]any{"type": "string", "description": "Token id"},
				"walletAddress": map[string]any{"type": "string", "description": "0x-prefixed wallet address"},
			}, []string{"tokenId", "walletAddress"}),
		},
	}
}
