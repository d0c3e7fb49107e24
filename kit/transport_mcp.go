package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/masukame/idgen"
)

var mcpTraceID = idgen.Prefixed("mcp_", idgen.Default)

// RegisterMCPTool exposes endpoint as an MCP tool. Tool arguments are
// decoded into the value returned by newRequest (a pointer); nil means the
// endpoint takes no request. Decode and endpoint failures become tool
// errors, never protocol errors. Calls carry transport "mcp" and a fresh
// trace id.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, newRequest func() any) {
	srv.AddTool(tool, func(ctx context.Context, call *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req any
		if newRequest != nil {
			req = newRequest()
			if args := call.Params.Arguments; len(args) > 0 && string(args) != "null" {
				if err := json.Unmarshal(args, req); err != nil {
					return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
				}
			}
		}

		ctx = WithTraceID(WithTransport(ctx, "mcp"), mcpTraceID())
		resp, err := endpoint(ctx, req)
		if err != nil {
			return toolError(err), nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
