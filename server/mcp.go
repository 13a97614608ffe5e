package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/farmshift/kit"
)

// RegisterMCP exposes rewrite, lookup and the provider list as MCP tools.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "farmshift_rewrite",
		Description: "Rewrite legacy wiki results on a search results page. Pass the page html, or a url to fetch.",
		InputSchema: kit.InputSchema(map[string]any{
			"provider": map[string]any{"type": "string", "description": "Search provider id (google, ddg)"},
			"html":     map[string]any{"type": "string", "description": "Page markup"},
			"url":      map[string]any{"type": "string", "description": "Page URL, fetched when html is empty"},
			"format":   map[string]any{"type": "string", "enum": formats},
		}, []string{"provider"}),
	}, s.rewrite, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args, err := kit.DecodeArgs[RewriteRequest](req)
		if err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: args}, nil
	})

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "farmshift_lookup",
		Description: "Find the catalog site a legacy wiki URL belongs to and its canonical address.",
		InputSchema: kit.InputSchema(map[string]any{
			"url": map[string]any{"type": "string"},
		}, []string{"url"}),
	}, s.lookup, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args, err := kit.DecodeArgs[LookupRequest](req)
		if err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: args}, nil
	})

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "farmshift_providers",
		Description: "List the supported search providers.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}, func(context.Context, any) (any, error) {
		return map[string]any{"providers": s.Providers()}, nil
	}, func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	})
}
