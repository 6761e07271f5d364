package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/folio/internal/pipeline"
	"github.com/kalambet/folio/internal/render"
	"github.com/kalambet/folio/internal/tenant"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Rules  tenant.Rules
	Loader PortfolioLoader
}

// NewMCPServer creates an MCP server exposing tenant resolution and
// portfolio lookup.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"folio",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("folio: resolve portfolio hostnames to tenants and read their normalized portfolio data."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("resolve_host",
			mcp.WithDescription("Resolve a hostname such as alice.cofounds.in to the portfolio tenant it serves."),
			mcp.WithString("host", mcp.Description("Hostname, optionally with a port"), mcp.Required()),
		),
		mcpResolveHost(deps),
	)

	s.AddTool(
		mcp.NewTool("get_portfolio",
			mcp.WithDescription("Fetch and normalize a tenant's portfolio. Pass either username or host."),
			mcp.WithString("username", mcp.Description("Tenant username")),
			mcp.WithString("host", mcp.Description("Hostname to resolve when username is omitted")),
		),
		mcpGetPortfolio(deps),
	)

	s.AddTool(
		mcp.NewTool("list_templates",
			mcp.WithDescription("List the template identifiers this server can render."),
		),
		mcpListTemplates(),
	)

	s.AddResource(
		mcp.NewResource(
			"folio://templates",
			"Templates",
			mcp.WithResourceDescription("Renderable template identifiers as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTemplates(),
	)

	return s
}

func mcpResolveHost(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		host, err := req.RequireString("host")
		if err != nil || strings.TrimSpace(host) == "" {
			return mcpError("host is required"), nil
		}
		b, err := json.Marshal(deps.Rules.Resolve(host))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal identity: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetPortfolio(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		username := strings.TrimSpace(req.GetString("username", ""))
		host := strings.TrimSpace(req.GetString("host", ""))

		var id tenant.Identity
		switch {
		case username != "":
			id = tenant.Identity{Username: username, Valid: true}
		case host != "":
			id = deps.Rules.Resolve(host)
		default:
			return mcpError("one of username or host is required"), nil
		}

		res := deps.Loader.Load(ctx, id)
		switch res.Status {
		case pipeline.StatusOK:
		case pipeline.StatusUnresolved:
			return mcpError(msgPortfolioNotFound), nil
		default:
			msg := res.Message
			if msg == "" && res.Err != nil {
				msg = res.Err.Error()
			}
			return mcpError(msg), nil
		}

		b, err := json.Marshal(res.Profile)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal portfolio: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func templateIDs() []string {
	ids := make([]string, len(render.Variants))
	for i, v := range render.Variants {
		ids[i] = v.ID()
	}
	return ids
}

func mcpListTemplates() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b, err := json.Marshal(templateIDs())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal templates: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceTemplates() server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(templateIDs())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal templates: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
