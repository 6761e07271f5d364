package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/folio/internal/profile"
	"github.com/kalambet/folio/internal/tenant"
)

// --- helpers ---

func newTestMCPDeps() MCPDeps {
	return MCPDeps{Rules: tenant.DefaultRules(), Loader: defaultLoader()}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// --- tests ---

func TestMCPTool_ResolveHost(t *testing.T) {
	handler := mcpResolveHost(newTestMCPDeps())

	tests := []struct {
		host string
		want tenant.Identity
	}{
		{"ada.cofounds.in", tenant.Identity{Username: "ada", Valid: true}},
		{"ada.localhost:3000", tenant.Identity{Username: "ada", Valid: true}},
		{"www.cofounds.in", tenant.Identity{}},
		{"example.com", tenant.Identity{}},
	}
	for _, tt := range tests {
		result, err := handler(context.Background(), makeCallToolRequest("resolve_host", map[string]interface{}{"host": tt.host}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("%s: unexpected tool error: %s", tt.host, toolText(t, result))
		}
		var got tenant.Identity
		if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
			t.Fatalf("%s: parse: %v", tt.host, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.host, got, tt.want)
		}
	}
}

func TestMCPTool_ResolveHost_MissingHost(t *testing.T) {
	handler := mcpResolveHost(newTestMCPDeps())
	result, err := handler(context.Background(), makeCallToolRequest("resolve_host", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing host")
	}
}

func TestMCPTool_GetPortfolio(t *testing.T) {
	handler := mcpGetPortfolio(newTestMCPDeps())

	for _, args := range []map[string]interface{}{
		{"username": "ada"},
		{"host": "ada.cofounds.in"},
	} {
		result, err := handler(context.Background(), makeCallToolRequest("get_portfolio", args))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("%v: unexpected tool error: %s", args, toolText(t, result))
		}
		var p profile.Profile
		if err := json.Unmarshal([]byte(toolText(t, result)), &p); err != nil {
			t.Fatalf("parse: %v", err)
		}
		if p.Username != "ada" || p.Name != "Ada Lovelace" {
			t.Errorf("%v: profile = %+v", args, p)
		}
	}
}

func TestMCPTool_GetPortfolio_Errors(t *testing.T) {
	handler := mcpGetPortfolio(newTestMCPDeps())

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"no args", map[string]interface{}{}, "required"},
		{"unresolved host", map[string]interface{}{"host": "www.cofounds.in"}, msgPortfolioNotFound},
		{"fetch failure", map[string]interface{}{"username": "broken"}, "HTTP 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handler(context.Background(), makeCallToolRequest("get_portfolio", tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Fatal("expected tool error")
			}
			if text := toolText(t, result); !strings.Contains(text, tt.want) {
				t.Errorf("text = %q, want it to contain %q", text, tt.want)
			}
		})
	}
}

func TestMCPTool_ListTemplates(t *testing.T) {
	result, err := mcpListTemplates()(context.Background(), makeCallToolRequest("list_templates", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ids []string
	if err := json.Unmarshal([]byte(toolText(t, result)), &ids); err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "template-01" || ids[1] != "template-03" {
		t.Errorf("templates = %v", ids)
	}
}

func TestMCPResource_Templates(t *testing.T) {
	handler := mcpResourceTemplates()
	req := mcp.ReadResourceRequest{Params: mcp.ReadResourceParams{URI: "folio://templates"}}

	contents, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "folio://templates" || !strings.Contains(tc.Text, "template-03") {
		t.Errorf("contents = %+v", tc)
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps := newTestMCPDeps()
	resolve := mcpResolveHost(deps)
	get := mcpGetPortfolio(deps)

	var wg sync.WaitGroup
	errs := make(chan string, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r, err := resolve(context.Background(), makeCallToolRequest("resolve_host", map[string]interface{}{"host": "grace.cofounds.in"}))
			if err != nil || r.IsError {
				errs <- "resolve_host failed"
			}
		}()
		go func() {
			defer wg.Done()
			r, err := get(context.Background(), makeCallToolRequest("get_portfolio", map[string]interface{}{"username": "ada"}))
			if err != nil || r.IsError {
				errs <- "get_portfolio failed"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

func TestNewMCPServer(t *testing.T) {
	if s := NewMCPServer(newTestMCPDeps(), "test"); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
