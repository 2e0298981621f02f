package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whaleen/portfolio/internal/catalog"
)

const testCSV = `Repo,GitHub Org,Description,Featured Project,Resume Worthy,Project Type,Hidden,Topics,Primary Language
astrds,whaleen,Asteroids clone,yes,yes,game,,"solana, web3, game, canvas, arcade",TypeScript
tiling,whaleen,Video tiling,no,yes,tool,yes,,Go
earth,nothingdao,Map game,yes,no,app,,solana,Rust
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	c := catalog.New(catalog.SourceFunc(func(context.Context) ([]byte, error) {
		return []byte(testCSV), nil
	}))
	require.NoError(t, c.Refresh(context.Background()))
	srv := NewServer(c, "test")
	require.NotNil(t, srv)
	return srv
}

// callToolReq builds a CallToolRequest with the given tool name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

func listRepos(t *testing.T, srv *Server, args map[string]any) []string {
	t.Helper()
	result, err := srv.handleListProjects(context.Background(), callToolReq("portfolio_list_projects", args))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out []projectOut
	resultJSON(t, result, &out)
	repos := make([]string, len(out))
	for i, p := range out {
		repos[i] = p.Repo
	}
	return repos
}

func TestHandleListProjects(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, []string{"astrds", "earth"}, listRepos(t, srv, nil))
	assert.Equal(t, []string{"astrds", "tiling", "earth"}, listRepos(t, srv, map[string]any{"include_hidden": true}))
	assert.Equal(t, []string{"earth"}, listRepos(t, srv, map[string]any{"org": "nothingdao"}))
	assert.Equal(t, []string{"astrds"}, listRepos(t, srv, map[string]any{"type": "game", "org": "all"}))
	assert.Equal(t, []string{"astrds", "earth"}, listRepos(t, srv, map[string]any{"query": "SOLANA"}))
	assert.Equal(t, []string{"astrds"}, listRepos(t, srv, map[string]any{"resume_worthy": true}))
	assert.Equal(t, []string{"astrds", "earth"}, listRepos(t, srv, map[string]any{"featured": true}))
	assert.Empty(t, listRepos(t, srv, map[string]any{"query": "kubernetes"}))
}

func TestHandleListProjects_TagsTruncated(t *testing.T) {
	srv := newTestServer(t)
	result, err := srv.handleListProjects(context.Background(), callToolReq("portfolio_list_projects", map[string]any{"org": "whaleen"}))
	require.NoError(t, err)

	var out []projectOut
	resultJSON(t, result, &out)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"solana", "web3", "game", "canvas"}, out[0].Tags)
	assert.Equal(t, "TypeScript", out[0].Language)
}

func TestHandleGetProject(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleGetProject(ctx, callToolReq("portfolio_get_project", map[string]any{"org": "whaleen", "repo": "astrds"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out struct {
		Project struct {
			Repo string   `json:"repo"`
			Tags []string `json:"tags"`
		} `json:"project"`
		Preview string `json:"preview"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "astrds", out.Project.Repo)
	assert.Len(t, out.Project.Tags, 5, "full tag list on the detail view")
	assert.Equal(t, "/social-previews/whaleen/astrds.png", out.Preview)
}

func TestHandleGetProject_Errors(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleGetProject(ctx, callToolReq("portfolio_get_project", map[string]any{"repo": "astrds"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "org")

	result, err = srv.handleGetProject(ctx, callToolReq("portfolio_get_project", map[string]any{"org": "whaleen"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "repo")

	result, err = srv.handleGetProject(ctx, callToolReq("portfolio_get_project", map[string]any{"org": "whaleen", "repo": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "project not found: whaleen/nope")
}

func TestHandleCatalogStatus(t *testing.T) {
	srv := newTestServer(t)
	result, err := srv.handleCatalogStatus(context.Background(), callToolReq("portfolio_catalog_status", nil))
	require.NoError(t, err)

	var st catalog.Status
	resultJSON(t, result, &st)
	assert.True(t, st.Loaded)
	assert.Equal(t, 3, st.Projects)
	assert.Empty(t, st.LastError)
}

func TestHandleCatalogStatus_ReportsStaleData(t *testing.T) {
	calls := 0
	c := catalog.New(catalog.SourceFunc(func(context.Context) ([]byte, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("disk unavailable")
		}
		return []byte(testCSV), nil
	}))
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))
	require.Error(t, c.Refresh(ctx))

	srv := NewServer(c, "")
	result, err := srv.handleCatalogStatus(ctx, callToolReq("portfolio_catalog_status", nil))
	require.NoError(t, err)

	var st catalog.Status
	resultJSON(t, result, &st)
	assert.Equal(t, 3, st.Projects)
	assert.Contains(t, st.LastError, "disk unavailable")
}

func TestHandleFacets(t *testing.T) {
	srv := newTestServer(t)
	result, err := srv.handleFacets(context.Background(), callToolReq("portfolio_facets", nil))
	require.NoError(t, err)

	var f catalog.Facets
	resultJSON(t, result, &f)
	assert.Equal(t, []string{"whaleen", "nothingdao"}, f.Orgs)
}

func TestMCPIntegration_ListTools(t *testing.T) {
	srv := newTestServer(t)
	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv)

	ctx := context.Background()
	reqJSON := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	respMsg := mcpSrv.HandleMessage(ctx, reqJSON)
	require.NotNil(t, respMsg)

	respBytes, err := json.Marshal(respMsg)
	require.NoError(t, err)

	var rpcResp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpcResp))

	toolNames := make(map[string]bool)
	for _, tool := range rpcResp.Result.Tools {
		toolNames[tool.Name] = true
	}
	for _, name := range []string{
		"portfolio_list_projects",
		"portfolio_get_project",
		"portfolio_catalog_status",
		"portfolio_facets",
	} {
		assert.True(t, toolNames[name], "expected tool %q to be registered", name)
	}
}

func TestMCPIntegration_CallTool(t *testing.T) {
	srv := newTestServer(t)
	mcpSrv := srv.MCPServer()

	reqJSON := []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"portfolio_get_project","arguments":{"org":"nothingdao","repo":"earth"}}}`)
	respMsg := mcpSrv.HandleMessage(context.Background(), reqJSON)
	respBytes, err := json.Marshal(respMsg)
	require.NoError(t, err)
	assert.Contains(t, string(respBytes), "Map game")
}
