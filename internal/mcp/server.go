package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/whaleen/portfolio/internal/catalog"
	"github.com/whaleen/portfolio/internal/models"
	"github.com/whaleen/portfolio/internal/preview"
)

// Server exposes the project catalog as read-only MCP tools.
type Server struct {
	catalog *catalog.Catalog
	version string
}

// NewServer creates the MCP server wrapper over c.
func NewServer(c *catalog.Catalog, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{catalog: c, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("portfolio", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listProjectsTool())
	srv.AddTool(s.getProjectTool())
	srv.AddTool(s.catalogStatusTool())
	srv.AddTool(s.facetsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// projectOut is the compact listing shape; portfolio_get_project returns the
// full record.
type projectOut struct {
	Org          string   `json:"org"`
	Repo         string   `json:"repo"`
	Summary      string   `json:"summary,omitempty"`
	Type         string   `json:"type,omitempty"`
	Language     string   `json:"language,omitempty"`
	URL          string   `json:"url,omitempty"`
	Tags         []string `json:"tags"`
	Featured     bool     `json:"featured"`
	ResumeWorthy bool     `json:"resume_worthy"`
	Hidden       bool     `json:"hidden,omitempty"`
}

func toOut(p models.Project) projectOut {
	return projectOut{
		Org:          p.Org,
		Repo:         p.Repo,
		Summary:      p.Summary,
		Type:         p.ProjectType,
		Language:     p.EffectiveLanguage,
		URL:          p.URL,
		Tags:         catalog.TopTags(p.Tags, 4),
		Featured:     p.Featured,
		ResumeWorthy: p.ResumeWorthy,
		Hidden:       p.Hidden,
	}
}

// portfolio_list_projects
func (s *Server) listProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("portfolio_list_projects",
		mcp.WithDescription("List portfolio projects. Filters combine with AND. Returns a JSON array of projects with org, repo, summary, type, language, url and up to four tags."),
		mcp.WithString("org", mcp.Description(`GitHub org to match exactly, or "all"`)),
		mcp.WithString("type", mcp.Description(`Project type to match exactly, or "all"`)),
		mcp.WithString("query", mcp.Description("Case-insensitive search over repo, description, notes, topics and key tags")),
		mcp.WithBoolean("resume_worthy", mcp.Description("Only resume-worthy projects")),
		mcp.WithBoolean("featured", mcp.Description("Only featured projects")),
		mcp.WithBoolean("include_hidden", mcp.Description("Include projects marked hidden")),
	)
	return tool, s.handleListProjects
}

func (s *Server) handleListProjects(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ps := s.catalog.All()
	if !request.GetBool("include_hidden", false) {
		ps = catalog.Visible(ps)
	}
	if request.GetBool("featured", false) {
		ps = catalog.Featured(ps)
	}
	ps = catalog.Filter(ps, catalog.Criteria{
		Org:              request.GetString("org", ""),
		Type:             request.GetString("type", ""),
		Query:            request.GetString("query", ""),
		ResumeWorthyOnly: request.GetBool("resume_worthy", false),
	})

	out := make([]projectOut, len(ps))
	for i, p := range ps {
		out[i] = toOut(p)
	}
	return jsonResult(out)
}

// portfolio_get_project
func (s *Server) getProjectTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("portfolio_get_project",
		mcp.WithDescription("Get the full record for one project, including GitHub metrics, links, Open Graph data and the social preview path."),
		mcp.WithString("org", mcp.Required(), mcp.Description("GitHub org")),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repository name")),
	)
	return tool, s.handleGetProject
}

func (s *Server) handleGetProject(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	org, err := request.RequireString("org")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: org"), nil
	}
	repo, err := request.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: repo"), nil
	}

	p, err := s.catalog.Find(org, repo)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"project": p,
		"preview": preview.Path(p.Org, p.Repo),
	})
}

// portfolio_catalog_status
func (s *Server) catalogStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("portfolio_catalog_status",
		mcp.WithDescription("Report whether the catalog is loaded, how many projects it holds, when it was last loaded, and the last refresh error if the data is stale."),
	)
	return tool, s.handleCatalogStatus
}

func (s *Server) handleCatalogStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.catalog.Status())
}

// portfolio_facets
func (s *Server) facetsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("portfolio_facets",
		mcp.WithDescription("List the distinct GitHub orgs and project types, usable as org and type filters."),
	)
	return tool, s.handleFacets
}

func (s *Server) handleFacets(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.catalog.Facets())
}
