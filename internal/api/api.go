package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/whaleen/portfolio/internal/catalog"
	"github.com/whaleen/portfolio/internal/metrics"
	"github.com/whaleen/portfolio/internal/models"
	"github.com/whaleen/portfolio/internal/preview"
	"github.com/whaleen/portfolio/internal/refresh"
)

// Config controls the HTTP surface.
type Config struct {
	// PublicDir holds social-previews/, readmes/ and data/.
	PublicDir       string
	PreviewFallback string

	AdminEnabled     bool
	AdminAllowRemote bool
	// AdminRateLimit is admin requests per second; <= 0 disables limiting.
	AdminRateLimit float64
	AdminBurst     int
}

// Server provides the REST API handlers.
type Server struct {
	catalog *catalog.Catalog
	runner  *refresh.Runner
	metrics *metrics.Metrics
	ui      http.Handler
	preview preview.Resolver
	limiter *rate.Limiter
	cfg     Config
	log     *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics exposes m on /metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Server) { s.metrics = m } }

// WithUI serves h for every path no API route claims.
func WithUI(h http.Handler) Option { return func(s *Server) { s.ui = h } }

// NewServer creates a new API server. runner may be nil, in which case the
// admin routes are not registered.
func NewServer(c *catalog.Catalog, runner *refresh.Runner, cfg Config, opts ...Option) *Server {
	s := &Server{
		catalog: c,
		runner:  runner,
		cfg:     cfg,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.preview = preview.Resolver{Fallback: cfg.PreviewFallback, Log: s.log}
	if cfg.PublicDir != "" {
		s.preview.Root = os.DirFS(cfg.PublicDir)
	}
	if cfg.AdminRateLimit > 0 {
		burst := max(cfg.AdminBurst, 1)
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AdminRateLimit), burst)
	}
	return s
}

// Router returns the gin engine for all routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	// ClientIP must be the socket peer for the loopback check.
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.Recovery(), requestLogger(s.log), cors())

	r.GET("/health", s.health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api")
	api.GET("/projects", s.listProjects)
	api.GET("/projects/featured", s.featuredProjects)
	api.GET("/projects/resume-worthy", s.resumeWorthyProjects)
	api.GET("/projects/:org/:repo", s.getProject)
	api.GET("/projects/:org/:repo/preview", s.projectPreview)
	api.GET("/facets", s.facets)
	api.GET("/catalog", s.catalogStatus)

	if s.runner != nil {
		admin := api.Group("", s.adminGuard())
		admin.POST("/catalog/refresh", s.refreshCatalog)
		admin.POST("/github/update", s.githubUpdate)
		admin.POST("/github/update-all", s.githubUpdateAll)
		admin.POST("/og/update", s.ogUpdate)
		admin.POST("/project/toggle-hidden", s.toggleHidden)
		admin.POST("/project/delete", s.deleteProject)
		admin.GET("/admin/runs", s.listRuns)
	}

	if s.cfg.PublicDir != "" {
		for _, dir := range []string{"social-previews", "readmes", "data"} {
			r.Static("/"+dir, filepath.Join(s.cfg.PublicDir, dir))
		}
	}

	r.NoRoute(s.fallback)
	return r
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, gin.H{"error": msg})
}

func (s *Server) fallback(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") || s.ui == nil {
		writeError(c, http.StatusNotFound, "not found")
		return
	}
	s.ui.ServeHTTP(c.Writer, c.Request)
}

func (s *Server) health(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// --- Projects ---

type projectList struct {
	Projects []models.Project `json:"projects"`
	Total    int              `json:"total"`
	Matched  int              `json:"matched"`
}

// queryBool accepts the usual boolean spellings plus the catalog's "yes".
func queryBool(c *gin.Context, key string) bool {
	v := c.Query(key)
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return models.IsYes(v)
}

func (s *Server) visible(c *gin.Context) []models.Project {
	all := s.catalog.All()
	if queryBool(c, "include_hidden") {
		return all
	}
	return catalog.Visible(all)
}

func (s *Server) listProjects(c *gin.Context) {
	base := s.visible(c)
	crit := catalog.Criteria{
		Org:              c.Query("org"),
		Type:             c.Query("type"),
		Query:            c.Query("q"),
		ResumeWorthyOnly: queryBool(c, "resume_worthy"),
	}
	matched := catalog.Filter(base, crit)
	writeJSON(c, http.StatusOK, projectList{Projects: matched, Total: len(base), Matched: len(matched)})
}

func (s *Server) featuredProjects(c *gin.Context) {
	base := s.visible(c)
	ps := catalog.Featured(base)
	writeJSON(c, http.StatusOK, projectList{Projects: ps, Total: len(base), Matched: len(ps)})
}

func (s *Server) resumeWorthyProjects(c *gin.Context) {
	base := s.visible(c)
	ps := catalog.ResumeWorthy(base)
	writeJSON(c, http.StatusOK, projectList{Projects: ps, Total: len(base), Matched: len(ps)})
}

func (s *Server) getProject(c *gin.Context) {
	p, err := s.catalog.Find(c.Param("org"), c.Param("repo"))
	var nf *catalog.NotFoundError
	if errors.As(err, &nf) {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (s *Server) projectPreview(c *gin.Context) {
	url := s.preview.Resolve(c.Param("org"), c.Param("repo"))
	if url == "" {
		writeError(c, http.StatusNotFound, "no preview available")
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (s *Server) facets(c *gin.Context) {
	writeJSON(c, http.StatusOK, s.catalog.Facets())
}

func (s *Server) catalogStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, s.catalog.Status())
}
