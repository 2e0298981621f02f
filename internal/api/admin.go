package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/whaleen/portfolio/internal/bridge"
	"github.com/whaleen/portfolio/internal/catalog"
	"github.com/whaleen/portfolio/internal/models"
	"github.com/whaleen/portfolio/internal/refresh"
	"github.com/whaleen/portfolio/internal/store"
)

type repoRequest struct {
	Repo   string `json:"repo"`
	Hidden bool   `json:"hidden"`
}

type adminResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Output       string `json:"output"`
	Refreshed    bool   `json:"refreshed"`
	RefreshError string `json:"refresh_error,omitempty"`
	RunID        string `json:"run_id,omitempty"`
}

type adminFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Stderr  string `json:"stderr,omitempty"`
	Stdout  string `json:"stdout,omitempty"`
}

// bindRepo decodes the optional JSON body. A missing body is an empty request.
func bindRepo(c *gin.Context) (repoRequest, bool) {
	var req repoRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return req, false
	}
	return req, true
}

// respond maps a runner outcome onto the admin response contract.
func (s *Server) respond(c *gin.Context, out *refresh.Outcome, err error) {
	if err == nil {
		writeJSON(c, http.StatusOK, adminResponse{
			Success:      true,
			Message:      out.Result.Message,
			Output:       out.Result.Stdout,
			Refreshed:    out.Refreshed,
			RefreshError: out.RefreshError,
			RunID:        out.RunID,
		})
		return
	}

	if bridge.IsInputError(err) {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	var be *bridge.Error
	if errors.As(err, &be) {
		body := adminFailure{Error: be.Error()}
		if be.Status == models.RunStatusScriptFailed {
			body.Stderr, body.Stdout = be.Stderr, be.Stdout
		}
		writeJSON(c, http.StatusInternalServerError, body)
		return
	}

	writeJSON(c, http.StatusInternalServerError, adminFailure{Error: err.Error()})
}

func (s *Server) githubUpdate(c *gin.Context) {
	req, ok := bindRepo(c)
	if !ok {
		return
	}
	out, err := s.runner.Update(c.Request.Context(), req.Repo)
	s.respond(c, out, err)
}

func (s *Server) githubUpdateAll(c *gin.Context) {
	out, err := s.runner.UpdateAll(c.Request.Context())
	s.respond(c, out, err)
}

func (s *Server) ogUpdate(c *gin.Context) {
	req, ok := bindRepo(c)
	if !ok {
		return
	}
	out, err := s.runner.UpdateOG(c.Request.Context(), req.Repo)
	s.respond(c, out, err)
}

func (s *Server) toggleHidden(c *gin.Context) {
	req, ok := bindRepo(c)
	if !ok {
		return
	}
	out, err := s.runner.ToggleHidden(c.Request.Context(), req.Repo, req.Hidden)
	s.respond(c, out, err)
}

func (s *Server) deleteProject(c *gin.Context) {
	req, ok := bindRepo(c)
	if !ok {
		return
	}
	out, err := s.runner.Delete(c.Request.Context(), req.Repo)
	s.respond(c, out, err)
}

func (s *Server) refreshCatalog(c *gin.Context) {
	err := s.runner.Catalog(c.Request.Context())
	var pe *catalog.ParseError
	switch {
	case errors.As(err, &pe):
		writeError(c, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, s.catalog.Status())
}

func (s *Server) listRuns(c *gin.Context) {
	filter := store.RunListFilter{
		Repo:   c.Query("repo"),
		Op:     c.Query("op"),
		Status: models.RunStatus(c.Query("status")),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	runs, err := s.runner.History(c.Request.Context(), filter)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, runs)
}
