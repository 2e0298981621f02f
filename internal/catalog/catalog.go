package catalog

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/whaleen/portfolio/internal/metrics"
	"github.com/whaleen/portfolio/internal/models"
)

// snapshot is an immutable result of one successful parse.
type snapshot struct {
	projects   []models.Project
	generation uint64
	loadedAt   time.Time
}

// Status describes the catalog's current snapshot and the most recent
// refresh failure, if any.
type Status struct {
	Loaded      bool      `json:"loaded"`
	Projects    int       `json:"projects"`
	Generation  uint64    `json:"generation"`
	LoadedAt    time.Time `json:"loaded_at,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitzero"`
}

// Catalog is a read-only view over the most recent successful parse of the
// record store. Refresh replaces the snapshot wholesale; readers always see
// either the old or the new snapshot, never a mix.
type Catalog struct {
	source  Source
	log     *zap.Logger
	metrics *metrics.Metrics

	snap atomic.Pointer[snapshot]
	gen  atomic.Uint64

	mu          sync.Mutex
	lastErr     error
	lastErrTime time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the catalog logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records refresh outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

// New creates an empty catalog backed by src. Call Refresh to load it.
func New(src Source, opts ...Option) *Catalog {
	c := &Catalog{source: src, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// All returns the records of the current snapshot in record store order.
// The returned slice is a copy; the records must be treated as read-only.
func (c *Catalog) All() []models.Project {
	s := c.snap.Load()
	if s == nil {
		return []models.Project{}
	}
	return slices.Clone(s.projects)
}

// Refresh re-reads and re-parses the record store. On failure the previous
// snapshot is kept and the error is both returned and remembered in Status.
func (c *Catalog) Refresh(ctx context.Context) error {
	start := time.Now()

	data, err := c.source.Read(ctx)
	if err != nil {
		return c.fail(err, start)
	}

	projects, err := Parse(bytes.NewReader(data))
	if err != nil {
		return c.fail(err, start)
	}

	// Generation and snapshot are installed together; Generation only grows.
	c.mu.Lock()
	next := &snapshot{
		projects:   projects,
		generation: c.gen.Add(1),
		loadedAt:   time.Now().UTC(),
	}
	c.snap.Store(next)
	c.lastErr = nil
	c.lastErrTime = time.Time{}
	c.mu.Unlock()

	c.metrics.ObserveRefresh(true, len(projects), time.Since(start))
	c.log.Info("catalog refreshed",
		zap.Int("projects", len(projects)),
		zap.Uint64("generation", next.generation),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (c *Catalog) fail(err error, start time.Time) error {
	c.mu.Lock()
	c.lastErr = err
	c.lastErrTime = time.Now().UTC()
	c.mu.Unlock()

	kept := 0
	if s := c.snap.Load(); s != nil {
		kept = len(s.projects)
	}
	c.metrics.ObserveRefresh(false, kept, time.Since(start))
	c.log.Warn("catalog refresh failed, keeping previous snapshot",
		zap.Error(err),
		zap.Int("kept_projects", kept),
	)
	return err
}

// Find returns the record with the given org and repo.
func (c *Catalog) Find(org, repo string) (models.Project, error) {
	if s := c.snap.Load(); s != nil {
		for _, p := range s.projects {
			if p.Org == org && p.Repo == repo {
				return p, nil
			}
		}
	}
	return models.Project{}, &NotFoundError{Org: org, Repo: repo}
}

// Status reports the current snapshot and last refresh error.
func (c *Catalog) Status() Status {
	var st Status
	if s := c.snap.Load(); s != nil {
		st.Loaded = true
		st.Projects = len(s.projects)
		st.Generation = s.generation
		st.LoadedAt = s.loadedAt
	}
	c.mu.Lock()
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
		st.LastErrorAt = c.lastErrTime
	}
	c.mu.Unlock()
	return st
}

// Facets lists the distinct orgs and project types in first-appearance order.
type Facets struct {
	Orgs  []string `json:"orgs"`
	Types []string `json:"types"`
}

// Facets computes filter choices from the current snapshot.
func (c *Catalog) Facets() Facets {
	return FacetsOf(c.All())
}
