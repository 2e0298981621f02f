package refresh

import (
	"context"

	"go.uber.org/zap"

	"github.com/whaleen/portfolio/internal/bridge"
	"github.com/whaleen/portfolio/internal/metrics"
	"github.com/whaleen/portfolio/internal/models"
	"github.com/whaleen/portfolio/internal/store"
)

// Refresher reloads the in-memory catalog.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Outcome holds the result of one admin operation and the catalog refresh
// that followed it.
type Outcome struct {
	Result       *bridge.Result `json:"result"`
	RunID        string         `json:"run_id,omitempty"`
	Refreshed    bool           `json:"refreshed"`
	RefreshError string         `json:"refresh_error,omitempty"`
}

// Runner runs a bridge operation, records it, and then refreshes the catalog.
// The two steps are sequential and not atomic: a reader may still see the old
// catalog after the bridge has returned.
type Runner struct {
	bridge  bridge.Bridge
	catalog Refresher
	store   store.Store
	metrics *metrics.Metrics
	log     *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore records every run in s.
func WithStore(s store.Store) Option { return func(r *Runner) { r.store = s } }

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Runner) { r.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRunner returns a Runner over b that refreshes c after each success.
func NewRunner(b bridge.Bridge, c Refresher, opts ...Option) *Runner {
	r := &Runner{bridge: b, catalog: c, log: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runner) Update(ctx context.Context, repo string) (*Outcome, error) {
	return r.do(ctx, func(ctx context.Context) (*bridge.Result, error) { return r.bridge.Update(ctx, repo) })
}

func (r *Runner) UpdateAll(ctx context.Context) (*Outcome, error) {
	return r.do(ctx, r.bridge.UpdateAll)
}

func (r *Runner) UpdateOG(ctx context.Context, repo string) (*Outcome, error) {
	return r.do(ctx, func(ctx context.Context) (*bridge.Result, error) { return r.bridge.UpdateOG(ctx, repo) })
}

func (r *Runner) ToggleHidden(ctx context.Context, repo string, hidden bool) (*Outcome, error) {
	return r.do(ctx, func(ctx context.Context) (*bridge.Result, error) { return r.bridge.ToggleHidden(ctx, repo, hidden) })
}

func (r *Runner) Delete(ctx context.Context, repo string) (*Outcome, error) {
	return r.do(ctx, func(ctx context.Context) (*bridge.Result, error) { return r.bridge.Delete(ctx, repo) })
}

// do runs call and, when it succeeds, refreshes the catalog. Input errors
// return a nil Outcome. Bridge failures return the Outcome with the captured
// Result alongside the error. A failed refresh after a successful bridge
// call is reported in the Outcome, not as an error.
//
// Scripts rewrite the record store, so cancelling ctx never stops one
// partway through; the bridge timeout is the only bound on a run.
func (r *Runner) do(ctx context.Context, call func(context.Context) (*bridge.Result, error)) (*Outcome, error) {
	bg := context.WithoutCancel(ctx)

	res, err := call(bg)
	if res == nil {
		return nil, err
	}

	out := &Outcome{Result: res}
	r.metrics.ObserveBridgeRun(string(res.Op), string(res.Status), res.Duration)
	out.RunID = r.record(bg, res)

	if err != nil {
		return out, err
	}

	if rerr := r.catalog.Refresh(bg); rerr != nil {
		out.RefreshError = rerr.Error()
		r.log.Warn("catalog refresh after admin op failed",
			zap.String("op", string(res.Op)),
			zap.String("repo", res.Repo),
			zap.Error(rerr),
		)
		return out, nil
	}
	out.Refreshed = true
	return out, nil
}

func (r *Runner) record(ctx context.Context, res *bridge.Result) string {
	if r.store == nil {
		return ""
	}
	run := &models.BridgeRun{
		Op:         string(res.Op),
		Repo:       res.Repo,
		Status:     res.Status,
		ExitCode:   res.ExitCode,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		Message:    res.Message,
		StartedAt:  res.StartedAt,
		DurationMs: res.Duration.Milliseconds(),
	}
	if err := r.store.RecordRun(ctx, run); err != nil {
		r.log.Warn("record admin run", zap.Error(err))
		return ""
	}
	return run.ID
}

// History returns recent runs, newest first. It returns an empty list when
// no store is configured.
func (r *Runner) History(ctx context.Context, filter store.RunListFilter) ([]*models.BridgeRun, error) {
	if r.store == nil {
		return []*models.BridgeRun{}, nil
	}
	return r.store.ListRuns(ctx, filter)
}

// Catalog refreshes the catalog without running a bridge operation.
func (r *Runner) Catalog(ctx context.Context) error {
	return r.catalog.Refresh(ctx)
}
