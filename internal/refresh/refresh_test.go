package refresh

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/whaleen/portfolio/internal/bridge"
	"github.com/whaleen/portfolio/internal/bridge/bridgetest"
	"github.com/whaleen/portfolio/internal/metrics"
	"github.com/whaleen/portfolio/internal/models"
	"github.com/whaleen/portfolio/internal/store"
)

type countingRefresher struct {
	n   atomic.Int32
	err error
}

func (c *countingRefresher) Refresh(context.Context) error {
	c.n.Add(1)
	return c.err
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunner_SuccessRefreshesAndRecords(t *testing.T) {
	fb := &bridgetest.Fake{Stdout: "done"}
	cat := &countingRefresher{}
	st := newTestStore(t)
	r := NewRunner(fb, cat, WithStore(st), WithMetrics(metrics.New()))
	ctx := context.Background()

	out, err := r.Update(ctx, "whaleen/astrds")
	require.NoError(t, err)
	assert.True(t, out.Result.OK())
	assert.True(t, out.Refreshed)
	assert.Empty(t, out.RefreshError)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, int32(1), cat.n.Load())

	runs, err := r.History(ctx, store.RunListFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, out.RunID, runs[0].ID)
	assert.Equal(t, "update", runs[0].Op)
	assert.Equal(t, "whaleen/astrds", runs[0].Repo)
	assert.Equal(t, "done", runs[0].Stdout)
}

func TestRunner_BridgeFailureSkipsRefresh(t *testing.T) {
	fb := &bridgetest.Fake{Status: models.RunStatusScriptFailed, Code: 1, Stderr: "boom"}
	cat := &countingRefresher{}
	st := newTestStore(t)
	r := NewRunner(fb, cat, WithStore(st))

	out, err := r.ToggleHidden(context.Background(), "astrds", true)
	require.Error(t, err)
	require.NotNil(t, out)
	assert.False(t, out.Refreshed)
	assert.Equal(t, int32(0), cat.n.Load())

	var be *bridge.Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "boom", be.Stderr)

	runs, err := st.ListRuns(context.Background(), store.RunListFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusScriptFailed, runs[0].Status)
}

func TestRunner_InputErrorIsNotRecorded(t *testing.T) {
	fb := &bridgetest.Fake{}
	cat := &countingRefresher{}
	st := newTestStore(t)
	r := NewRunner(fb, cat, WithStore(st))

	out, err := r.Delete(context.Background(), "astrds")
	assert.Nil(t, out)
	assert.ErrorIs(t, err, bridge.ErrInvalidRepo)
	assert.Empty(t, fb.Calls())

	runs, err := st.ListRuns(context.Background(), store.RunListFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunner_RefreshFailureIsReported(t *testing.T) {
	cat := &countingRefresher{err: errors.New("parse projects: line 3: bare quote")}
	r := NewRunner(&bridgetest.Fake{}, cat)

	out, err := r.UpdateAll(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Refreshed)
	assert.Equal(t, "parse projects: line 3: bare quote", out.RefreshError)
	assert.Empty(t, out.RunID, "no store configured")
}

func TestRunner_RefreshSurvivesCancelledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var seen error
	cat := refresherFunc(func(ctx context.Context) error {
		seen = ctx.Err()
		return nil
	})
	fb := &bridgetest.Fake{OnCall: func(bridgetest.Call) { cancel() }}
	r := NewRunner(fb, cat)

	out, err := r.UpdateOG(ctx, "astrds")
	require.NoError(t, err)
	assert.True(t, out.Refreshed)
	assert.NoError(t, seen)
}

func TestRunner_ScriptFinishesAfterCancel(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not available on windows")
	}
	dir := t.TempDir()
	// Writes a temp file, pauses, then renames it into place.
	script := "echo hidden > written.tmp && sleep 0.5 && mv written.tmp written\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "toggle-hidden.py"), []byte(script), 0o644))

	b := bridge.NewScriptBridge(bridge.Config{
		Interpreter: "sh",
		ScriptsDir:  dir,
		WorkDir:     dir,
		Timeout:     10 * time.Second,
	}, zap.NewNop())
	cat := &countingRefresher{}
	r := NewRunner(b, cat, WithStore(newTestStore(t)))

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(100*time.Millisecond, cancel)
	defer timer.Stop()

	out, err := r.ToggleHidden(ctx, "tiling", true)
	require.NoError(t, err)
	assert.Error(t, ctx.Err(), "request was cancelled mid-run")
	assert.Equal(t, models.RunStatusSuccess, out.Result.Status)
	assert.True(t, out.Refreshed)
	assert.Equal(t, int32(1), cat.n.Load())

	assert.FileExists(t, filepath.Join(dir, "written"))
	assert.NoFileExists(t, filepath.Join(dir, "written.tmp"))
}

func TestRunner_NilLoggerKeepsDefault(t *testing.T) {
	cat := &countingRefresher{err: errors.New("missing file")}
	r := NewRunner(&bridgetest.Fake{}, cat, WithLogger(nil))
	require.NotNil(t, r.log)

	var out *Outcome
	assert.NotPanics(t, func() { out, _ = r.UpdateAll(context.Background()) })
	require.NotNil(t, out)
	assert.Equal(t, "missing file", out.RefreshError)
}

func TestRunner_ForwardsArguments(t *testing.T) {
	fb := &bridgetest.Fake{}
	r := NewRunner(fb, &countingRefresher{})
	ctx := context.Background()

	_, _ = r.Update(ctx, "a")
	_, _ = r.UpdateAll(ctx)
	_, _ = r.UpdateOG(ctx, "b")
	_, _ = r.ToggleHidden(ctx, "c", false)
	_, _ = r.Delete(ctx, "o/d")

	assert.Equal(t, []bridgetest.Call{
		{Op: bridge.OpUpdate, Repo: "a"},
		{Op: bridge.OpUpdateAll},
		{Op: bridge.OpUpdateOG, Repo: "b"},
		{Op: bridge.OpToggleHidden, Repo: "c", Hidden: false},
		{Op: bridge.OpDelete, Repo: "o/d"},
	}, fb.Calls())
}

func TestRunner_HistoryWithoutStore(t *testing.T) {
	r := NewRunner(&bridgetest.Fake{}, &countingRefresher{})
	runs, err := r.History(context.Background(), store.RunListFilter{})
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

type refresherFunc func(context.Context) error

func (f refresherFunc) Refresh(ctx context.Context) error { return f(ctx) }
