// Package bridgetest provides an in-memory bridge.Bridge for tests.
package bridgetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/whaleen/portfolio/internal/bridge"
	"github.com/whaleen/portfolio/internal/models"
)

// Call records one invocation of the fake.
type Call struct {
	Op     bridge.Op
	Repo   string
	Hidden bool
}

// Fake implements bridge.Bridge without spawning processes. Status selects
// the outcome of every call; OnCall runs before the result is built.
type Fake struct {
	mu     sync.Mutex
	calls  []Call
	Status models.RunStatus
	Stdout string
	Stderr string
	Code   int
	OnCall func(Call)
}

var _ bridge.Bridge = (*Fake)(nil)

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) Update(ctx context.Context, repo string) (*bridge.Result, error) {
	if err := bridge.ValidateRepo(repo, false); err != nil {
		return nil, err
	}
	return f.run(Call{Op: bridge.OpUpdate, Repo: repo})
}

func (f *Fake) UpdateAll(ctx context.Context) (*bridge.Result, error) {
	return f.run(Call{Op: bridge.OpUpdateAll})
}

func (f *Fake) UpdateOG(ctx context.Context, repo string) (*bridge.Result, error) {
	if err := bridge.ValidateRepo(repo, false); err != nil {
		return nil, err
	}
	return f.run(Call{Op: bridge.OpUpdateOG, Repo: repo})
}

func (f *Fake) ToggleHidden(ctx context.Context, repo string, hidden bool) (*bridge.Result, error) {
	if err := bridge.ValidateRepo(repo, false); err != nil {
		return nil, err
	}
	return f.run(Call{Op: bridge.OpToggleHidden, Repo: repo, Hidden: hidden})
}

func (f *Fake) Delete(ctx context.Context, repo string) (*bridge.Result, error) {
	if err := bridge.ValidateRepo(repo, true); err != nil {
		return nil, err
	}
	return f.run(Call{Op: bridge.OpDelete, Repo: repo})
}

func (f *Fake) run(c Call) (*bridge.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	status := f.Status
	f.mu.Unlock()

	if f.OnCall != nil {
		f.OnCall(c)
	}

	res := &bridge.Result{
		Op:        c.Op,
		Repo:      c.Repo,
		Status:    status,
		Stdout:    f.Stdout,
		Stderr:    f.Stderr,
		StartedAt: time.Now().UTC(),
		Duration:  time.Millisecond,
	}
	switch status {
	case "", models.RunStatusSuccess:
		res.Status = models.RunStatusSuccess
		res.Message = "ok"
		return res, nil
	case models.RunStatusSpawnFailed:
		res.ExitCode = -1
		res.Stdout, res.Stderr = "", ""
		res.Message = "Failed to spawn process: fake"
	default:
		res.ExitCode = f.Code
		res.Message = fmt.Sprintf("Script failed with code %d", f.Code)
	}
	return res, &bridge.Error{
		Op: c.Op, Repo: c.Repo, Status: res.Status, ExitCode: res.ExitCode,
		Stdout: res.Stdout, Stderr: res.Stderr, Msg: res.Message,
	}
}
