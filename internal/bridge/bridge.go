// Package bridge forwards admin operations to out-of-process helper scripts
// that mutate the project record store.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/whaleen/portfolio/internal/models"
)

// Op names an admin bridge operation.
type Op string

const (
	OpUpdate       Op = "update"
	OpUpdateAll    Op = "update-all"
	OpUpdateOG     Op = "update-og"
	OpToggleHidden Op = "toggle-hidden"
	OpDelete       Op = "delete"
)

// Bridge is the admin interface to the record store. Every call blocks until
// the underlying process exits.
type Bridge interface {
	Update(ctx context.Context, repo string) (*Result, error)
	UpdateAll(ctx context.Context) (*Result, error)
	UpdateOG(ctx context.Context, repo string) (*Result, error)
	ToggleHidden(ctx context.Context, repo string, hidden bool) (*Result, error)
	Delete(ctx context.Context, repo string) (*Result, error)
}

// Result is the captured outcome of one bridge call. It is returned for
// successes and script failures alike; Status tells them apart.
type Result struct {
	Op        Op               `json:"op"`
	Repo      string           `json:"repo,omitempty"`
	Status    models.RunStatus `json:"status"`
	Message   string           `json:"message"`
	ExitCode  int              `json:"exit_code"`
	Stdout    string           `json:"stdout,omitempty"`
	Stderr    string           `json:"stderr,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
}

// OK reports whether the operation succeeded.
func (r *Result) OK() bool { return r != nil && r.Status == models.RunStatusSuccess }

// Error is returned when a bridge operation fails, either because the script
// exited non-zero or because the process could not be started.
type Error struct {
	Op       Op
	Repo     string
	Status   models.RunStatus
	ExitCode int
	Stdout   string
	Stderr   string
	Msg      string
	Err      error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

var (
	// ErrRepoRequired is returned when an operation needs a repo identifier.
	ErrRepoRequired = errors.New(`repo parameter is required (e.g., "whaleen/astrds" or "astrds")`)
	// ErrInvalidRepo is returned for identifiers that are not "repo" or "org/repo".
	ErrInvalidRepo = errors.New("invalid repo identifier")
)

var repoIdent = regexp.MustCompile(`^[A-Za-z0-9._][A-Za-z0-9._-]*(/[A-Za-z0-9._][A-Za-z0-9._-]*)?$`)

// ValidateRepo checks a repo identifier. It accepts "repo" or "org/repo";
// requireOrg rejects the bare form.
func ValidateRepo(repo string, requireOrg bool) error {
	if repo == "" {
		return ErrRepoRequired
	}
	if !repoIdent.MatchString(repo) {
		return fmt.Errorf("%w: %q", ErrInvalidRepo, repo)
	}
	if requireOrg && !strings.Contains(repo, "/") {
		return fmt.Errorf("%w: %q (expected org/repo)", ErrInvalidRepo, repo)
	}
	return nil
}

// IsInputError reports whether err is a caller mistake rather than a run failure.
func IsInputError(err error) bool {
	return errors.Is(err, ErrRepoRequired) || errors.Is(err, ErrInvalidRepo)
}

func successMessage(op Op, repo string) string {
	switch op {
	case OpUpdate:
		return "Successfully updated " + repo
	case OpUpdateAll:
		return "Successfully updated all repos"
	case OpUpdateOG:
		return "Successfully updated OG data for " + repo
	case OpToggleHidden:
		return "Successfully toggled hidden status for " + repo
	case OpDelete:
		return "Successfully deleted " + repo
	default:
		return "Successfully ran " + string(op)
	}
}
