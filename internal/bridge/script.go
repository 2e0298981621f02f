package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/whaleen/portfolio/internal/models"
)

// Scripts names the helper script for each operation, relative to ScriptsDir.
type Scripts struct {
	GitHub       string
	OG           string
	ToggleHidden string
	Delete       string
}

// DefaultScripts returns the stock helper script names.
func DefaultScripts() Scripts {
	return Scripts{
		GitHub:       "fetch-github-data.py",
		OG:           "fetch-og-data.py",
		ToggleHidden: "toggle-hidden.py",
		Delete:       "delete-project.py",
	}
}

// Config configures a ScriptBridge.
type Config struct {
	Interpreter string
	ScriptsDir  string
	WorkDir     string
	Timeout     time.Duration
	Scripts     Scripts
}

// ScriptBridge implements Bridge by running `<interpreter> <script> args...`
// and capturing stdout and stderr.
type ScriptBridge struct {
	cfg Config
	log *zap.Logger
}

// NewScriptBridge returns a ScriptBridge. Empty config fields fall back to
// python3, the stock script names, and no timeout.
func NewScriptBridge(cfg Config, log *zap.Logger) *ScriptBridge {
	if cfg.Interpreter == "" {
		cfg.Interpreter = "python3"
	}
	def := DefaultScripts()
	if cfg.Scripts.GitHub == "" {
		cfg.Scripts.GitHub = def.GitHub
	}
	if cfg.Scripts.OG == "" {
		cfg.Scripts.OG = def.OG
	}
	if cfg.Scripts.ToggleHidden == "" {
		cfg.Scripts.ToggleHidden = def.ToggleHidden
	}
	if cfg.Scripts.Delete == "" {
		cfg.Scripts.Delete = def.Delete
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ScriptBridge{cfg: cfg, log: log}
}

func (b *ScriptBridge) Update(ctx context.Context, repo string) (*Result, error) {
	if err := ValidateRepo(repo, false); err != nil {
		return nil, err
	}
	return b.run(ctx, OpUpdate, repo, b.cfg.Scripts.GitHub, "--repo", repo)
}

func (b *ScriptBridge) UpdateAll(ctx context.Context) (*Result, error) {
	return b.run(ctx, OpUpdateAll, "", b.cfg.Scripts.GitHub)
}

func (b *ScriptBridge) UpdateOG(ctx context.Context, repo string) (*Result, error) {
	if err := ValidateRepo(repo, false); err != nil {
		return nil, err
	}
	res, err := b.run(ctx, OpUpdateOG, repo, b.cfg.Scripts.OG, "--repo", repo)
	var be *Error
	if errors.As(err, &be) && be.Status == models.RunStatusScriptFailed && missingPythonDeps(be.Stderr) {
		be.Msg = "Missing Python dependencies. Run: pip3 install requests beautifulsoup4"
		res.Message = be.Msg
	}
	return res, err
}

func (b *ScriptBridge) ToggleHidden(ctx context.Context, repo string, hidden bool) (*Result, error) {
	if err := ValidateRepo(repo, false); err != nil {
		return nil, err
	}
	value := "no"
	if hidden {
		value = "yes"
	}
	return b.run(ctx, OpToggleHidden, repo, b.cfg.Scripts.ToggleHidden, "--repo", repo, "--hidden", value)
}

func (b *ScriptBridge) Delete(ctx context.Context, repo string) (*Result, error) {
	if err := ValidateRepo(repo, true); err != nil {
		return nil, err
	}
	return b.run(ctx, OpDelete, repo, b.cfg.Scripts.Delete, "--repo", repo)
}

func missingPythonDeps(stderr string) bool {
	return strings.Contains(stderr, "ModuleNotFoundError") || strings.Contains(stderr, "ImportError")
}

func (b *ScriptBridge) scriptPath(name string) string {
	if filepath.IsAbs(name) || b.cfg.ScriptsDir == "" {
		return name
	}
	return filepath.Join(b.cfg.ScriptsDir, name)
}

// run executes one script. Script failures return both a Result and an
// *Error; spawn failures return a Result with no output and an *Error.
func (b *ScriptBridge) run(ctx context.Context, op Op, repo, script string, args ...string) (*Result, error) {
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	fullArgs := append([]string{b.scriptPath(script)}, args...)
	cmd := exec.CommandContext(ctx, b.cfg.Interpreter, fullArgs...)
	cmd.Dir = b.cfg.WorkDir
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := &Result{Op: op, Repo: repo, StartedAt: time.Now().UTC()}
	log := b.log.With(zap.String("op", string(op)), zap.String("repo", repo))
	log.Debug("running admin script", zap.String("interpreter", b.cfg.Interpreter), zap.Strings("args", fullArgs))

	err := cmd.Run()
	res.Duration = time.Since(res.StartedAt)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if err == nil {
		res.Status = models.RunStatusSuccess
		res.Message = successMessage(op, repo)
		log.Info("admin script succeeded", zap.Duration("took", res.Duration))
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.Status = models.RunStatusScriptFailed
		res.ExitCode = exitErr.ExitCode()
		res.Message = fmt.Sprintf("Script failed with code %d", res.ExitCode)
		if ctx.Err() != nil {
			res.Message = fmt.Sprintf("Script stopped: %v", ctx.Err())
		}
		log.Warn("admin script failed",
			zap.Int("exit_code", res.ExitCode),
			zap.String("stderr", strings.TrimSpace(res.Stderr)),
		)
		return res, &Error{
			Op: op, Repo: repo, Status: res.Status, ExitCode: res.ExitCode,
			Stdout: res.Stdout, Stderr: res.Stderr, Msg: res.Message, Err: err,
		}
	}

	res.Status = models.RunStatusSpawnFailed
	res.ExitCode = -1
	res.Message = "Failed to spawn process: " + err.Error()
	log.Error("admin script could not start", zap.Error(err))
	return res, &Error{Op: op, Repo: repo, Status: res.Status, ExitCode: -1, Msg: res.Message, Err: err}
}
