package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/whaleen/portfolio/internal/bridge"
	"github.com/whaleen/portfolio/internal/models"
	"github.com/whaleen/portfolio/internal/output"
	"github.com/whaleen/portfolio/internal/refresh"
	"github.com/whaleen/portfolio/internal/store"
)

var (
	historyRepo   string
	historyOp     string
	historyStatus string
	historyLimit  int
	pruneKeep     int
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Run record store maintenance scripts",
	Long: `Run the helper scripts that update the project record store, then
reload the catalog. Every run is recorded in the run history.`,
}

var adminUpdateCmd = &cobra.Command{
	Use:   "update <repo>",
	Short: "Refresh GitHub data for one repo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return adminRun(cmd.Context(), bridge.OpUpdate, args[0], func(ctx context.Context, r *refresh.Runner) (*refresh.Outcome, error) {
			return r.Update(ctx, args[0])
		})
	},
}

var adminUpdateAllCmd = &cobra.Command{
	Use:   "update-all",
	Short: "Refresh GitHub data for every repo",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return adminRun(cmd.Context(), bridge.OpUpdateAll, "", func(ctx context.Context, r *refresh.Runner) (*refresh.Outcome, error) {
			return r.UpdateAll(ctx)
		})
	},
}

var adminOGCmd = &cobra.Command{
	Use:   "og <repo>",
	Short: "Refresh Open Graph data for one repo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return adminRun(cmd.Context(), bridge.OpUpdateOG, args[0], func(ctx context.Context, r *refresh.Runner) (*refresh.Outcome, error) {
			return r.UpdateOG(ctx, args[0])
		})
	},
}

var adminHideCmd = &cobra.Command{
	Use:   "hide <repo>",
	Short: "Hide a project from listings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return adminRun(cmd.Context(), bridge.OpToggleHidden, args[0], func(ctx context.Context, r *refresh.Runner) (*refresh.Outcome, error) {
			return r.ToggleHidden(ctx, args[0], true)
		})
	},
}

var adminUnhideCmd = &cobra.Command{
	Use:   "unhide <repo>",
	Short: "Show a hidden project in listings again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return adminRun(cmd.Context(), bridge.OpToggleHidden, args[0], func(ctx context.Context, r *refresh.Runner) (*refresh.Outcome, error) {
			return r.ToggleHidden(ctx, args[0], false)
		})
	},
}

var adminDeleteCmd = &cobra.Command{
	Use:   "delete <org/repo>",
	Short: "Delete a project from the record store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return adminRun(cmd.Context(), bridge.OpDelete, args[0], func(ctx context.Context, r *refresh.Runner) (*refresh.Outcome, error) {
			return r.Delete(ctx, args[0])
		})
	},
}

var adminHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent admin runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return adminHistoryRun(cmd.Context())
	},
}

var adminPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old run history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return adminPruneRun(cmd.Context())
	},
}

func init() {
	adminHistoryCmd.Flags().StringVar(&historyRepo, "repo", "", "Filter by repo")
	adminHistoryCmd.Flags().StringVar(&historyOp, "op", "", "Filter by operation (update, update-all, update-og, toggle-hidden, delete)")
	adminHistoryCmd.Flags().StringVar(&historyStatus, "status", "", "Filter by status (success, script_failed, spawn_failed)")
	adminHistoryCmd.Flags().IntVar(&historyLimit, "limit", store.DefaultRunLimit, "Maximum runs to show")

	adminPruneCmd.Flags().IntVar(&pruneKeep, "keep", 0, "Runs to keep (default history.keep)")

	adminCmd.AddCommand(adminUpdateCmd)
	adminCmd.AddCommand(adminUpdateAllCmd)
	adminCmd.AddCommand(adminOGCmd)
	adminCmd.AddCommand(adminHideCmd)
	adminCmd.AddCommand(adminUnhideCmd)
	adminCmd.AddCommand(adminDeleteCmd)
	adminCmd.AddCommand(adminHistoryCmd)
	adminCmd.AddCommand(adminPruneCmd)
	rootCmd.AddCommand(adminCmd)
}

// runnerFunc is replaceable in tests.
var runnerFunc = defaultRunner

func defaultRunner(ctx context.Context) (*refresh.Runner, error) {
	c, err := getCatalog(ctx)
	if err != nil {
		// The scripts may repair the record store; report and continue.
		ui.Warning("%v", err)
	}
	return getRunner(c), nil
}

func adminRun(ctx context.Context, op bridge.Op, repo string, call func(context.Context, *refresh.Runner) (*refresh.Outcome, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateAdminArg(op, repo); err != nil {
		return err
	}

	target := string(op)
	if repo != "" {
		target += " " + repo
	}
	if dryRun {
		ui.DryRunMsg("Would run %s (%s in %s)", target,
			viper.GetString("bridge.interpreter"), viper.GetString("bridge.scripts_dir"))
		return nil
	}

	r, err := runnerFunc(ctx)
	if err != nil {
		return err
	}

	ui.Info("Running %s...", output.Cyan(target))
	out, err := call(ctx, r)
	if out != nil && out.Result != nil {
		if s := strings.TrimSpace(out.Result.Stdout); s != "" && (verbose || err != nil) {
			fmt.Fprintln(ui.Out, s)
		}
		if s := strings.TrimSpace(out.Result.Stderr); s != "" && err != nil {
			fmt.Fprintln(ui.ErrOut, s)
		}
	}
	if err != nil {
		return err
	}

	ui.Success("%s (%s)", out.Result.Message, out.Result.Duration.Round(time.Millisecond))
	if out.RefreshError != "" {
		ui.Warning("Catalog reload failed: %s", out.RefreshError)
	}
	if out.RunID != "" {
		ui.VerboseLog("Recorded run %s", out.RunID)
	}
	return nil
}

// validateAdminArg checks the repo argument before anything is spawned.
func validateAdminArg(op bridge.Op, repo string) error {
	if op == bridge.OpUpdateAll {
		return nil
	}
	err := bridge.ValidateRepo(repo, op == bridge.OpDelete)
	if errors.Is(err, bridge.ErrInvalidRepo) && op == bridge.OpDelete {
		return fmt.Errorf("%w: delete needs org/repo", bridge.ErrInvalidRepo)
	}
	return err
}

func adminHistoryRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	runs, err := s.ListRuns(ctx, store.RunListFilter{
		Repo:   historyRepo,
		Op:     historyOp,
		Status: models.RunStatus(historyStatus),
		Limit:  historyLimit,
	})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.Info("No admin runs recorded.")
		return nil
	}

	table := ui.Table([]string{"ID", "Started", "Op", "Repo", "Status", "Took", "Message"})
	for _, run := range runs {
		_ = table.Append([]string{
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Op,
			run.Repo,
			output.StatusColor(string(run.Status)),
			(time.Duration(run.DurationMs) * time.Millisecond).String(),
			output.Truncate(run.Message, 60),
		})
	}
	_ = table.Render()
	return nil
}

func adminPruneRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	keep := pruneKeep
	if keep <= 0 {
		keep = viper.GetInt("history.keep")
	}

	if dryRun {
		ui.DryRunMsg("Would delete all but the newest %d runs", keep)
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	n, err := s.PruneRuns(ctx, keep)
	if err != nil {
		return err
	}
	ui.Success("Deleted %d runs (kept newest %d)", n, keep)
	return nil
}
