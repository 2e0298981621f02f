package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/whaleen/portfolio/internal/bridge"
	"github.com/whaleen/portfolio/internal/catalog"
	"github.com/whaleen/portfolio/internal/logging"
	"github.com/whaleen/portfolio/internal/metrics"
	"github.com/whaleen/portfolio/internal/output"
	"github.com/whaleen/portfolio/internal/refresh"
	"github.com/whaleen/portfolio/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	logger    *zap.Logger
	promReg   *metrics.Metrics

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Portfolio catalog - browse, serve, and curate project records",
	Long: `portfolio loads the project catalog from the CSV record store and
serves it as a JSON API and web UI. Admin commands run the helper scripts
that update the record store and then reload the catalog.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.Execute()
	if dataStore != nil {
		_ = dataStore.Close()
	}
	if logger != nil {
		_ = logging.Sync(logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return rootRun(cmd)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/portfolio/config.yaml)")
}

func initConfig() {
	// .env values become process env before viper reads it; real env wins.
	_ = godotenv.Load()

	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PORTFOLIO")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	defaultDir, _ := configDirFunc()
	setDefaults(defaultDir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default value.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "portfolio.db"))
	viper.SetDefault("port", 3001)
	viper.SetDefault("data.projects_csv", filepath.Join("public", "data", "projects.csv"))
	viper.SetDefault("data.public_dir", "public")
	viper.SetDefault("bridge.interpreter", "python3")
	viper.SetDefault("bridge.scripts_dir", "scripts")
	viper.SetDefault("bridge.workdir", ".")
	viper.SetDefault("bridge.timeout", "5m")
	viper.SetDefault("admin.enabled", true)
	viper.SetDefault("admin.allow_remote", false)
	viper.SetDefault("admin.rate_limit", 1.0)
	viper.SetDefault("admin.burst", 3)
	viper.SetDefault("watch.enabled", true)
	viper.SetDefault("watch.debounce", "500ms")
	viper.SetDefault("preview.fallback", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("history.keep", 500)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Store, catalog and logger are created lazily so config/version run
	// without touching the record store.
}

// rootRun handles `portfolio` with no subcommand: load the catalog and
// print a summary.
func rootRun(cmd *cobra.Command) error {
	c, err := getCatalog(cmd.Context())
	if err != nil {
		ui.Warning("%v", err)
		return cmd.Help()
	}
	return catalogSummaryRun(c)
}

func catalogSummaryRun(c *catalog.Catalog) error {
	all := c.All()
	visible := catalog.Visible(all)
	facets := c.Facets()

	fmt.Fprintf(ui.Out, "%s\n", output.Cyan("Portfolio catalog"))
	fmt.Fprintf(ui.Out, "  Source:        %s\n", viper.GetString("data.projects_csv"))
	fmt.Fprintf(ui.Out, "  Projects:      %d (%d hidden)\n", len(all), len(all)-len(visible))
	fmt.Fprintf(ui.Out, "  Featured:      %d\n", len(catalog.Featured(visible)))
	fmt.Fprintf(ui.Out, "  Resume worthy: %d\n", len(catalog.ResumeWorthy(visible)))
	fmt.Fprintf(ui.Out, "  Orgs:          %d\n", len(facets.Orgs))
	fmt.Fprintf(ui.Out, "  Types:         %d\n", len(facets.Types))
	return nil
}

// getLogger returns the shared zap logger, built from log.level/log.format.
func getLogger() *zap.Logger {
	if logger != nil {
		return logger
	}
	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}
	l, err := logging.New(level, viper.GetString("log.format"))
	if err != nil {
		ui.Warning("Invalid log config, using defaults: %v", err)
		l, _ = logging.New("info", "console")
	}
	logger = l
	return logger
}

// getMetrics returns the process-wide Prometheus collectors.
func getMetrics() *metrics.Metrics {
	if promReg == nil {
		promReg = metrics.New()
	}
	return promReg
}

// getCatalog builds a catalog over data.projects_csv and loads it once.
func getCatalog(ctx context.Context) (*catalog.Catalog, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	path := viper.GetString("data.projects_csv")
	c := catalog.New(catalog.NewFileSource(path),
		catalog.WithLogger(getLogger().Named("catalog")),
		catalog.WithMetrics(getMetrics()),
	)
	if err := c.Refresh(ctx); err != nil {
		return c, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return c, nil
}

// getStore returns the shared run history store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx := rootCmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getBridge builds the script bridge from the bridge.* keys.
func getBridge() *bridge.ScriptBridge {
	return bridge.NewScriptBridge(bridge.Config{
		Interpreter: viper.GetString("bridge.interpreter"),
		ScriptsDir:  viper.GetString("bridge.scripts_dir"),
		WorkDir:     viper.GetString("bridge.workdir"),
		Timeout:     viper.GetDuration("bridge.timeout"),
	}, getLogger().Named("bridge"))
}

// getRunner wires the bridge, the catalog and the run history together.
// A store that cannot be opened only disables history.
func getRunner(c *catalog.Catalog) *refresh.Runner {
	opts := []refresh.Option{
		refresh.WithMetrics(getMetrics()),
		refresh.WithLogger(getLogger().Named("admin")),
	}
	if s, err := getStore(); err == nil {
		opts = append(opts, refresh.WithStore(s))
	} else {
		ui.Warning("Run history disabled: %v", err)
	}
	return refresh.NewRunner(getBridge(), c, opts...)
}
