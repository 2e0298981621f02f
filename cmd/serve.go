package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/whaleen/portfolio/internal/api"
	"github.com/whaleen/portfolio/internal/catalog"
	"github.com/whaleen/portfolio/internal/daemon"
	"github.com/whaleen/portfolio/internal/output"
	webui "github.com/whaleen/portfolio/internal/ui"
	"github.com/whaleen/portfolio/internal/watch"
)

const (
	shutdownTimeout = 5 * time.Second
	stopTimeout     = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog API and web UI",
	Long: `Serve the catalog JSON API, admin endpoints, static assets, and the
embedded web UI. By default it listens on port 3001. Use --port to change it.

The server runs in the foreground; 'serve start' runs it in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)

	serveCmd.PersistentFlags().IntP("port", "p", 3001, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.PersistentFlags().Lookup("port"))
}

// pidFile returns the server state file under state_dir.
func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "portfolio-serve.pid"))
}

// serveLogPath returns the log file used by 'serve start'.
func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "portfolio-serve.log")
}

// serveApp is one configured server: catalog, HTTP handler, watcher, and
// a bound listener.
type serveApp struct {
	csv     string
	catalog *catalog.Catalog
	handler http.Handler
	watcher *watch.Watcher
	ln      net.Listener
	pid     *daemon.PIDFile
	log     *zap.Logger
}

// newServeApp builds the server from config and binds the listener.
// An unreadable record store is logged; the server still starts.
func newServeApp(ctx context.Context) (*serveApp, error) {
	log := getLogger()
	csv := viper.GetString("data.projects_csv")

	c, err := getCatalog(ctx)
	if err != nil {
		log.Warn("initial catalog load failed", zap.Error(err))
	}

	runner := getRunner(c)
	if s, err := getStore(); err == nil {
		if n, err := s.PruneRuns(ctx, viper.GetInt("history.keep")); err == nil && n > 0 {
			log.Info("pruned admin run history", zap.Int64("deleted", n))
		}
	}

	opts := []api.Option{
		api.WithLogger(log.Named("api")),
		api.WithMetrics(getMetrics()),
	}
	if h, err := webui.Handler(); err == nil {
		opts = append(opts, api.WithUI(h))
	} else {
		log.Warn("web UI unavailable", zap.Error(err))
	}

	srv := api.NewServer(c, runner, api.Config{
		PublicDir:        viper.GetString("data.public_dir"),
		PreviewFallback:  viper.GetString("preview.fallback"),
		AdminEnabled:     viper.GetBool("admin.enabled"),
		AdminAllowRemote: viper.GetBool("admin.allow_remote"),
		AdminRateLimit:   viper.GetFloat64("admin.rate_limit"),
		AdminBurst:       viper.GetInt("admin.burst"),
	}, opts...)

	app := &serveApp{
		csv:     csv,
		catalog: c,
		handler: srv.Router(),
		pid:     pidFile(),
		log:     log,
	}

	if viper.GetBool("watch.enabled") {
		app.watcher = watch.New(csv, c,
			watch.WithDebounce(viper.GetDuration("watch.debounce")),
			watch.WithLogger(log.Named("watch")),
		)
	}

	addr := fmt.Sprintf(":%d", viper.GetInt("port"))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	app.ln = ln
	return app, nil
}

// Port returns the bound port.
func (a *serveApp) Port() int {
	if tcp, ok := a.ln.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *serveApp) Run(ctx context.Context) error {
	if err := a.pid.Write(a.Port(), a.csv); err != nil {
		a.log.Warn("write PID file", zap.Error(err))
	}
	defer func() { _ = a.pid.Remove() }()

	httpSrv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("serving catalog", zap.Int("port", a.Port()), zap.String("csv", a.csv))
		if err := httpSrv.Serve(a.ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		a.log.Info("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})

	if a.watcher != nil {
		g.Go(func() error {
			if err := a.watcher.Run(gctx); err != nil {
				a.log.Warn("record store watch disabled", zap.Error(err))
			}
			return nil
		})
	}

	return g.Wait()
}

func serveRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	pf := pidFile()
	if pid, running := pf.IsRunning(); running && pid != os.Getpid() {
		return fmt.Errorf("server already running (PID %d)", pid)
	}

	if dryRun {
		ui.DryRunMsg("Would serve %s on port %d", viper.GetString("data.projects_csv"), viper.GetInt("port"))
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, stopSignals()...)
	defer stop()

	app, err := newServeApp(ctx)
	if err != nil {
		return err
	}

	ui.Success("Serving at http://localhost:%d", app.Port())
	return app.Run(ctx)
}

func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (PID %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	args := []string{"serve", "--port", strconv.Itoa(viper.GetInt("port"))}
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	logPath := serveLogPath()

	if dryRun {
		ui.DryRunMsg("Would run %s %v (log: %s)", exe, args, logPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	detach(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	pid := child.Process.Pid
	_ = child.Process.Release()

	ui.Success("Server started (PID %d) at http://localhost:%d", pid, viper.GetInt("port"))
	ui.Info("Log: %s", logPath)
	return nil
}

func serveStatusRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		ui.Info("Server is not running")
		return nil
	}

	st, err := pf.ReadState()
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s\n", output.Green("running"))
	fmt.Fprintf(ui.Out, "  PID:      %d\n", pid)
	if st.Port > 0 {
		fmt.Fprintf(ui.Out, "  URL:      %s\n", st.URL())
	}
	if st.CSV != "" {
		fmt.Fprintf(ui.Out, "  Catalog:  %s\n", st.CSV)
	}
	if !st.StartedAt.IsZero() {
		fmt.Fprintf(ui.Out, "  Uptime:   %s\n", time.Since(st.StartedAt).Round(time.Second))
	}
	if st.Port > 0 {
		fmt.Fprintf(ui.Out, "  Health:   %s\n", probeHealth(st.URL()+"/health"))
	}
	return nil
}

// probeHealth returns the /health status line of a running server.
func probeHealth(url string) string {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return output.Red("unreachable")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return output.Yellow(resp.Status)
	}
	return output.Green("ok")
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		if _, err := os.Stat(pf.Path); err == nil {
			_ = pf.Remove()
			ui.VerboseLog("Removed stale PID file %s", pf.Path)
		}
		return fmt.Errorf("server is not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (PID %d)", pid)
		return nil
	}

	if err := pf.Signal(termSignal()); err != nil {
		return fmt.Errorf("signal server: %w", err)
	}

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		if _, alive := pf.IsRunning(); !alive {
			_ = pf.Remove()
			ui.Success("Server stopped (PID %d)", pid)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	ui.Warning("Server did not exit in %s; killing", stopTimeout)
	if err := pf.Signal(killSignal()); err != nil {
		return fmt.Errorf("kill server: %w", err)
	}
	_ = pf.Remove()
	ui.Success("Server killed (PID %d)", pid)
	return nil
}
