package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/whaleen/portfolio/internal/mcp"
	"github.com/whaleen/portfolio/internal/watch"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for catalog queries",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client query the portfolio catalog natively. Configure it with:

  {
    "mcpServers": {
      "portfolio": { "command": "portfolio", "args": ["mcp"] }
    }
  }

Available tools: portfolio_list_projects, portfolio_get_project,
portfolio_catalog_status, portfolio_facets`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// mcpRun serves MCP on stdio. stdout carries the protocol, so logs go to
// stderr only.
func mcpRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := getLogger()
	c, err := getCatalog(ctx)
	if err != nil {
		log.Warn("catalog load failed; serving empty catalog", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// stdin closing ends the session; stop the watcher with it.
		defer cancel()
		return mcp.NewServer(c, buildVersion).ServeStdio(gctx)
	})

	if viper.GetBool("watch.enabled") {
		w := watch.New(viper.GetString("data.projects_csv"), c,
			watch.WithDebounce(viper.GetDuration("watch.debounce")),
			watch.WithLogger(log.Named("watch")),
		)
		g.Go(func() error {
			if err := w.Run(gctx); err != nil {
				log.Warn("record store watch disabled", zap.Error(err))
			}
			return nil
		})
	}

	return g.Wait()
}
