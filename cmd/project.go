package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/whaleen/portfolio/internal/catalog"
	"github.com/whaleen/portfolio/internal/llm"
	"github.com/whaleen/portfolio/internal/models"
	"github.com/whaleen/portfolio/internal/output"
	"github.com/whaleen/portfolio/internal/preview"
)

var (
	listOrg          string
	listType         string
	listSearch       string
	listResumeWorthy bool
	listFeatured     bool
	listAll          bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Browse catalog projects",
	Long:  "List, show, and draft resume blurbs for projects in the catalog.",
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List catalog projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun(cmd.Context())
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <org/repo>",
	Short: "Show one project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectShowRun(cmd.Context(), args[0])
	},
}

var projectBlurbCmd = &cobra.Command{
	Use:   "blurb <org/repo>",
	Short: "Draft a resume entry for a project",
	Long:  "Draft a resume headline, bullets, and skills for one project using the Anthropic API.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectBlurbRun(cmd.Context(), args[0])
	},
}

func init() {
	projectListCmd.Flags().StringVar(&listOrg, "org", "", `Filter by GitHub org ("all" for every org)`)
	projectListCmd.Flags().StringVar(&listType, "type", "", "Filter by project type")
	projectListCmd.Flags().StringVar(&listSearch, "search", "", "Search repo, description, notes, and tags")
	projectListCmd.Flags().BoolVar(&listResumeWorthy, "resume-worthy", false, "Only resume-worthy projects")
	projectListCmd.Flags().BoolVar(&listFeatured, "featured", false, "Only featured projects")
	projectListCmd.Flags().BoolVar(&listAll, "all", false, "Include hidden projects")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectBlurbCmd)
	rootCmd.AddCommand(projectCmd)
}

// splitKey parses "org/repo". A bare repo has an empty org.
func splitKey(key string) (org, repo string) {
	if i := strings.Index(key, "/"); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}

// listProjects applies the list flags to the catalog.
func listProjects(c *catalog.Catalog) []models.Project {
	ps := c.All()
	if !listAll {
		ps = catalog.Visible(ps)
	}
	if listFeatured {
		ps = catalog.Featured(ps)
	}
	return catalog.Filter(ps, catalog.Criteria{
		Org:              listOrg,
		Type:             listType,
		Query:            listSearch,
		ResumeWorthyOnly: listResumeWorthy,
	})
}

func projectListRun(ctx context.Context) error {
	c, err := getCatalog(ctx)
	if err != nil {
		return err
	}

	projects := listProjects(c)
	if len(projects) == 0 {
		ui.Info("No projects match.")
		return nil
	}

	table := ui.Table([]string{"Project", "Type", "Language", "Stars", "Featured", "Tags"})
	for _, p := range projects {
		name := output.Cyan(p.Key())
		if p.Hidden {
			name += " " + output.Yellow("(hidden)")
		}
		_ = table.Append([]string{
			name,
			p.ProjectType,
			p.EffectiveLanguage,
			output.Count(string(p.Stars)),
			output.Flag(p.Featured),
			strings.Join(catalog.TopTags(p.Tags, 3), ", "),
		})
	}
	_ = table.Render()

	ui.VerboseLog("%d of %d projects", len(projects), len(c.All()))
	return nil
}

func findProject(ctx context.Context, key string) (models.Project, error) {
	c, err := getCatalog(ctx)
	if err != nil {
		return models.Project{}, err
	}
	org, repo := splitKey(key)
	if org != "" {
		return c.Find(org, repo)
	}

	// Bare repo name: accept it when exactly one org has it.
	var matches []models.Project
	for _, p := range c.All() {
		if p.Repo == repo {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return c.Find(org, repo)
	case 1:
		return matches[0], nil
	default:
		return models.Project{}, fmt.Errorf("%q is ambiguous (%d orgs); use org/repo", repo, len(matches))
	}
}

func projectShowRun(ctx context.Context, key string) error {
	p, err := findProject(ctx, key)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(p.Key()))
	if p.Summary != "" {
		fmt.Fprintf(ui.Out, "  %s\n", p.Summary)
	}
	fmt.Fprintln(ui.Out)

	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(ui.Out, "  %-14s %s\n", label+":", value)
		}
	}
	field("Type", p.ProjectType)
	field("Status", p.Status)
	field("Language", p.EffectiveLanguage)
	field("Framework", p.Framework)
	field("Styling", p.Styling)
	field("Backend", p.Backend)
	field("Database", p.Database)
	field("Blockchain", p.Blockchain)
	field("License", p.License)
	field("URL", p.URL)
	field("Homepage", p.Homepage)
	field("Last updated", p.LastUpdated)
	if len(p.Tags) > 0 {
		field("Tags", strings.Join(p.Tags, ", "))
	}
	fmt.Fprintln(ui.Out)

	fmt.Fprintf(ui.Out, "  %-14s %s  %-10s %s\n", "Stars:", output.Count(string(p.Stars)), "Forks:", output.Count(string(p.Forks)))
	fmt.Fprintf(ui.Out, "  %-14s %s  %-10s %s\n", "Featured:", output.Flag(p.Featured), "Resume:", output.Flag(p.ResumeWorthy))
	fmt.Fprintf(ui.Out, "  %-14s %s  %-10s %s\n", "Hidden:", output.Flag(p.Hidden), "Archived:", output.Flag(p.Archived))

	r := preview.Resolver{Fallback: viper.GetString("preview.fallback")}
	if dir := viper.GetString("data.public_dir"); dir != "" {
		r.Root = os.DirFS(dir)
	}
	if img := r.Resolve(p.Org, p.Repo); img != "" {
		fmt.Fprintf(ui.Out, "  %-14s %s\n", "Preview:", img)
	}

	if p.LatestCommitMessage != "" {
		fmt.Fprintln(ui.Out)
		fmt.Fprintf(ui.Out, "  Last commit:   %s\n", output.Truncate(p.LatestCommitMessage, 72))
	}
	return nil
}

// newLLMClient creates an LLM client from config/env, or returns nil if no API key is configured.
func newLLMClient() *llm.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model"))
}

var errNoAPIKey = errors.New("no Anthropic API key configured (set anthropic.api_key or ANTHROPIC_API_KEY)")

func projectBlurbRun(ctx context.Context, key string) error {
	p, err := findProject(ctx, key)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would draft a resume blurb for %s", p.Key())
		return nil
	}

	client := newLLMClient()
	if client == nil {
		return errNoAPIKey
	}

	ui.VerboseLog("Drafting blurb for %s with %s", p.Key(), viper.GetString("anthropic.model"))
	b, err := client.ResumeBlurb(ctx, p)
	if err != nil {
		return fmt.Errorf("draft blurb: %w", err)
	}

	fmt.Fprintf(ui.Out, "%s\n", output.Green(b.Headline))
	for _, line := range b.Bullets {
		fmt.Fprintf(ui.Out, "  - %s\n", line)
	}
	if len(b.Skills) > 0 {
		fmt.Fprintf(ui.Out, "\n  Skills: %s\n", strings.Join(b.Skills, ", "))
	}
	return nil
}
