package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whaleen/portfolio/internal/catalog"
	"github.com/whaleen/portfolio/internal/models"
)

const projectCSV = `Repo,GitHub Org,Description,Featured Project,Resume Worthy,Project Type,Hidden,Language,Stars,Topics
astrds,whaleen,Asteroids clone,yes,yes,game,,TypeScript,12,"solana,canvas"
tiling,whaleen,Video tiling,no,yes,tool,yes,Go,3,
earth,nothingdao,Map game,yes,no,app,,TypeScript,,solana
astrds,nothingdao,Fork of asteroids,no,no,game,,TypeScript,,
`

func writeProjects(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "projects.csv"), []byte(projectCSV), 0o644))
}

// resetListFlags restores the list flags after a test changes them.
func resetListFlags(t *testing.T) {
	t.Cleanup(func() {
		listOrg, listType, listSearch = "", "", ""
		listResumeWorthy, listFeatured, listAll = false, false, false
	})
}

func keys(ps []models.Project) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Key()
	}
	return out
}

func TestSplitKey(t *testing.T) {
	org, repo := splitKey("whaleen/astrds")
	assert.Equal(t, "whaleen", org)
	assert.Equal(t, "astrds", repo)

	org, repo = splitKey("astrds")
	assert.Empty(t, org)
	assert.Equal(t, "astrds", repo)
}

func TestListProjects_Flags(t *testing.T) {
	dir, _ := testEnv(t)
	writeProjects(t, dir)
	resetListFlags(t)

	c, err := getCatalog(context.Background())
	require.NoError(t, err)

	tests := []struct {
		name  string
		setup func()
		want  []string
	}{
		{"visible only", func() {}, []string{"whaleen/astrds", "nothingdao/earth", "nothingdao/astrds"}},
		{"all", func() { listAll = true }, []string{"whaleen/astrds", "whaleen/tiling", "nothingdao/earth", "nothingdao/astrds"}},
		{"org", func() { listOrg = "whaleen" }, []string{"whaleen/astrds"}},
		{"org all", func() { listOrg = catalog.All }, []string{"whaleen/astrds", "nothingdao/earth", "nothingdao/astrds"}},
		{"type", func() { listType = "game" }, []string{"whaleen/astrds", "nothingdao/astrds"}},
		{"featured", func() { listFeatured = true }, []string{"whaleen/astrds", "nothingdao/earth"}},
		{"resume worthy", func() { listResumeWorthy = true; listAll = true }, []string{"whaleen/astrds", "whaleen/tiling"}},
		{"search", func() { listSearch = "map" }, []string{"nothingdao/earth"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listOrg, listType, listSearch = "", "", ""
			listResumeWorthy, listFeatured, listAll = false, false, false
			tt.setup()
			if diff := cmp.Diff(tt.want, keys(listProjects(c))); diff != "" {
				t.Errorf("listProjects mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProjectListRun(t *testing.T) {
	dir, out := testEnv(t)
	writeProjects(t, dir)
	resetListFlags(t)

	require.NoError(t, projectListRun(context.Background()))
	assert.Contains(t, out.String(), "whaleen/astrds")
	assert.NotContains(t, out.String(), "tiling")

	out.Reset()
	listAll = true
	require.NoError(t, projectListRun(context.Background()))
	assert.Contains(t, out.String(), "whaleen/tiling")
	assert.Contains(t, out.String(), "(hidden)")

	out.Reset()
	listSearch = "nothing-matches-this"
	require.NoError(t, projectListRun(context.Background()))
	assert.Contains(t, out.String(), "No projects match")
}

func TestProjectListRun_MissingCatalog(t *testing.T) {
	testEnv(t)
	err := projectListRun(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load catalog")
}

func TestFindProject(t *testing.T) {
	dir, _ := testEnv(t)
	writeProjects(t, dir)
	ctx := context.Background()

	p, err := findProject(ctx, "nothingdao/earth")
	require.NoError(t, err)
	assert.Equal(t, "Map game", p.Summary)

	p, err = findProject(ctx, "tiling")
	require.NoError(t, err)
	assert.Equal(t, "whaleen", p.Org)

	_, err = findProject(ctx, "astrds")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")

	_, err = findProject(ctx, "whaleen/nope")
	var nf *catalog.NotFoundError
	assert.True(t, errors.As(err, &nf))

	_, err = findProject(ctx, "nope")
	assert.True(t, errors.As(err, &nf))
}

func TestProjectShowRun(t *testing.T) {
	dir, out := testEnv(t)
	writeProjects(t, dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "social-previews", "whaleen"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "social-previews", "whaleen", "astrds.png"), []byte("png"), 0o644))

	require.NoError(t, projectShowRun(context.Background(), "whaleen/astrds"))
	s := out.String()
	assert.Contains(t, s, "whaleen/astrds")
	assert.Contains(t, s, "Asteroids clone")
	assert.Contains(t, s, "TypeScript")
	assert.Contains(t, s, "12")
	assert.Contains(t, s, "/social-previews/whaleen/astrds.png")
}

func TestProjectBlurbRun_NoAPIKey(t *testing.T) {
	dir, _ := testEnv(t)
	writeProjects(t, dir)
	t.Setenv("ANTHROPIC_API_KEY", "")

	err := projectBlurbRun(context.Background(), "whaleen/astrds")
	assert.ErrorIs(t, err, errNoAPIKey)
}

func TestProjectBlurbRun_DryRun(t *testing.T) {
	dir, out := testEnv(t)
	writeProjects(t, dir)
	dryRun = true
	ui.DryRun = true

	require.NoError(t, projectBlurbRun(context.Background(), "whaleen/astrds"))
	assert.Contains(t, out.String(), "Would draft a resume blurb for whaleen/astrds")
}

func TestProjectBlurbRun_NotFound(t *testing.T) {
	dir, _ := testEnv(t)
	writeProjects(t, dir)

	err := projectBlurbRun(context.Background(), "whaleen/nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project not found")
}
