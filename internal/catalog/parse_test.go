package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `Repo,GitHub Org,Description,Notes,Language,Primary Language,Featured Project,Resume Worthy,Project Type,Topics,Key Tags,Homepage,Live URL,Stars,Hidden,Deployment Platform
astrds,whaleen,Asteroids clone,,JavaScript,TypeScript,yes,YES,game,"solana, web3, game",,https://astrds.example,,12,,vercel
,whaleen,orphan row without repo,,,,yes,yes,app,,,,,,,
tiling,whaleen,,Video tiling notes,Go,,no,Yes,tool,,"video, ffmpeg",,https://tiling.example,,yes,
sol-lib,nothingdao,Helpers,,Rust,Rust,maybe,,library,,,,,3,no,
`

func TestParse_Basic(t *testing.T) {
	ps, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, ps, 3)

	assert.Equal(t, "astrds", ps[0].Repo)
	assert.Equal(t, "tiling", ps[1].Repo)
	assert.Equal(t, "sol-lib", ps[2].Repo)

	a := ps[0]
	assert.Equal(t, "whaleen", a.Org)
	assert.True(t, a.Featured)
	assert.True(t, a.ResumeWorthy)
	assert.Equal(t, "game", a.ProjectType)
	assert.Equal(t, "TypeScript", a.EffectiveLanguage)
	assert.Equal(t, "Asteroids clone", a.Summary)
	assert.Equal(t, "https://astrds.example", a.URL)
	assert.Equal(t, []string{"solana", "web3", "game"}, a.Tags)
	assert.Equal(t, "12", string(a.Stars))
	assert.Equal(t, "vercel", a.Extra["Deployment Platform"])

	tl := ps[1]
	assert.False(t, tl.Featured)
	assert.True(t, tl.ResumeWorthy)
	assert.True(t, tl.Hidden)
	assert.Equal(t, "Video tiling notes", tl.Summary)
	assert.Equal(t, "Go", tl.EffectiveLanguage)
	assert.Equal(t, "https://tiling.example", tl.URL)
	assert.Equal(t, []string{"video", "ffmpeg"}, tl.Tags)

	s := ps[2]
	assert.False(t, s.Featured, "maybe is not yes")
	assert.False(t, s.ResumeWorthy)
	assert.False(t, s.Hidden)
}

func TestParse_EveryRecordHasRepo(t *testing.T) {
	ps, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	for _, p := range ps {
		assert.NotEmpty(t, p.Repo)
	}
}

func TestParse_Idempotent(t *testing.T) {
	first, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	second, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("parsing the same content twice differs (-first +second):\n%s", diff)
	}
}

func TestParse_DoesNotTrimValues(t *testing.T) {
	in := "Repo,GitHub Org,Description\nx, org ,  padded  \n"
	ps, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, " org ", ps[0].Org)
	assert.Equal(t, "  padded  ", ps[0].Description)
}

func TestParse_HeaderCleanup(t *testing.T) {
	in := "\ufeffRepo , GitHub Org,,Featured Project\nx,o,ignored,yes\n"
	ps, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "x", ps[0].Repo)
	assert.Equal(t, "o", ps[0].Org)
	assert.True(t, ps[0].Featured)
	assert.Empty(t, ps[0].Extra)
}

func TestParse_EmptyInput(t *testing.T) {
	ps, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, ps)

	ps, err = Parse(strings.NewReader("Repo,GitHub Org\n"))
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestParse_BlankLinesSkipped(t *testing.T) {
	ps, err := Parse(strings.NewReader("Repo,GitHub Org\n\na,o\n\nb,o\n"))
	require.NoError(t, err)
	assert.Len(t, ps, 2)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unbalanced quote", "Repo,GitHub Org\n\"astrds,whaleen\n"},
		{"bare quote in field", "Repo,GitHub Org\nas\"trds,whaleen\n"},
		{"too many columns", "Repo,GitHub Org\nastrds,whaleen,extra\n"},
		{"too few columns", "Repo,GitHub Org\nastrds\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps, err := Parse(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Nil(t, ps)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.NotEmpty(t, pe.Msg)
			assert.Greater(t, pe.Line, 0)
			assert.Contains(t, err.Error(), "parse projects")
		})
	}
}
