package catalog

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/whaleen/portfolio/internal/models"
)

type setter func(p *models.Project, v string)

func str(field func(p *models.Project) *string) setter {
	return func(p *models.Project, v string) { *field(p) = v }
}

func flag(field func(p *models.Project) *bool) setter {
	return func(p *models.Project, v string) { *field(p) = models.IsYes(v) }
}

func metric(field func(p *models.Project) *models.Metric) setter {
	return func(p *models.Project, v string) { *field(p) = models.Metric(v) }
}

// columns maps record store headers onto Project fields. Headers not listed
// here land in Project.Extra.
var columns = map[string]setter{
	models.ColOrg:             str(func(p *models.Project) *string { return &p.Org }),
	models.ColRepo:            str(func(p *models.Project) *string { return &p.Repo }),
	models.ColDescription:     str(func(p *models.Project) *string { return &p.Description }),
	models.ColNotes:           str(func(p *models.Project) *string { return &p.Notes }),
	models.ColLanguage:        str(func(p *models.Project) *string { return &p.Language }),
	models.ColPrimaryLanguage: str(func(p *models.Project) *string { return &p.PrimaryLanguage }),
	models.ColFramework:       str(func(p *models.Project) *string { return &p.Framework }),
	models.ColStyling:         str(func(p *models.Project) *string { return &p.Styling }),
	models.ColBackend:         str(func(p *models.Project) *string { return &p.Backend }),
	models.ColDatabase:        str(func(p *models.Project) *string { return &p.Database }),
	models.ColBlockchain:      str(func(p *models.Project) *string { return &p.Blockchain }),
	models.ColLicense:         str(func(p *models.Project) *string { return &p.License }),
	models.ColProjectType:     str(func(p *models.Project) *string { return &p.ProjectType }),
	models.ColStatus:          str(func(p *models.Project) *string { return &p.Status }),

	models.ColFeatured:          flag(func(p *models.Project) *bool { return &p.Featured }),
	models.ColResumeWorthy:      flag(func(p *models.Project) *bool { return &p.ResumeWorthy }),
	models.ColPWA:               flag(func(p *models.Project) *bool { return &p.PWA }),
	models.ColHasTests:          flag(func(p *models.Project) *bool { return &p.HasTests }),
	models.ColHasCI:             flag(func(p *models.Project) *bool { return &p.HasCI }),
	models.ColWalletIntegration: flag(func(p *models.Project) *bool { return &p.WalletIntegration }),
	models.ColHidden:            flag(func(p *models.Project) *bool { return &p.Hidden }),
	models.ColArchived:          flag(func(p *models.Project) *bool { return &p.Archived }),
	models.ColIsFork:            flag(func(p *models.Project) *bool { return &p.IsFork }),
	models.ColPrivate:           flag(func(p *models.Project) *bool { return &p.Private }),

	models.ColTopics:  str(func(p *models.Project) *string { return &p.Topics }),
	models.ColKeyTags: str(func(p *models.Project) *string { return &p.KeyTags }),

	models.ColStars:      metric(func(p *models.Project) *models.Metric { return &p.Stars }),
	models.ColForks:      metric(func(p *models.Project) *models.Metric { return &p.Forks }),
	models.ColWatchers:   metric(func(p *models.Project) *models.Metric { return &p.Watchers }),
	models.ColOpenIssues: metric(func(p *models.Project) *models.Metric { return &p.OpenIssues }),

	models.ColLastUpdated:      str(func(p *models.Project) *string { return &p.LastUpdated }),
	models.ColCreatedAt:        str(func(p *models.Project) *string { return &p.CreatedAt }),
	models.ColPushedAt:         str(func(p *models.Project) *string { return &p.PushedAt }),
	models.ColLatestCommitDate: str(func(p *models.Project) *string { return &p.LatestCommitDate }),

	models.ColHomepage:         str(func(p *models.Project) *string { return &p.Homepage }),
	models.ColLiveURL:          str(func(p *models.Project) *string { return &p.LiveURL }),
	models.ColReadmePath:       str(func(p *models.Project) *string { return &p.ReadmePath }),
	models.ColFavicon:          str(func(p *models.Project) *string { return &p.Favicon }),
	models.ColSocialPreviewURL: str(func(p *models.Project) *string { return &p.SocialPreviewURL }),
	models.ColOGImage:          str(func(p *models.Project) *string { return &p.OGImage }),
	models.ColOGTitle:          str(func(p *models.Project) *string { return &p.OGTitle }),
	models.ColOGDescription:    str(func(p *models.Project) *string { return &p.OGDescription }),
	models.ColOGURL:            str(func(p *models.Project) *string { return &p.OGURL }),
	models.ColOGSiteName:       str(func(p *models.Project) *string { return &p.OGSiteName }),
	models.ColOGType:           str(func(p *models.Project) *string { return &p.OGType }),

	models.ColLatestCommitMessage: str(func(p *models.Project) *string { return &p.LatestCommitMessage }),
	models.ColLatestCommitAuthor:  str(func(p *models.Project) *string { return &p.LatestCommitAuthor }),
}

// Parse reads CSV text with a header row and returns the valid project
// records in row order. Rows without a Repo are dropped. Cell values are not
// trimmed. Malformed CSV returns a *ParseError.
func Parse(r io.Reader) ([]models.Project, error) {
	cr := csv.NewReader(r)
	// FieldsPerRecord 0 pins every row to the header's column count.
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []models.Project{}, nil
	}
	if err != nil {
		return nil, toParseError(err)
	}

	names := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		names[i] = strings.TrimSpace(h)
	}

	projects := []models.Project{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, toParseError(err)
		}

		p := recordFromRow(names, row)
		if p.Repo == "" {
			continue
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func recordFromRow(names, row []string) models.Project {
	var p models.Project
	for i, v := range row {
		name := names[i]
		if name == "" {
			continue
		}
		if set, ok := columns[name]; ok {
			set(&p, v)
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]string)
		}
		p.Extra[name] = v
	}
	p.Normalize()
	return p
}

func toParseError(err error) *ParseError {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ParseError{Line: csvErr.Line, Msg: csvErr.Err.Error(), Err: err}
	}
	return &ParseError{Msg: err.Error(), Err: err}
}
