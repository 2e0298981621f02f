package models

import (
	"strconv"
	"strings"
	"time"
)

// Column headers of the project record store.
const (
	ColOrg                 = "GitHub Org"
	ColRepo                = "Repo"
	ColDescription         = "Description"
	ColNotes               = "Notes"
	ColLanguage            = "Language"
	ColPrimaryLanguage     = "Primary Language"
	ColFramework           = "Framework"
	ColStyling             = "Styling"
	ColBackend             = "Backend"
	ColDatabase            = "Database"
	ColBlockchain          = "Blockchain"
	ColLicense             = "License"
	ColProjectType         = "Project Type"
	ColStatus              = "Status"
	ColFeatured            = "Featured Project"
	ColResumeWorthy        = "Resume Worthy"
	ColPWA                 = "PWA"
	ColHasTests            = "Has Tests"
	ColHasCI               = "Has CI/CD"
	ColWalletIntegration   = "Wallet Integration"
	ColHidden              = "Hidden"
	ColArchived            = "Archived"
	ColIsFork              = "Is Fork"
	ColPrivate             = "Private"
	ColTopics              = "Topics"
	ColKeyTags             = "Key Tags"
	ColStars               = "Stars"
	ColForks               = "Forks"
	ColWatchers            = "Watchers"
	ColOpenIssues          = "Open Issues"
	ColLastUpdated         = "Last Updated"
	ColCreatedAt           = "Created At"
	ColPushedAt            = "Pushed At"
	ColLatestCommitDate    = "Latest Commit Date"
	ColHomepage            = "Homepage"
	ColLiveURL             = "Live URL"
	ColReadmePath          = "README Path"
	ColFavicon             = "Favicon"
	ColOGImage             = "OG Image"
	ColOGTitle             = "OG Title"
	ColOGDescription       = "OG Description"
	ColOGURL               = "OG URL"
	ColOGSiteName          = "OG Site Name"
	ColOGType              = "OG Type"
	ColSocialPreviewURL    = "Social Preview URL"
	ColLatestCommitMessage = "Latest Commit Message"
	ColLatestCommitAuthor  = "Latest Commit Author"
)

// Project is one row of the portfolio catalog.
//
// Raw columns are kept as they appear in the record store. The resolved fields
// (Summary, EffectiveLanguage, URL, TagSource, Tags) are filled once at parse
// time so readers never re-derive legacy fallbacks.
type Project struct {
	Org  string `json:"org"`
	Repo string `json:"repo"`

	Description     string `json:"description,omitempty"`
	Notes           string `json:"notes,omitempty"`
	Language        string `json:"language,omitempty"`
	PrimaryLanguage string `json:"primaryLanguage,omitempty"`
	Framework       string `json:"framework,omitempty"`
	Styling         string `json:"styling,omitempty"`
	Backend         string `json:"backend,omitempty"`
	Database        string `json:"database,omitempty"`
	Blockchain      string `json:"blockchain,omitempty"`
	License         string `json:"license,omitempty"`
	ProjectType     string `json:"projectType,omitempty"`
	Status          string `json:"status,omitempty"`

	Featured          bool `json:"featured"`
	ResumeWorthy      bool `json:"resumeWorthy"`
	PWA               bool `json:"pwa"`
	HasTests          bool `json:"hasTests"`
	HasCI             bool `json:"hasCI"`
	WalletIntegration bool `json:"walletIntegration"`
	Hidden            bool `json:"hidden"`
	Archived          bool `json:"archived"`
	IsFork            bool `json:"isFork"`
	Private           bool `json:"private"`

	Topics  string `json:"topics,omitempty"`
	KeyTags string `json:"keyTags,omitempty"`

	Stars      Metric `json:"stars,omitempty"`
	Forks      Metric `json:"forks,omitempty"`
	Watchers   Metric `json:"watchers,omitempty"`
	OpenIssues Metric `json:"openIssues,omitempty"`

	LastUpdated      string `json:"lastUpdated,omitempty"`
	CreatedAt        string `json:"createdAt,omitempty"`
	PushedAt         string `json:"pushedAt,omitempty"`
	LatestCommitDate string `json:"latestCommitDate,omitempty"`

	Homepage         string `json:"homepage,omitempty"`
	LiveURL          string `json:"liveUrl,omitempty"`
	ReadmePath       string `json:"readmePath,omitempty"`
	Favicon          string `json:"favicon,omitempty"`
	SocialPreviewURL string `json:"socialPreviewUrl,omitempty"`

	OGImage       string `json:"ogImage,omitempty"`
	OGTitle       string `json:"ogTitle,omitempty"`
	OGDescription string `json:"ogDescription,omitempty"`
	OGURL         string `json:"ogUrl,omitempty"`
	OGSiteName    string `json:"ogSiteName,omitempty"`
	OGType        string `json:"ogType,omitempty"`

	LatestCommitMessage string `json:"latestCommitMessage,omitempty"`
	LatestCommitAuthor  string `json:"latestCommitAuthor,omitempty"`

	Summary           string   `json:"summary,omitempty"`
	EffectiveLanguage string   `json:"effectiveLanguage,omitempty"`
	URL               string   `json:"url,omitempty"`
	TagSource         string   `json:"tagSource,omitempty"`
	Tags              []string `json:"tags"`

	// Extra holds columns the schema does not name, keyed by header.
	Extra map[string]string `json:"extra,omitempty"`
}

// Key returns the "org/repo" identity of the record.
func (p Project) Key() string {
	return p.Org + "/" + p.Repo
}

// Normalize resolves the modern-over-legacy fallback chains.
func (p *Project) Normalize() {
	p.Summary = firstNonEmpty(p.Description, p.Notes)
	p.EffectiveLanguage = firstNonEmpty(p.PrimaryLanguage, p.Language)
	p.URL = firstNonEmpty(p.Homepage, p.LiveURL)
	p.TagSource = firstNonEmpty(p.Topics, p.KeyTags)
	p.Tags = SplitTags(p.TagSource)
}

// IsYes reports whether a flag cell is set. Only a case-insensitive "yes" counts.
func IsYes(v string) bool {
	return strings.EqualFold(v, "yes")
}

// SplitTags splits a comma-separated tag list, trimming each tag and dropping
// empty pieces. The result is never nil.
func SplitTags(s string) []string {
	tags := []string{}
	for piece := range strings.SplitSeq(s, ",") {
		if t := strings.TrimSpace(piece); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Metric is a numeric column stored as text; it may be empty.
type Metric string

// Int parses the metric. ok is false for empty or non-numeric values.
func (m Metric) Int() (n int, ok bool) {
	n, err := strconv.Atoi(strings.TrimSpace(string(m)))
	if err != nil {
		return 0, false
	}
	return n, true
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// ParseDate parses an ISO-like date column. ok is false when empty or unparseable.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(modern, legacy string) string {
	if modern != "" {
		return modern
	}
	return legacy
}
