package catalog

import (
	"strings"

	"github.com/whaleen/portfolio/internal/models"
)

// All is the pass-through sentinel for the org and type filters.
const All = "all"

// Criteria combines the listing filters. The zero value matches everything.
type Criteria struct {
	Org              string
	Type             string
	Query            string
	ResumeWorthyOnly bool
}

// Filter returns the records matching every predicate of c, in input order.
func Filter(ps []models.Project, c Criteria) []models.Project {
	return where(ps, func(p models.Project) bool {
		return MatchOrg(p, c.Org) &&
			MatchType(p, c.Type) &&
			MatchSearch(p, c.Query) &&
			(!c.ResumeWorthyOnly || p.ResumeWorthy)
	})
}

// Featured returns the featured records.
func Featured(ps []models.Project) []models.Project {
	return where(ps, func(p models.Project) bool { return p.Featured })
}

// ResumeWorthy returns the resume-worthy records.
func ResumeWorthy(ps []models.Project) []models.Project {
	return where(ps, func(p models.Project) bool { return p.ResumeWorthy })
}

// Visible drops hidden records.
func Visible(ps []models.Project) []models.Project {
	return where(ps, func(p models.Project) bool { return !p.Hidden })
}

// MatchOrg is an exact, case-sensitive org match. "all" and "" match any org.
func MatchOrg(p models.Project, org string) bool {
	return org == "" || org == All || p.Org == org
}

// MatchType is an exact project type match. "all" and "" match any type.
func MatchType(p models.Project, typ string) bool {
	return typ == "" || typ == All || p.ProjectType == typ
}

// MatchSearch reports whether the lower-cased query is a substring of the
// repo, description, notes, topics or key tags. An empty query matches.
func MatchSearch(p models.Project, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, field := range []string{p.Repo, p.Description, p.Notes, p.Topics, p.KeyTags} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// TopTags returns at most n tags for compact display. n <= 0 returns all of them.
func TopTags(tags []string, n int) []string {
	if n <= 0 || len(tags) <= n {
		return tags
	}
	return tags[:n]
}

// FacetsOf lists distinct non-empty orgs and project types in first-appearance order.
func FacetsOf(ps []models.Project) Facets {
	f := Facets{Orgs: []string{}, Types: []string{}}
	seenOrg := map[string]bool{}
	seenType := map[string]bool{}
	for _, p := range ps {
		if p.Org != "" && !seenOrg[p.Org] {
			seenOrg[p.Org] = true
			f.Orgs = append(f.Orgs, p.Org)
		}
		if p.ProjectType != "" && !seenType[p.ProjectType] {
			seenType[p.ProjectType] = true
			f.Types = append(f.Types, p.ProjectType)
		}
	}
	return f
}

func where(ps []models.Project, keep func(models.Project) bool) []models.Project {
	out := []models.Project{}
	for _, p := range ps {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
