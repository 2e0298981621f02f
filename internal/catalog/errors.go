package catalog

import "fmt"

// ParseError reports malformed record store content. No partial catalog is
// installed when it occurs.
type ParseError struct {
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse projects: line %d: %s", e.Line, e.Msg)
	}
	return "parse projects: " + e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// NotFoundError reports that no record matches an org/repo pair.
type NotFoundError struct {
	Org  string
	Repo string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("project not found: %s/%s", e.Org, e.Repo)
}
