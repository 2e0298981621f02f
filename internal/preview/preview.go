// Package preview resolves a project's social preview image.
package preview

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"
)

// Dir is the URL prefix under which preview images are served.
const Dir = "/social-previews"

// Path returns the conventional preview URL for org/repo, or "" when either
// part is empty.
func Path(org, repo string) string {
	if org == "" || repo == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s.png", Dir, org, repo)
}

// AssetLoadError reports a preview image that could not be found or read.
type AssetLoadError struct {
	Path string
	Err  error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("load preview asset %s: %v", e.Path, e.Err)
}

func (e *AssetLoadError) Unwrap() error { return e.Err }

// Resolver checks preview images against Root, the public asset tree whose
// root corresponds to "/". A missing image resolves to Fallback.
type Resolver struct {
	Root     fs.FS
	Fallback string
	Log      *zap.Logger
}

// Resolve returns the preview URL for org/repo, or Fallback when the image is
// absent. Failures are logged at debug level and never returned.
func (r Resolver) Resolve(org, repo string) string {
	url, err := r.lookup(org, repo)
	if err != nil {
		if r.Log != nil {
			r.Log.Debug("preview asset unavailable", zap.String("org", org), zap.String("repo", repo), zap.Error(err))
		}
		return r.Fallback
	}
	return url
}

func (r Resolver) lookup(org, repo string) (string, error) {
	url := Path(org, repo)
	if url == "" {
		return "", &AssetLoadError{Path: url, Err: errors.New("org and repo are required")}
	}
	if r.Root == nil {
		return url, nil
	}
	name := strings.TrimPrefix(url, "/")
	if !fs.ValidPath(name) {
		return "", &AssetLoadError{Path: url, Err: fs.ErrInvalid}
	}
	info, err := fs.Stat(r.Root, name)
	if err != nil {
		return "", &AssetLoadError{Path: url, Err: err}
	}
	if info.IsDir() {
		return "", &AssetLoadError{Path: url, Err: errors.New("is a directory")}
	}
	return url, nil
}
