// Package pathutil turns user supplied paths into absolute, canonical paths.
// It tolerates paths that do not exist yet, which is the normal case for
// output files, by briefly creating a placeholder so symlinks in the parent
// chain can still be resolved.
package pathutil

import (
	goerrors "errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/agilira/go-errors"

	"github.com/CTAG07/tmplr/pkg/errcodes"
)

// Resolver resolves paths relative to a working directory.
type Resolver struct {
	logger *slog.Logger
	wd     string
}

// NewResolver creates a Resolver. An empty wd means the process working
// directory at resolution time. A nil logger discards placeholder warnings.
func NewResolver(logger *slog.Logger, wd string) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{logger: logger, wd: wd}
}

// Resolve is a shorthand for NewResolver(nil, "").Resolve(input).
func Resolve(input string) (string, error) {
	return NewResolver(nil, "").Resolve(input)
}

// Resolve returns the absolute, canonical form of input.
//
// When the target does not exist an empty placeholder is created with
// O_EXCL, canonicalization is retried once, and the placeholder is removed
// again. Existing files are never touched. If canonicalization fails for any
// other reason the absolute but uncanonicalized path is returned.
func (r *Resolver) Resolve(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", errors.New(errcodes.ErrCodePathResolution, "path is empty")
	}

	path := normalizeSeparators(input)
	if !filepath.IsAbs(path) {
		base, err := r.base()
		if err != nil {
			return "", errors.Wrap(err, errcodes.ErrCodePathResolution, "failed to determine working directory: "+err.Error()).
				WithContext("path", input)
		}
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)

	resolved := r.canonicalize(path)
	if isRoot(resolved) {
		return "", errors.New(errcodes.ErrCodePathResolution, "path resolves to a filesystem root: "+input).
			WithContext("path", input)
	}
	return resolved, nil
}

func (r *Resolver) base() (string, error) {
	if r.wd != "" {
		return r.wd, nil
	}
	return os.Getwd()
}

func (r *Resolver) canonicalize(path string) string {
	canonical, err := filepath.EvalSymlinks(path)
	if err == nil {
		return canonical
	}
	if !goerrors.Is(err, fs.ErrNotExist) {
		r.logger.Debug("Canonicalization failed, using path as given", "path", path, "error", err)
		return path
	}

	created, err := touch(path)
	if err != nil {
		if created {
			r.removePlaceholder(path)
		}
		r.logger.Debug("Could not create placeholder, using path as given", "path", path, "error", err)
		return path
	}

	canonical, err = filepath.EvalSymlinks(path)
	if created {
		r.removePlaceholder(path)
	}
	if err != nil {
		return path
	}
	return canonical
}

func (r *Resolver) removePlaceholder(path string) {
	if err := os.Remove(path); err != nil {
		r.logger.Warn("Failed to remove placeholder file", "path", path, "error", err)
	}
}

// closeFile is replaced in tests.
var closeFile = (*os.File).Close

// touch creates an empty file at path. It reports whether the file was
// created by this call, even when closing it fails; an already existing
// file is left untouched.
func touch(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if goerrors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, closeFile(f)
}

func normalizeSeparators(path string) string {
	if runtime.GOOS == "windows" {
		return strings.ReplaceAll(path, "/", `\`)
	}
	return filepath.FromSlash(path)
}

func isRoot(path string) bool {
	vol := filepath.VolumeName(path)
	rest := path[len(vol):]
	return rest == "" || rest == string(filepath.Separator)
}
